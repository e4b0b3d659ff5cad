package kafka

// TopicPrefix namespaces every topic this service publishes to.
const TopicPrefix = "intellify"

// Topic returns "<prefix>.<domain>.<action>", e.g. intellify.account.registered.
func Topic(domain, action string) string {
	return TopicPrefix + "." + domain + "." + action
}
