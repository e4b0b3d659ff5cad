package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	producerMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_messages_published_total",
			Help: "Total number of Kafka messages published successfully",
		},
		[]string{"topic"},
	)

	producerMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_messages_failed_total",
			Help: "Total number of Kafka messages that failed to publish",
		},
		[]string{"topic"},
	)
)
