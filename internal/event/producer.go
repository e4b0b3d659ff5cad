package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhayc-main/next-starter/internal/domain"
	pkgkafka "github.com/abhayc-main/next-starter/pkg/kafka"
	"github.com/abhayc-main/next-starter/pkg/logger"
)

// Kafka topics for account domain events.
var (
	TopicAccountRegistered = pkgkafka.Topic("account", "registered")
	TopicAccountUpdated    = pkgkafka.Topic("account", "updated")
)

// Aggregate type constant.
const AggregateTypeAccount = "account"

// Source identifier for events originating from this service.
const SourceAccounts = "accounts"

// AccountRegisteredData is the payload for an account.registered event.
type AccountRegisteredData struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	Provider   string    `json:"provider"`
	SignupDate time.Time `json:"signup_date"`
}

// AccountUpdatedData is the payload for an account.updated event.
type AccountUpdatedData struct {
	ID    string  `json:"id"`
	Name  *string `json:"name,omitempty"`
	Image *string `json:"image,omitempty"`
}

// publisher is satisfied by *pkgkafka.Producer.
type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes account domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishAccountRegistered publishes an account.registered event.
func (p *Producer) PublishAccountRegistered(ctx context.Context, account *domain.Account, provider string) error {
	data := AccountRegisteredData{
		ID:         account.ID,
		Email:      account.Email,
		Username:   account.Username,
		Provider:   provider,
		SignupDate: account.SignupDate,
	}
	return p.publish(ctx, TopicAccountRegistered, account.ID, data)
}

// PublishAccountUpdated publishes an account.updated event.
func (p *Producer) PublishAccountUpdated(ctx context.Context, account *domain.Account) error {
	data := AccountUpdatedData{
		ID:    account.ID,
		Name:  account.Name,
		Image: account.Image,
	}
	return p.publish(ctx, TopicAccountUpdated, account.ID, data)
}

func (p *Producer) publish(ctx context.Context, topic, accountID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, accountID, AggregateTypeAccount, SourceAccounts, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event = event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published account event",
		slog.String("topic", topic),
		slog.String("account_id", accountID),
	)
	return nil
}

// NopProducer discards events. It is used when no brokers are configured.
type NopProducer struct{}

func (NopProducer) PublishAccountRegistered(context.Context, *domain.Account, string) error {
	return nil
}

func (NopProducer) PublishAccountUpdated(context.Context, *domain.Account) error {
	return nil
}
