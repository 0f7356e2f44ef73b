// Package events publishes domain events after state changes commit.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/quillhq/quillfeed/pkg/config"
	"github.com/quillhq/quillfeed/pkg/logging"
)

// Event types
const (
	PostCreated      = "post.created"
	PostUpdated      = "post.updated"
	PostDeleted      = "post.deleted"
	PaymentCompleted = "payment.completed"
	PaymentFailed    = "payment.failed"
)

// Event is the envelope written to the topic
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Publisher emits domain events
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload interface{}) error
	Close() error
}

// PostEvent is the payload of post events
type PostEvent struct {
	PostID   int64    `json:"post_id"`
	AuthorID int64    `json:"author_id"`
	Status   string   `json:"status,omitempty"`
	Premium  bool     `json:"premium"`
	Tags     []string `json:"tags,omitempty"`
}

// PaymentEvent is the payload of payment events
type PaymentEvent struct {
	PaymentID int64  `json:"payment_id"`
	PostID    int64  `json:"post_id"`
	UserID    int64  `json:"user_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single Kafka topic
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
	now    func() time.Time
}

// NewKafkaPublisher creates a publisher for the configured brokers
func NewKafkaPublisher(cfg config.EventsConfig) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, cfg.Topic)
}

func newKafkaPublisher(writer messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logging.WithComponent("events"),
		now:    time.Now,
	}
}

// Publish writes one event keyed by key so that events of one entity stay
// ordered within a partition
func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, payload interface{}) error {
	event := Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
	if err != nil {
		p.logger.Error("Failed to write event",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.String("type", eventType))
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}

	p.logger.Debug("Published event",
		zap.String("id", event.ID),
		zap.String("type", eventType),
		zap.String("key", key))
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }
func (NopPublisher) Close() error                                             { return nil }

// New returns a Kafka publisher when brokers are configured, otherwise a
// NopPublisher
func New(cfg config.EventsConfig) Publisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logging.WithComponent("events").Info("Event publishing disabled")
		return NopPublisher{}
	}
	return NewKafkaPublisher(cfg)
}

// PublishQuietly publishes and logs a failure instead of returning it.
// Callers use it after a commit, when the state change must not be undone.
func PublishQuietly(ctx context.Context, p Publisher, eventType, key string, payload interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, eventType, key, payload); err != nil {
		logging.FromContext(ctx, logging.WithComponent("events")).Warn("Dropped event",
			zap.String("type", eventType),
			zap.Error(err))
	}
}
