// Package kafkanotify publishes escrow notifications to a Kafka topic.
//
// Messages are keyed by escrow ID when the payload carries one, so every
// notification about an escrow lands on the same partition in order.
package kafkanotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/debnit/MsmeBazaar-sub000/port"
)

var _ port.Notifier = (*Notifier)(nil)

// Writer is the subset of *kafka.Writer the notifier uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the message value.
type Event struct {
	UserID  string         `json:"user_id"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	SentAt  time.Time      `json:"sent_at"`
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// Notifier writes one message per notification.
type Notifier struct {
	w      Writer
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

// New returns a Notifier writing to topic through w.
func New(w Writer, topic string, opts ...Option) (*Notifier, error) {
	if topic == "" {
		return nil, errors.New("kafkanotify: topic required")
	}
	n := &Notifier{
		w:      w,
		topic:  topic,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// NewWriter returns a hash-balanced writer that waits for all in-sync
// replicas.
func NewWriter(brokers []string) (*kafka.Writer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafkanotify: at least one broker required")
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}, nil
}

// Key returns the partition key for a notification.
func Key(userID string, payload map[string]any) string {
	if v, ok := payload["escrow_id"].(string); ok && v != "" {
		return v
	}
	return userID
}

// Send implements port.Notifier.
func (n *Notifier) Send(ctx context.Context, userID, notificationType string, payload map[string]any) error {
	now := n.now()
	value, err := json.Marshal(Event{UserID: userID, Type: notificationType, Payload: payload, SentAt: now})
	if err != nil {
		return fmt.Errorf("kafkanotify: marshal: %w", err)
	}
	key := Key(userID, payload)
	err = n.w.WriteMessages(ctx, kafka.Message{
		Topic: n.topic,
		Key:   []byte(key),
		Value: value,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(notificationType)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafkanotify: write %s: %w", n.topic, err)
	}

	n.logger.DebugContext(ctx, "notification published",
		slog.String("topic", n.topic),
		slog.String("key", key),
		slog.String("type", notificationType),
	)
	return nil
}

// Close closes the underlying writer.
func (n *Notifier) Close() error { return n.w.Close() }
