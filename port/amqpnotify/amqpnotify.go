// Package amqpnotify publishes escrow notifications to a RabbitMQ topic
// exchange, leaving delivery to downstream consumers.
//
// Each notification is one JSON message routed by
// "<prefix>.<notification type>", e.g. "escrow.notify-funds-released".
package amqpnotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/debnit/MsmeBazaar-sub000/port"
)

var _ port.Notifier = (*Notifier)(nil)

// Channel is the subset of *amqp.Channel the notifier uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Message is the published body.
type Message struct {
	UserID  string         `json:"user_id"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	SentAt  time.Time      `json:"sent_at"`
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithRoutingPrefix sets the routing key prefix. Defaults to "escrow".
func WithRoutingPrefix(prefix string) Option {
	return func(n *Notifier) { n.prefix = prefix }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// Notifier publishes notifications on a topic exchange.
type Notifier struct {
	ch       Channel
	exchange string
	prefix   string
	logger   *slog.Logger
	now      func() time.Time
}

// New declares exchange as a durable topic exchange and returns a
// Notifier publishing to it.
func New(ch Channel, exchange string, opts ...Option) (*Notifier, error) {
	if exchange == "" {
		return nil, errors.New("amqpnotify: exchange required")
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("amqpnotify: declare exchange %s: %w", exchange, err)
	}

	n := &Notifier{
		ch:       ch,
		exchange: exchange,
		prefix:   "escrow",
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// RoutingKey returns the key a notification type is published under.
func (n *Notifier) RoutingKey(notificationType string) string {
	if n.prefix == "" {
		return notificationType
	}
	return n.prefix + "." + notificationType
}

// Send implements port.Notifier.
func (n *Notifier) Send(ctx context.Context, userID, notificationType string, payload map[string]any) error {
	body, err := json.Marshal(Message{
		UserID:  userID,
		Type:    notificationType,
		Payload: payload,
		SentAt:  n.now(),
	})
	if err != nil {
		return fmt.Errorf("amqpnotify: marshal: %w", err)
	}

	key := n.RoutingKey(notificationType)
	err = n.ch.PublishWithContext(ctx, n.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqpnotify: publish %s: %w", key, err)
	}

	n.logger.DebugContext(ctx, "notification published",
		slog.String("exchange", n.exchange),
		slog.String("routing_key", key),
		slog.String("user_id", userID),
	)
	return nil
}

// Conn owns an AMQP connection and the channel notifications go out on.
type Conn struct {
	conn    *amqp.Connection
	Channel *amqp.Channel
}

// Dial connects to RabbitMQ and opens a channel. The URL must use the
// amqp or amqps scheme.
func Dial(rawURL string) (*Conn, error) {
	clean, err := sanitizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp.Dial(clean)
	if err != nil {
		return nil, fmt.Errorf("amqpnotify: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqpnotify: open channel: %w", err)
	}
	return &Conn{conn: conn, Channel: ch}, nil
}

// Close closes the channel and the connection.
func (c *Conn) Close() error {
	return errors.Join(c.Channel.Close(), c.conn.Close())
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("amqpnotify: parse url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", fmt.Errorf("amqpnotify: scheme must be amqp or amqps, got %q", u.Scheme)
	}
	return clean, nil
}
