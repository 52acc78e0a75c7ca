// Package sesnotify delivers escrow notifications as email through AWS SES.
package sesnotify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/debnit/MsmeBazaar-sub000/port"
)

var _ port.Notifier = (*Notifier)(nil)

// ErrNoAddress is returned when a user has no email address.
var ErrNoAddress = errors.New("sesnotify: no email address for user")

// Client is the subset of the SES client the notifier uses.
type Client interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AddressBook resolves a user ID to an email address.
type AddressBook interface {
	Email(ctx context.Context, userID string) (string, error)
}

// AddressBookFunc adapts a function to AddressBook.
type AddressBookFunc func(ctx context.Context, userID string) (string, error)

// Email calls f.
func (f AddressBookFunc) Email(ctx context.Context, userID string) (string, error) { return f(ctx, userID) }

// Config holds SES settings.
type Config struct {
	From             string
	Region           string
	Profile          string
	ConfigurationSet string
	// DryRun logs instead of sending.
	DryRun bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithClient injects an SES client.
func WithClient(c Client) Option {
	return func(n *Notifier) {
		if c != nil {
			n.client = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// Notifier sends one email per notification.
type Notifier struct {
	cfg       Config
	addresses AddressBook
	client    Client
	logger    *slog.Logger
}

// New returns a Notifier. Without WithClient the SES client is built
// lazily from the default AWS config chain.
func New(cfg Config, addresses AddressBook, opts ...Option) *Notifier {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	n := &Notifier{cfg: cfg, addresses: addresses, logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Notifier) ensureClient(ctx context.Context) error {
	if n.client != nil {
		return nil
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(n.cfg.Region)}
	if n.cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(n.cfg.Profile))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("sesnotify: load config: %w", err)
	}
	n.client = ses.NewFromConfig(awsCfg)
	return nil
}

// Send implements port.Notifier.
func (n *Notifier) Send(ctx context.Context, userID, notificationType string, payload map[string]any) error {
	if n.cfg.From == "" {
		return errors.New("sesnotify: from address required")
	}
	to, err := n.addresses.Email(ctx, userID)
	if err != nil {
		return fmt.Errorf("sesnotify: resolve %s: %w", userID, err)
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("%w: %s", ErrNoAddress, userID)
	}

	subject := Subject(notificationType)
	body := Body(payload)

	if n.cfg.DryRun {
		n.logger.InfoContext(ctx, "ses send skipped (dry run)",
			slog.String("to", to),
			slog.String("subject", subject),
		)
		return nil
	}
	if err := n.ensureClient(ctx); err != nil {
		return err
	}

	input := &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{to}},
		Source:      aws.String(n.cfg.From),
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body:    &types.Body{Text: &types.Content{Data: aws.String(body)}},
		},
	}
	if cs := strings.TrimSpace(n.cfg.ConfigurationSet); cs != "" {
		input.ConfigurationSetName = aws.String(cs)
	}

	if _, err := n.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("sesnotify: send email: %w", err)
	}
	return nil
}

var subjects = map[string]string{
	"notify-seller-funded":       "Escrow funded",
	"notify-milestone-completed": "Escrow milestone completed",
	"notify-funds-released":      "Escrow funds released",
	"notify-escrow-refunded":     "Escrow refunded",
	"notify-compliance-flagged":  "Compliance review required",
	"notify-document-ready":      "Your escrow document is ready",
}

// Subject returns the email subject for a notification type.
func Subject(notificationType string) string {
	if s, ok := subjects[notificationType]; ok {
		return s
	}
	name := strings.TrimPrefix(notificationType, "notify-")
	return "Escrow update: " + strings.ReplaceAll(name, "-", " ")
}

// Body renders payload as sorted "key: value" lines.
func Body(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, payload[k])
	}
	return b.String()
}
