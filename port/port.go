// Package port declares the external collaborators the escrow side effects
// depend on. Adapters live in subpackages; porttest has recorders for tests.
package port

import (
	"context"
	"errors"
	"log/slog"
)

// Notifier delivers a notification to a user. Delivery is at-least-once.
type Notifier interface {
	Send(ctx context.Context, userID, notificationType string, payload map[string]any) error
}

// ComplianceResult is the outcome of a compliance check.
type ComplianceResult struct {
	Flags []string `json:"flags"`
}

// Flagged reports whether the check raised any flag.
func (r ComplianceResult) Flagged() bool { return len(r.Flags) > 0 }

// ComplianceChecker screens a user for a given amount.
type ComplianceChecker interface {
	Check(ctx context.Context, userID string, amount int64) (ComplianceResult, error)
}

// Valuation is an estimated listing value in minor units.
type Valuation struct {
	Amount     int64   `json:"amount"`
	Confidence float64 `json:"confidence"`
}

// Valuator estimates the value of a business listing.
type Valuator interface {
	Calculate(ctx context.Context, listingID string) (Valuation, error)
}

// Document is a generated document.
type Document struct {
	URL string `json:"url"`
}

// DocumentGenerator renders documents such as release statements.
type DocumentGenerator interface {
	Generate(ctx context.Context, docType string, data map[string]any) (Document, error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, userID, notificationType string, payload map[string]any) error

// Send calls f.
func (f NotifierFunc) Send(ctx context.Context, userID, notificationType string, payload map[string]any) error {
	return f(ctx, userID, notificationType, payload)
}

// MultiNotifier sends through every notifier and joins their errors. A
// failure in one does not stop the others.
type MultiNotifier []Notifier

// Send implements Notifier.
func (m MultiNotifier) Send(ctx context.Context, userID, notificationType string, payload map[string]any) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, userID, notificationType, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes notifications to a logger. It stands in for a real
// channel in development.
type LogNotifier struct {
	Logger *slog.Logger
}

// Send implements Notifier.
func (n LogNotifier) Send(ctx context.Context, userID, notificationType string, payload map[string]any) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		slog.String("user_id", userID),
		slog.String("type", notificationType),
		slog.Any("payload", payload),
	)
	return nil
}

// ErrNotConfigured is returned by Unconfigured.
var ErrNotConfigured = errors.New("port: adapter not configured")

// Unconfigured fails every call with ErrNotConfigured. Jobs routed to it
// exhaust into the DLQ and can be replayed once a real adapter is wired.
type Unconfigured struct{}

// Check implements ComplianceChecker.
func (Unconfigured) Check(context.Context, string, int64) (ComplianceResult, error) {
	return ComplianceResult{}, ErrNotConfigured
}

// Calculate implements Valuator.
func (Unconfigured) Calculate(context.Context, string) (Valuation, error) {
	return Valuation{}, ErrNotConfigured
}

// Generate implements DocumentGenerator.
func (Unconfigured) Generate(context.Context, string, map[string]any) (Document, error) {
	return Document{}, ErrNotConfigured
}
