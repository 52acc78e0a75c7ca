// Package porttest provides recording and scripted implementations of the
// port interfaces for tests.
package porttest

import (
	"context"
	"sync"

	"github.com/debnit/MsmeBazaar-sub000/port"
)

var (
	_ port.Notifier          = (*Notifier)(nil)
	_ port.ComplianceChecker = (*Compliance)(nil)
	_ port.Valuator          = (*Valuator)(nil)
	_ port.DocumentGenerator = (*Documents)(nil)
)

// Message is a notification captured by Notifier.
type Message struct {
	UserID  string
	Type    string
	Payload map[string]any
}

// Notifier records every Send. When Err is set, Send records the message
// and returns Err.
type Notifier struct {
	Err error

	mu   sync.Mutex
	sent []Message
}

// Send implements port.Notifier.
func (n *Notifier) Send(_ context.Context, userID, notificationType string, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Message{UserID: userID, Type: notificationType, Payload: payload})
	return n.Err
}

// Sent returns a copy of the recorded messages.
func (n *Notifier) Sent() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.sent...)
}

// SentTo returns the message types delivered to userID, in order.
func (n *Notifier) SentTo(userID string) []string {
	var out []string
	for _, m := range n.Sent() {
		if m.UserID == userID {
			out = append(out, m.Type)
		}
	}
	return out
}

// Compliance returns Result (or Err) and records checked users.
type Compliance struct {
	Result port.ComplianceResult
	Err    error

	mu     sync.Mutex
	checks []string
}

// Check implements port.ComplianceChecker.
func (c *Compliance) Check(_ context.Context, userID string, _ int64) (port.ComplianceResult, error) {
	c.mu.Lock()
	c.checks = append(c.checks, userID)
	c.mu.Unlock()
	return c.Result, c.Err
}

// Checked returns the users checked so far.
func (c *Compliance) Checked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.checks...)
}

// Valuator returns Result (or Err).
type Valuator struct {
	Result port.Valuation
	Err    error
}

// Calculate implements port.Valuator.
func (v *Valuator) Calculate(context.Context, string) (port.Valuation, error) {
	return v.Result, v.Err
}

// Documents returns a Document with URL (or Err) and records requests.
type Documents struct {
	URL string
	Err error

	mu       sync.Mutex
	requests []string
}

// Generate implements port.DocumentGenerator.
func (d *Documents) Generate(_ context.Context, docType string, _ map[string]any) (port.Document, error) {
	d.mu.Lock()
	d.requests = append(d.requests, docType)
	d.mu.Unlock()
	if d.Err != nil {
		return port.Document{}, d.Err
	}
	return port.Document{URL: d.URL}, nil
}

// Requests returns the document types requested so far.
func (d *Documents) Requests() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.requests...)
}
