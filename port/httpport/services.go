package httpport

import (
	"context"
	"net/http"
	"net/url"

	"github.com/debnit/MsmeBazaar-sub000/port"
)

var (
	_ port.ComplianceChecker = (*Compliance)(nil)
	_ port.Valuator          = (*Valuator)(nil)
	_ port.DocumentGenerator = (*Documents)(nil)
	_ port.Notifier          = (*Webhook)(nil)
)

// Compliance calls POST /checks.
type Compliance struct{ *Client }

// NewCompliance returns a compliance checker for baseURL.
func NewCompliance(baseURL string, opts ...Option) *Compliance {
	return &Compliance{NewClient(baseURL, opts...)}
}

type complianceRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

// Check implements port.ComplianceChecker.
func (c *Compliance) Check(ctx context.Context, userID string, amount int64) (port.ComplianceResult, error) {
	var res port.ComplianceResult
	err := c.do(ctx, http.MethodPost, "/checks", complianceRequest{UserID: userID, Amount: amount}, &res)
	return res, err
}

// Valuator calls GET /listings/{id}/valuation.
type Valuator struct{ *Client }

// NewValuator returns a valuator for baseURL.
func NewValuator(baseURL string, opts ...Option) *Valuator {
	return &Valuator{NewClient(baseURL, opts...)}
}

// Calculate implements port.Valuator.
func (v *Valuator) Calculate(ctx context.Context, listingID string) (port.Valuation, error) {
	var res port.Valuation
	err := v.do(ctx, http.MethodGet, "/listings/"+url.PathEscape(listingID)+"/valuation", nil, &res)
	return res, err
}

// Documents calls POST /documents.
type Documents struct{ *Client }

// NewDocuments returns a document generator for baseURL.
func NewDocuments(baseURL string, opts ...Option) *Documents {
	return &Documents{NewClient(baseURL, opts...)}
}

type documentRequest struct {
	DocType string         `json:"doc_type"`
	Data    map[string]any `json:"data"`
}

// Generate implements port.DocumentGenerator.
func (d *Documents) Generate(ctx context.Context, docType string, data map[string]any) (port.Document, error) {
	var res port.Document
	err := d.do(ctx, http.MethodPost, "/documents", documentRequest{DocType: docType, Data: data}, &res)
	return res, err
}

// Webhook posts every notification to a single URL.
type Webhook struct{ *Client }

// NewWebhook returns a notifier posting to target.
func NewWebhook(target string, opts ...Option) *Webhook {
	return &Webhook{NewClient(target, opts...)}
}

type webhookBody struct {
	UserID  string         `json:"user_id"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Send implements port.Notifier.
func (w *Webhook) Send(ctx context.Context, userID, notificationType string, payload map[string]any) error {
	return w.do(ctx, http.MethodPost, "", webhookBody{UserID: userID, Type: notificationType, Payload: payload}, nil)
}
