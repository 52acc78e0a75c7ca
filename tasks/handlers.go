package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/dispatcher"
	"github.com/debnit/MsmeBazaar-sub000/job"
	"github.com/debnit/MsmeBazaar-sub000/port"
)

// Handlers carries out side-effect jobs through the ports.
type Handlers struct {
	Notifier   port.Notifier
	Compliance port.ComplianceChecker
	Valuator   port.Valuator
	Documents  port.DocumentGenerator

	// Dispatcher receives follow-up jobs, normally the engine that runs
	// these handlers.
	Dispatcher dispatcher.Dispatcher

	Logger *slog.Logger
}

// Register registers every job type on its queue.
func Register(registry *job.Registry, h *Handlers) {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}

	for _, name := range Notices {
		job.RegisterDefinition(registry, job.NewDefinition(name, h.notify(name), job.WithQueue(QueueFor(name))))
	}
	job.RegisterDefinition(registry, job.NewDefinition(ComplianceCheck, h.checkCompliance, job.WithQueue(QueueFor(ComplianceCheck))))
	job.RegisterDefinition(registry, job.NewDefinition(GenerateDocument, h.generateDocument, job.WithQueue(QueueFor(GenerateDocument))))
	job.RegisterDefinition(registry, job.NewDefinition(CalculateValuation, h.calculateValuation, job.WithQueue(QueueFor(CalculateValuation))))
}

func (h *Handlers) notify(kind string) func(context.Context, Notice) error {
	return func(ctx context.Context, n Notice) error {
		if n.UserID == "" {
			return fmt.Errorf("%w: %s without recipient", escrow.ErrValidation, kind)
		}
		return h.Notifier.Send(ctx, n.UserID, kind, n.Fields())
	}
}

func (h *Handlers) checkCompliance(ctx context.Context, req ComplianceRequest) error {
	res, err := h.Compliance.Check(ctx, req.UserID, req.Amount)
	if err != nil {
		return fmt.Errorf("compliance check: %w", err)
	}
	if !res.Flagged() {
		return nil
	}

	h.Logger.Warn("compliance check flagged user",
		slog.String("escrow_id", req.EscrowID),
		slog.String("user_id", req.UserID),
		slog.Int64("amount", req.Amount),
		slog.Any("flags", res.Flags),
	)
	_, err = dispatcher.EnqueueJSON(ctx, h.Dispatcher, QueueFor(NotifyComplianceFlagged), NotifyComplianceFlagged, Notice{
		UserID:   req.UserID,
		Role:     RoleBuyer,
		EscrowID: req.EscrowID,
		Amount:   req.Amount,
		Flags:    res.Flags,
	})
	return err
}

func (h *Handlers) generateDocument(ctx context.Context, req DocumentRequest) error {
	data := make(map[string]any, len(req.Data)+1)
	for k, v := range req.Data {
		data[k] = v
	}
	data["escrow_id"] = req.EscrowID

	doc, err := h.Documents.Generate(ctx, req.DocType, data)
	if err != nil {
		return fmt.Errorf("generate %s: %w", req.DocType, err)
	}

	// Once any recipient has been notified a retry would regenerate the
	// document and notify them again, so only a total failure is returned.
	var errs []error
	for _, r := range req.Recipients {
		_, err := dispatcher.EnqueueJSON(ctx, h.Dispatcher, QueueFor(NotifyDocumentReady), NotifyDocumentReady, Notice{
			UserID:   r.UserID,
			Role:     r.Role,
			EscrowID: req.EscrowID,
			URL:      doc.URL,
		})
		if err != nil {
			h.Logger.Warn("document notice not enqueued",
				slog.String("escrow_id", req.EscrowID),
				slog.String("doc_type", req.DocType),
				slog.String("user_id", r.UserID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 && len(errs) == len(req.Recipients) {
		return errors.Join(errs...)
	}
	return nil
}

func (h *Handlers) calculateValuation(ctx context.Context, req ValuationRequest) error {
	v, err := h.Valuator.Calculate(ctx, req.ListingID)
	if err != nil {
		return fmt.Errorf("valuation: %w", err)
	}
	h.Logger.Info("listing valued",
		slog.String("escrow_id", req.EscrowID),
		slog.String("listing_id", req.ListingID),
		slog.Int64("amount", v.Amount),
		slog.Float64("confidence", v.Confidence),
	)
	return nil
}
