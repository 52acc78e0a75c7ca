package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/dispatcher"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/tasks"
)

// Service executes escrow operations. Each mutating operation runs as one
// atomic unit under the escrow's writer lock. Its side-effect jobs are
// written to the outbox inside the unit and enqueued after it commits; a
// Relay retries the ones the dispatcher did not accept.
type Service struct {
	store    Store
	dispatch dispatcher.Dispatcher
	config   Config
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithConfig sets the release fees.
func WithConfig(c Config) Option {
	return func(s *Service) { s.config = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. d receives the side-effect jobs.
func NewService(store Store, d dispatcher.Dispatcher, opts ...Option) *Service {
	s := &Service{
		store:    store,
		dispatch: d,
		config:   DefaultConfig(),
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput describes a new escrow.
type CreateInput struct {
	BuyerID    string   `json:"buyer_id"`
	SellerID   string   `json:"seller_id"`
	AgentID    string   `json:"agent_id,omitempty"`
	ListingID  string   `json:"listing_id,omitempty"`
	Amount     int64    `json:"amount"`
	Milestones []string `json:"milestones,omitempty"`
}

func (in CreateInput) validate() error {
	switch {
	case in.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", escrow.ErrValidation)
	case strings.TrimSpace(in.BuyerID) == "", strings.TrimSpace(in.SellerID) == "":
		return fmt.Errorf("%w: buyer and seller are required", escrow.ErrValidation)
	case in.BuyerID == in.SellerID:
		return fmt.Errorf("%w: buyer and seller must differ", escrow.ErrValidation)
	}
	for i, title := range in.Milestones {
		if strings.TrimSpace(title) == "" {
			return fmt.Errorf("%w: milestone %d has no title", escrow.ErrValidation, i)
		}
	}
	return nil
}

// sideEffect is a job collected inside a unit and written to its outbox.
type sideEffect struct {
	jobType string
	payload any
}

// ──────────────────────────────────────────────────
// Mutations
// ──────────────────────────────────────────────────

// Create opens a pending escrow with its milestones.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Account, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	a := &Account{
		Entity:      escrow.Entity{CreatedAt: now, UpdatedAt: now},
		ID:          id.NewEscrowID(),
		BuyerID:     in.BuyerID,
		SellerID:    in.SellerID,
		AgentID:     in.AgentID,
		ListingID:   in.ListingID,
		TotalAmount: in.Amount,
		Status:      StatusPending,
	}
	milestones := make([]*Milestone, 0, len(in.Milestones))
	for _, title := range in.Milestones {
		milestones = append(milestones, s.newMilestone(a.ID, title, now))
	}

	var effects []sideEffect
	if a.ListingID != "" {
		effects = append(effects, sideEffect{tasks.CalculateValuation, tasks.ValuationRequest{
			EscrowID:  a.ID.String(),
			ListingID: a.ListingID,
		}})
	}
	staged, err := s.outboxEntries(a.ID, effects, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateEscrow(ctx, a, milestones, staged...); err != nil {
		return nil, fmt.Errorf("create escrow: %w", err)
	}
	s.logger.Info("escrow created",
		slog.String("escrow_id", a.ID.String()),
		slog.Int64("amount", a.TotalAmount),
		slog.Int("milestones", len(milestones)),
	)
	s.deliver(ctx, staged)
	return a, nil
}

// Fund records the buyer's deposit. Partial funding is rejected.
func (s *Service) Fund(ctx context.Context, escrowID id.EscrowID, amount int64) (*Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", escrow.ErrValidation)
	}

	var (
		out    *Account
		staged []*OutboxEntry
	)
	err := s.store.InEscrowTx(ctx, escrowID, func(ctx context.Context, tx Tx) error {
		a := tx.Escrow()
		if a.Status != StatusPending {
			return fmt.Errorf("%w: fund %s escrow", escrow.ErrInvalidState, a.Status)
		}
		if amount != a.TotalAmount {
			return fmt.Errorf("%w: amount %d does not match total %d", escrow.ErrValidation, amount, a.TotalAmount)
		}

		now := s.now()
		if err := tx.AppendTransactions(ctx, s.newTransaction(a, a.BuyerID, a.Party(), amount, TxDeposit, "", now)); err != nil {
			return err
		}
		if err := s.transition(ctx, tx, a, StatusFunded, now); err != nil {
			return err
		}

		out = a
		var err error
		staged, err = s.record(ctx, tx, a.ID, []sideEffect{
			{tasks.NotifySellerFunded, tasks.Notice{
				UserID: a.SellerID, Role: tasks.RoleSeller, EscrowID: a.ID.String(), Amount: amount,
			}},
			{tasks.ComplianceCheck, tasks.ComplianceRequest{
				EscrowID: a.ID.String(), UserID: a.BuyerID, Amount: amount,
			}},
		}, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("escrow funded", slog.String("escrow_id", escrowID.String()), slog.Int64("amount", amount))
	s.deliver(ctx, staged)
	return out, nil
}

// AddMilestone appends a release gate to a pending or funded escrow.
func (s *Service) AddMilestone(ctx context.Context, escrowID id.EscrowID, title string) (*Milestone, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: milestone title is required", escrow.ErrValidation)
	}

	ms := s.newMilestone(escrowID, title, s.now())
	err := s.store.InEscrowTx(ctx, escrowID, func(ctx context.Context, tx Tx) error {
		a := tx.Escrow()
		if a.Status != StatusPending && a.Status != StatusFunded {
			return fmt.Errorf("%w: add milestone to %s escrow", escrow.ErrInvalidState, a.Status)
		}
		return tx.AddMilestone(ctx, ms)
	})
	if err != nil {
		return nil, err
	}
	return s.store.GetMilestone(ctx, ms.ID)
}

// CompleteMilestone marks a pending milestone of a funded escrow completed.
func (s *Service) CompleteMilestone(ctx context.Context, milestoneID id.MilestoneID) (*Milestone, error) {
	ms, err := s.store.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}

	var (
		out    *Milestone
		staged []*OutboxEntry
	)
	err = s.store.InEscrowTx(ctx, ms.EscrowID, func(ctx context.Context, tx Tx) error {
		a := tx.Escrow()
		if a.Status != StatusFunded {
			return fmt.Errorf("%w: complete milestone of %s escrow", escrow.ErrInvalidState, a.Status)
		}

		current, err := findMilestone(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		if current.Status == MilestoneCompleted {
			return fmt.Errorf("%w: milestone already completed", escrow.ErrInvalidState)
		}

		now := s.now()
		current.Status = MilestoneCompleted
		current.CompletedAt = &now
		if err := tx.UpdateMilestone(ctx, current); err != nil {
			return err
		}
		// Bumping the account version orders this write against Release.
		if err := s.touch(ctx, tx, a, now); err != nil {
			return err
		}

		out = current
		var effects []sideEffect
		for _, r := range []tasks.Recipient{{UserID: a.BuyerID, Role: tasks.RoleBuyer}, {UserID: a.SellerID, Role: tasks.RoleSeller}} {
			effects = append(effects, sideEffect{tasks.NotifyMilestoneCompleted, tasks.Notice{
				UserID:         r.UserID,
				Role:           r.Role,
				EscrowID:       a.ID.String(),
				MilestoneID:    current.ID.String(),
				MilestoneTitle: current.Title,
			}})
		}
		staged, err = s.record(ctx, tx, a.ID, effects, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("milestone completed",
		slog.String("escrow_id", ms.EscrowID.String()),
		slog.String("milestone_id", milestoneID.String()),
	)
	s.deliver(ctx, staged)
	return out, nil
}

// Release pays out a funded escrow whose milestones are all completed.
// Releasing a completed escrow succeeds without writing anything.
func (s *Service) Release(ctx context.Context, escrowID id.EscrowID) (*Account, error) {
	var (
		out    *Account
		staged []*OutboxEntry
	)
	err := s.store.InEscrowTx(ctx, escrowID, func(ctx context.Context, tx Tx) error {
		a := tx.Escrow()
		out = a
		if a.Status == StatusCompleted {
			return nil
		}
		if a.Status != StatusFunded {
			return fmt.Errorf("%w: release %s escrow", escrow.ErrInvalidState, a.Status)
		}

		milestones, err := tx.Milestones(ctx)
		if err != nil {
			return err
		}
		for _, ms := range milestones {
			if ms.Status != MilestoneCompleted {
				return fmt.Errorf("%w: milestone %q is pending", escrow.ErrPreconditionFailed, ms.Title)
			}
		}

		split := s.config.Split(a.TotalAmount, a.HasAgent())
		now := s.now()
		entries := []*Transaction{
			s.newTransaction(a, a.Party(), a.SellerID, split.SellerAmount, TxWithdrawal, "", now),
		}
		if split.AgentCommission > 0 {
			entries = append(entries, s.newTransaction(a, a.Party(), a.AgentID, split.AgentCommission, TxCommission, "", now))
		}
		if split.PlatformFee > 0 {
			entries = append(entries, s.newTransaction(a, a.Party(), PlatformParty, split.PlatformFee, TxCommission, "", now))
		}
		if err := appendOutflows(ctx, tx, entries); err != nil {
			return err
		}
		if err := s.transition(ctx, tx, a, StatusCompleted, now); err != nil {
			return err
		}

		staged, err = s.record(ctx, tx, a.ID, releaseEffects(a, split), now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(staged) > 0 {
		s.logger.Info("escrow released", slog.String("escrow_id", escrowID.String()))
		s.deliver(ctx, staged)
	}
	return out, nil
}

// Refund returns a funded escrow's total to the buyer.
func (s *Service) Refund(ctx context.Context, escrowID id.EscrowID, reason string) (*Account, error) {
	var (
		out    *Account
		staged []*OutboxEntry
	)
	err := s.store.InEscrowTx(ctx, escrowID, func(ctx context.Context, tx Tx) error {
		a := tx.Escrow()
		if a.Status != StatusFunded {
			return fmt.Errorf("%w: refund %s escrow", escrow.ErrInvalidState, a.Status)
		}

		now := s.now()
		refund := s.newTransaction(a, a.Party(), a.BuyerID, a.TotalAmount, TxRefund, reason, now)
		if err := appendOutflows(ctx, tx, []*Transaction{refund}); err != nil {
			return err
		}
		if err := s.transition(ctx, tx, a, StatusRefunded, now); err != nil {
			return err
		}

		out = a
		var effects []sideEffect
		for _, r := range parties(a) {
			effects = append(effects, sideEffect{tasks.NotifyEscrowRefunded, tasks.Notice{
				UserID:   r.UserID,
				Role:     r.Role,
				EscrowID: a.ID.String(),
				Amount:   a.TotalAmount,
				Reason:   reason,
			}})
		}
		var err error
		staged, err = s.record(ctx, tx, a.ID, effects, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("escrow refunded", slog.String("escrow_id", escrowID.String()), slog.String("reason", reason))
	s.deliver(ctx, staged)
	return out, nil
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// Get returns an escrow account.
func (s *Service) Get(ctx context.Context, escrowID id.EscrowID) (*Account, error) {
	return s.store.GetEscrow(ctx, escrowID)
}

// Milestones returns an escrow's milestones in insertion order.
func (s *Service) Milestones(ctx context.Context, escrowID id.EscrowID) ([]*Milestone, error) {
	return s.store.ListMilestones(ctx, escrowID)
}

// Transactions returns an escrow's ledger entries in insertion order.
func (s *Service) Transactions(ctx context.Context, escrowID id.EscrowID) ([]*Transaction, error) {
	return s.store.ListTransactions(ctx, escrowID)
}

// Balance returns the escrow's deposit and outflow totals.
func (s *Service) Balance(ctx context.Context, escrowID id.EscrowID) (Totals, error) {
	txs, err := s.store.ListTransactions(ctx, escrowID)
	if err != nil {
		return Totals{}, err
	}
	return Sum(txs), nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (s *Service) transition(ctx context.Context, tx Tx, a *Account, to Status, now time.Time) error {
	if !CanTransition(a.Status, to) {
		return fmt.Errorf("%w: %s to %s", escrow.ErrInvalidState, a.Status, to)
	}
	a.Status = to
	return s.touch(ctx, tx, a, now)
}

func (s *Service) touch(ctx context.Context, tx Tx, a *Account, now time.Time) error {
	a.UpdatedAt = now
	return tx.UpdateEscrow(ctx, a)
}

func (s *Service) newMilestone(escrowID id.EscrowID, title string, now time.Time) *Milestone {
	return &Milestone{
		ID:        id.NewMilestoneID(),
		EscrowID:  escrowID,
		Title:     strings.TrimSpace(title),
		Status:    MilestonePending,
		CreatedAt: now,
	}
}

func (s *Service) newTransaction(a *Account, from, to string, amount int64, typ TxType, reason string, now time.Time) *Transaction {
	return &Transaction{
		ID:        id.NewTransactionID(),
		EscrowID:  a.ID,
		FromParty: from,
		ToParty:   to,
		Amount:    amount,
		Type:      typ,
		Status:    TxPosted,
		Reason:    reason,
		CreatedAt: now,
	}
}

// appendOutflows writes entries after checking that outflows stay within
// deposits.
func appendOutflows(ctx context.Context, tx Tx, entries []*Transaction) error {
	existing, err := tx.Transactions(ctx)
	if err != nil {
		return err
	}
	totals := Sum(existing)
	for _, e := range entries {
		if e.Amount <= 0 {
			return fmt.Errorf("%w: non-positive %s amount %d", escrow.ErrValidation, e.Type, e.Amount)
		}
		totals.Outflows += e.Amount
	}
	if totals.Outflows > totals.Deposits {
		return fmt.Errorf("%w: outflows %d exceed deposits %d", escrow.ErrLedgerImbalance, totals.Outflows, totals.Deposits)
	}
	return tx.AppendTransactions(ctx, entries...)
}

func findMilestone(ctx context.Context, tx Tx, milestoneID id.MilestoneID) (*Milestone, error) {
	milestones, err := tx.Milestones(ctx)
	if err != nil {
		return nil, err
	}
	for _, ms := range milestones {
		if ms.ID.String() == milestoneID.String() {
			return ms, nil
		}
	}
	return nil, escrow.ErrMilestoneNotFound
}

func parties(a *Account) []tasks.Recipient {
	out := []tasks.Recipient{
		{UserID: a.SellerID, Role: tasks.RoleSeller},
		{UserID: a.BuyerID, Role: tasks.RoleBuyer},
	}
	if a.HasAgent() {
		out = append(out, tasks.Recipient{UserID: a.AgentID, Role: tasks.RoleAgent})
	}
	return out
}

func releaseEffects(a *Account, split Settlement) []sideEffect {
	amounts := map[string]int64{
		tasks.RoleSeller: split.SellerAmount,
		tasks.RoleBuyer:  split.Total,
		tasks.RoleAgent:  split.AgentCommission,
	}
	recipients := parties(a)

	effects := make([]sideEffect, 0, len(recipients)+1)
	for _, r := range recipients {
		effects = append(effects, sideEffect{tasks.NotifyFundsReleased, tasks.Notice{
			UserID:   r.UserID,
			Role:     r.Role,
			EscrowID: a.ID.String(),
			Amount:   amounts[r.Role],
		}})
	}
	effects = append(effects, sideEffect{tasks.GenerateDocument, tasks.DocumentRequest{
		EscrowID:   a.ID.String(),
		DocType:    tasks.DocReleaseStatement,
		Recipients: recipients,
		Data: map[string]any{
			"total":            split.Total,
			"platform_fee":     split.PlatformFee,
			"agent_commission": split.AgentCommission,
			"seller_amount":    split.SellerAmount,
			"buyer_id":         a.BuyerID,
			"seller_id":        a.SellerID,
		},
	}})
	return effects
}

// ──────────────────────────────────────────────────
// Outbox
// ──────────────────────────────────────────────────

func (s *Service) outboxEntries(escrowID id.EscrowID, effects []sideEffect, now time.Time) ([]*OutboxEntry, error) {
	entries := make([]*OutboxEntry, 0, len(effects))
	for _, e := range effects {
		payload, err := json.Marshal(e.payload)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal payload for job %q: %w", escrow.ErrValidation, e.jobType, err)
		}
		entries = append(entries, &OutboxEntry{
			ID:        id.NewOutboxID(),
			EscrowID:  escrowID,
			Queue:     tasks.QueueFor(e.jobType),
			JobType:   e.jobType,
			Payload:   payload,
			CreatedAt: now,
		})
	}
	return entries, nil
}

// record writes effects to the outbox of the unit behind tx.
func (s *Service) record(ctx context.Context, tx Tx, escrowID id.EscrowID, effects []sideEffect, now time.Time) ([]*OutboxEntry, error) {
	entries, err := s.outboxEntries(escrowID, effects, now)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	if err := tx.AppendOutbox(ctx, entries...); err != nil {
		return nil, err
	}
	return entries, nil
}

// deliver hands committed outbox entries to the dispatcher and marks the
// accepted ones sent. Failures are logged and never returned: the ledger
// write has already happened and the entry stays pending for the Relay.
func (s *Service) deliver(ctx context.Context, entries []*OutboxEntry) int {
	ctx = context.WithoutCancel(ctx)
	sent := 0
	for _, e := range entries {
		attrs := []any{
			slog.String("escrow_id", e.EscrowID.String()),
			slog.String("job_type", e.JobType),
			slog.String("outbox_id", e.ID.String()),
		}
		h, err := s.dispatch.Enqueue(ctx, e.Queue, e.JobType, e.Payload)
		if err != nil {
			s.logger.Error("side effect left in outbox", append(attrs, slog.String("error", err.Error()))...)
			continue
		}
		if h.Err != nil {
			s.logger.Warn("side effect failed in fallback mode",
				append(attrs, slog.String("job_id", h.JobID.String()), slog.String("error", h.Err.Error()))...)
		}
		if err := s.store.MarkOutboxSent(ctx, e.ID, s.now()); err != nil {
			// The job is queued; a later flush will enqueue it again.
			s.logger.Error("failed to mark outbox entry sent", append(attrs, slog.String("error", err.Error()))...)
			continue
		}
		sent++
	}
	return sent
}

// FlushOutbox enqueues up to limit pending outbox entries created at or
// before cutoff. It returns how many were pending and how many the
// dispatcher accepted.
func (s *Service) FlushOutbox(ctx context.Context, cutoff time.Time, limit int) (pending, sent int, err error) {
	entries, err := s.store.PendingOutbox(ctx, cutoff, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("list pending outbox: %w", err)
	}
	return len(entries), s.deliver(ctx, entries), nil
}
