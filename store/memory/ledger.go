package memory

import (
	"context"
	"sync"
	"time"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/ledger"
)

// ──────────────────────────────────────────────────
// Ledger Store
// ──────────────────────────────────────────────────

// CreateEscrow inserts a new account with its milestones and outbox entries.
func (m *Store) CreateEscrow(_ context.Context, a *ledger.Account, milestones []*ledger.Milestone, outbox ...*ledger.OutboxEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := a.ID.String()
	if _, exists := m.escrows[key]; exists {
		return escrow.ErrEscrowAlreadyExists
	}
	m.escrows[key] = a.Clone()
	m.locks[key] = &sync.Mutex{}
	for _, ms := range milestones {
		m.insertMilestone(ms)
	}
	for _, e := range outbox {
		m.insertOutbox(e)
	}
	return nil
}

// GetEscrow returns a copy of the account.
func (m *Store) GetEscrow(_ context.Context, escrowID id.EscrowID) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.escrows[escrowID.String()]
	if !ok {
		return nil, escrow.ErrEscrowNotFound
	}
	return a.Clone(), nil
}

// GetMilestone returns a copy of the milestone.
func (m *Store) GetMilestone(_ context.Context, milestoneID id.MilestoneID) (*ledger.Milestone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ms, ok := m.milestones[milestoneID.String()]
	if !ok {
		return nil, escrow.ErrMilestoneNotFound
	}
	return ms.Clone(), nil
}

// ListMilestones returns the escrow's milestones in insertion order.
func (m *Store) ListMilestones(_ context.Context, escrowID id.EscrowID) ([]*ledger.Milestone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.escrows[escrowID.String()]; !ok {
		return nil, escrow.ErrEscrowNotFound
	}
	return m.milestonesOf(escrowID.String()), nil
}

// ListTransactions returns the escrow's transactions in insertion order.
func (m *Store) ListTransactions(_ context.Context, escrowID id.EscrowID) ([]*ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.escrows[escrowID.String()]; !ok {
		return nil, escrow.ErrEscrowNotFound
	}
	return cloneTransactions(m.transactions[escrowID.String()]), nil
}

// InEscrowTx runs fn holding the escrow's lock. Writes are buffered and
// applied only when fn returns nil.
func (m *Store) InEscrowTx(ctx context.Context, escrowID id.EscrowID, fn func(ctx context.Context, tx ledger.Tx) error) error {
	key := escrowID.String()

	m.mu.RLock()
	lock, ok := m.locks[key]
	m.mu.RUnlock()
	if !ok {
		return escrow.ErrEscrowNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	tx := &memTx{
		store:   m,
		account: m.escrows[key].Clone(),
		version: m.escrows[key].Version,
	}
	m.mu.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

// PendingOutbox returns unsent entries created at or before cutoff in seq
// order.
func (m *Store) PendingOutbox(_ context.Context, cutoff time.Time, limit int) ([]*ledger.OutboxEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*ledger.OutboxEntry
	for _, key := range m.outboxOrder {
		if limit > 0 && len(out) >= limit {
			break
		}
		e := m.outbox[key]
		if e.SentAt != nil || e.CreatedAt.After(cutoff) {
			continue
		}
		out = append(out, e.Clone())
	}
	return out, nil
}

// MarkOutboxSent stamps an unsent entry.
func (m *Store) MarkOutboxSent(_ context.Context, entryID id.OutboxID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.outbox[entryID.String()]; ok && e.SentAt == nil {
		t := at.UTC()
		e.SentAt = &t
	}
	return nil
}

func (m *Store) insertOutbox(e *ledger.OutboxEntry) {
	m.ledgerSeq++
	e.Seq = m.ledgerSeq
	cp := e.Clone()
	m.outbox[cp.ID.String()] = cp
	m.outboxOrder = append(m.outboxOrder, cp.ID.String())
}

func (m *Store) insertMilestone(ms *ledger.Milestone) {
	m.ledgerSeq++
	cp := ms.Clone()
	cp.Seq = m.ledgerSeq
	ms.Seq = cp.Seq
	key := cp.EscrowID.String()
	m.milestones[cp.ID.String()] = cp
	m.byEscrow[key] = append(m.byEscrow[key], cp.ID.String())
}

func (m *Store) milestonesOf(escrowKey string) []*ledger.Milestone {
	ids := m.byEscrow[escrowKey]
	out := make([]*ledger.Milestone, 0, len(ids))
	for _, msID := range ids {
		out = append(out, m.milestones[msID].Clone())
	}
	return out
}

func cloneTransactions(txs []*ledger.Transaction) []*ledger.Transaction {
	out := make([]*ledger.Transaction, 0, len(txs))
	for _, t := range txs {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

// memTx stages writes for one InEscrowTx call.
type memTx struct {
	store   *Store
	account *ledger.Account
	version int64

	updated       *ledger.Account
	addMilestones []*ledger.Milestone
	setMilestones map[string]*ledger.Milestone
	appended      []*ledger.Transaction
	outbox        []*ledger.OutboxEntry
}

func (t *memTx) Escrow() *ledger.Account { return t.account.Clone() }

func (t *memTx) UpdateEscrow(_ context.Context, a *ledger.Account) error {
	current := t.version
	if t.updated != nil {
		current = t.updated.Version
	}
	if a.Version != current {
		return escrow.ErrConcurrencyConflict
	}
	a.Version++
	t.updated = a.Clone()
	return nil
}

func (t *memTx) Milestones(_ context.Context) ([]*ledger.Milestone, error) {
	t.store.mu.RLock()
	out := t.store.milestonesOf(t.account.ID.String())
	t.store.mu.RUnlock()

	for i, ms := range out {
		if staged, ok := t.setMilestones[ms.ID.String()]; ok {
			out[i] = staged.Clone()
		}
	}
	for _, ms := range t.addMilestones {
		out = append(out, ms.Clone())
	}
	return out, nil
}

func (t *memTx) AddMilestone(_ context.Context, ms *ledger.Milestone) error {
	if ms.EscrowID.String() != t.account.ID.String() {
		return escrow.ErrValidation
	}
	t.addMilestones = append(t.addMilestones, ms.Clone())
	return nil
}

func (t *memTx) UpdateMilestone(_ context.Context, ms *ledger.Milestone) error {
	key := ms.ID.String()
	for i, added := range t.addMilestones {
		if added.ID.String() == key {
			t.addMilestones[i] = ms.Clone()
			return nil
		}
	}

	t.store.mu.RLock()
	stored, ok := t.store.milestones[key]
	t.store.mu.RUnlock()
	if !ok || stored.EscrowID.String() != t.account.ID.String() {
		return escrow.ErrMilestoneNotFound
	}
	if t.setMilestones == nil {
		t.setMilestones = make(map[string]*ledger.Milestone)
	}
	t.setMilestones[key] = ms.Clone()
	return nil
}

func (t *memTx) Transactions(_ context.Context) ([]*ledger.Transaction, error) {
	t.store.mu.RLock()
	out := cloneTransactions(t.store.transactions[t.account.ID.String()])
	t.store.mu.RUnlock()
	return append(out, cloneTransactions(t.appended)...), nil
}

func (t *memTx) AppendTransactions(_ context.Context, txs ...*ledger.Transaction) error {
	for _, tr := range txs {
		cp := *tr
		t.appended = append(t.appended, &cp)
	}
	return nil
}

// AppendOutbox keeps the caller's entries so commit can set their Seq.
func (t *memTx) AppendOutbox(_ context.Context, entries ...*ledger.OutboxEntry) error {
	for _, e := range entries {
		if e.EscrowID.String() != t.account.ID.String() {
			return escrow.ErrValidation
		}
	}
	t.outbox = append(t.outbox, entries...)
	return nil
}

func (t *memTx) commit() error {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()

	key := t.account.ID.String()
	if t.updated != nil {
		if m.escrows[key].Version != t.version {
			return escrow.ErrConcurrencyConflict
		}
		m.escrows[key] = t.updated
	}
	for msID, ms := range t.setMilestones {
		m.milestones[msID] = ms
	}
	for _, ms := range t.addMilestones {
		m.insertMilestone(ms)
	}
	for _, tr := range t.appended {
		m.ledgerSeq++
		tr.Seq = m.ledgerSeq
		m.transactions[key] = append(m.transactions[key], tr)
	}
	for _, e := range t.outbox {
		m.insertOutbox(e)
	}
	return nil
}
