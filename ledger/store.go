package ledger

import (
	"context"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/id"
)

// Store persists escrow accounts, milestones, transactions and the outbox
// of side-effect jobs.
type Store interface {
	// CreateEscrow inserts a new account with its initial milestones and
	// outbox entries, all or nothing.
	CreateEscrow(ctx context.Context, a *Account, milestones []*Milestone, outbox ...*OutboxEntry) error

	// GetEscrow returns the account or escrow.ErrEscrowNotFound.
	GetEscrow(ctx context.Context, escrowID id.EscrowID) (*Account, error)

	// GetMilestone returns the milestone or escrow.ErrMilestoneNotFound.
	GetMilestone(ctx context.Context, milestoneID id.MilestoneID) (*Milestone, error)

	// ListMilestones returns an escrow's milestones in insertion order.
	ListMilestones(ctx context.Context, escrowID id.EscrowID) ([]*Milestone, error)

	// ListTransactions returns an escrow's transactions in insertion order.
	ListTransactions(ctx context.Context, escrowID id.EscrowID) ([]*Transaction, error)

	// InEscrowTx runs fn as one atomic unit holding the exclusive writer
	// lock on escrowID. The lock must hold across processes sharing the
	// store. If fn returns an error nothing it wrote is kept.
	InEscrowTx(ctx context.Context, escrowID id.EscrowID, fn func(ctx context.Context, tx Tx) error) error

	// PendingOutbox returns up to limit unsent entries created at or
	// before cutoff, oldest first.
	PendingOutbox(ctx context.Context, cutoff time.Time, limit int) ([]*OutboxEntry, error)

	// MarkOutboxSent stamps the entry as handed to the dispatcher. Unknown
	// and already sent entries are left alone.
	MarkOutboxSent(ctx context.Context, entryID id.OutboxID, at time.Time) error
}

// Tx is the view of one escrow inside InEscrowTx.
type Tx interface {
	// Escrow returns the account as read under the lock.
	Escrow() *Account

	// UpdateEscrow writes a's status and timestamps. It fails with
	// escrow.ErrConcurrencyConflict unless the stored version equals
	// a.Version, and advances a.Version on success.
	UpdateEscrow(ctx context.Context, a *Account) error

	Milestones(ctx context.Context) ([]*Milestone, error)
	AddMilestone(ctx context.Context, m *Milestone) error
	UpdateMilestone(ctx context.Context, m *Milestone) error

	Transactions(ctx context.Context) ([]*Transaction, error)

	// AppendTransactions writes entries in order, assigning Seq.
	AppendTransactions(ctx context.Context, txs ...*Transaction) error

	// AppendOutbox records side-effect jobs that become pending when the
	// unit commits, assigning Seq.
	AppendOutbox(ctx context.Context, entries ...*OutboxEntry) error
}
