package ledger

import (
	"time"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/id"
)

// Status is the lifecycle state of an escrow account.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFunded    Status = "funded"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

// Terminal reports whether s admits no further transition.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusRefunded }

// CanTransition reports whether from → to is a legal account transition.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusFunded
	case StatusFunded:
		return to == StatusCompleted || to == StatusRefunded
	default:
		return false
	}
}

// Account holds a buyer's funds pending a business-acquisition deal.
// Amounts are integer minor currency units.
type Account struct {
	escrow.Entity

	ID          id.EscrowID `json:"id"`
	BuyerID     string      `json:"buyer_id"`
	SellerID    string      `json:"seller_id"`
	AgentID     string      `json:"agent_id,omitempty"`
	ListingID   string      `json:"listing_id,omitempty"`
	TotalAmount int64       `json:"total_amount"`
	Status      Status      `json:"status"`

	// Version increases on every committed update.
	Version int64 `json:"version"`
}

// HasAgent reports whether an agent earns a commission on release.
func (a *Account) HasAgent() bool { return a.AgentID != "" }

// Party returns the ledger party name for the escrow itself.
func (a *Account) Party() string { return EscrowParty(a.ID) }

// Clone returns a copy of a.
func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}

// MilestoneStatus is the state of a release gate.
type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "pending"
	MilestoneCompleted MilestoneStatus = "completed"
)

// Milestone is a named condition that must be completed before release.
type Milestone struct {
	ID          id.MilestoneID  `json:"id"`
	EscrowID    id.EscrowID     `json:"escrow_id"`
	Title       string          `json:"title"`
	Status      MilestoneStatus `json:"status"`
	Seq         int64           `json:"seq"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Clone returns a copy of m.
func (m *Milestone) Clone() *Milestone {
	cp := *m
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// TxType classifies a movement of funds.
type TxType string

const (
	TxDeposit    TxType = "deposit"
	TxWithdrawal TxType = "withdrawal"
	TxCommission TxType = "commission"
	TxRefund     TxType = "refund"
)

// Outflow reports whether t moves money out of the escrow.
func (t TxType) Outflow() bool { return t != TxDeposit }

// TxPosted is the status of every written transaction.
const TxPosted = "posted"

// PlatformParty receives the platform fee retained on release.
const PlatformParty = "platform"

// EscrowParty names the escrow account as a ledger party.
func EscrowParty(escrowID id.EscrowID) string { return "escrow:" + escrowID.String() }

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID        id.TransactionID `json:"id"`
	EscrowID  id.EscrowID      `json:"escrow_id"`
	FromParty string           `json:"from_party"`
	ToParty   string           `json:"to_party"`
	Amount    int64            `json:"amount"`
	Type      TxType           `json:"type"`
	Status    string           `json:"status"`
	Reason    string           `json:"reason,omitempty"`
	Seq       int64            `json:"seq"`
	CreatedAt time.Time        `json:"created_at"`
}

// Totals summarizes an escrow's transactions.
type Totals struct {
	Deposits int64 `json:"deposits"`
	Outflows int64 `json:"outflows"`
}

// Balance is the amount still held: deposits minus outflows.
func (t Totals) Balance() int64 { return t.Deposits - t.Outflows }

// Sum totals txs.
func Sum(txs []*Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		if tx.Type.Outflow() {
			t.Outflows += tx.Amount
		} else {
			t.Deposits += tx.Amount
		}
	}
	return t
}
