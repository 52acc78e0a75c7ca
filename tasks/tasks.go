// Package tasks defines the job types behind the ledger's side effects and
// the handlers that carry them out through the ports.
//
// Payloads are snapshots taken when the ledger operation commits. Handlers
// never read ledger state back, so a job can run long after the escrow has
// moved on.
package tasks

import "github.com/debnit/MsmeBazaar-sub000/queue"

// Job types.
const (
	NotifySellerFunded       = "notify-seller-funded"
	NotifyMilestoneCompleted = "notify-milestone-completed"
	NotifyFundsReleased      = "notify-funds-released"
	NotifyEscrowRefunded     = "notify-escrow-refunded"
	NotifyComplianceFlagged  = "notify-compliance-flagged"
	NotifyDocumentReady      = "notify-document-ready"

	ComplianceCheck    = "compliance-check"
	GenerateDocument   = "generate-document"
	CalculateValuation = "calculate-valuation"
)

// DocReleaseStatement is the document generated when funds are released.
const DocReleaseStatement = "release-statement"

// Party roles carried on notices.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAgent  = "agent"
)

// Notices lists every notification job type.
var Notices = []string{
	NotifySellerFunded,
	NotifyMilestoneCompleted,
	NotifyFundsReleased,
	NotifyEscrowRefunded,
	NotifyComplianceFlagged,
	NotifyDocumentReady,
}

// QueueFor returns the queue a job type runs on.
func QueueFor(jobType string) string {
	switch jobType {
	case ComplianceCheck:
		return queue.Compliance
	case GenerateDocument:
		return queue.Documents
	case CalculateValuation:
		return queue.Valuation
	}
	for _, n := range Notices {
		if n == jobType {
			return queue.Notifications
		}
	}
	return queue.Default
}

// Notice is the payload of every notify-* job. One job is enqueued per
// recipient.
type Notice struct {
	UserID         string   `json:"user_id"`
	Role           string   `json:"role"`
	EscrowID       string   `json:"escrow_id"`
	Amount         int64    `json:"amount,omitempty"`
	MilestoneID    string   `json:"milestone_id,omitempty"`
	MilestoneTitle string   `json:"milestone_title,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	URL            string   `json:"url,omitempty"`
	Flags          []string `json:"flags,omitempty"`
}

// Fields returns the notifier payload for n. Empty fields are omitted.
func (n Notice) Fields() map[string]any {
	f := map[string]any{
		"role":      n.Role,
		"escrow_id": n.EscrowID,
	}
	if n.Amount != 0 {
		f["amount"] = n.Amount
	}
	if n.MilestoneID != "" {
		f["milestone_id"] = n.MilestoneID
		f["milestone_title"] = n.MilestoneTitle
	}
	if n.Reason != "" {
		f["reason"] = n.Reason
	}
	if n.URL != "" {
		f["url"] = n.URL
	}
	if len(n.Flags) > 0 {
		f["flags"] = n.Flags
	}
	return f
}

// ComplianceRequest screens the buyer of a funded escrow.
type ComplianceRequest struct {
	EscrowID string `json:"escrow_id"`
	UserID   string `json:"user_id"`
	Amount   int64  `json:"amount"`
}

// DocumentRequest renders a document and notifies each recipient with its
// URL.
type DocumentRequest struct {
	EscrowID   string         `json:"escrow_id"`
	DocType    string         `json:"doc_type"`
	Recipients []Recipient    `json:"recipients"`
	Data       map[string]any `json:"data"`
}

// Recipient is a party to notify.
type Recipient struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// ValuationRequest values the listing an escrow was opened for.
type ValuationRequest struct {
	EscrowID  string `json:"escrow_id"`
	ListingID string `json:"listing_id"`
}
