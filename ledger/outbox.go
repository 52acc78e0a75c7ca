package ledger

import (
	"encoding/json"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/id"
)

// OutboxEntry is a side-effect job written in the same unit as the ledger
// change that caused it. SentAt stays nil until a dispatcher accepts the job.
type OutboxEntry struct {
	ID        id.OutboxID     `json:"id"`
	EscrowID  id.EscrowID     `json:"escrow_id"`
	Queue     string          `json:"queue"`
	JobType   string          `json:"job_type"`
	Payload   json.RawMessage `json:"payload"`
	Seq       int64           `json:"seq"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// Clone returns a deep copy of e.
func (e *OutboxEntry) Clone() *OutboxEntry {
	cp := *e
	cp.Payload = append(json.RawMessage(nil), e.Payload...)
	if e.SentAt != nil {
		t := *e.SentAt
		cp.SentAt = &t
	}
	return &cp
}
