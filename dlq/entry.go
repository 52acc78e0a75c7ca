package dlq

import (
	"time"

	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
)

// Entry is a job that exhausted its attempts, kept for inspection or replay.
type Entry struct {
	ID          id.DLQID   `json:"id"`
	JobID       id.JobID   `json:"job_id"`
	JobType     string     `json:"job_type"`
	Queue       string     `json:"queue"`
	Payload     []byte     `json:"payload"`
	Error       string     `json:"error"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	Mode        job.Mode   `json:"mode"`
	FailedAt    time.Time  `json:"failed_at"`
	ReplayedAt  *time.Time `json:"replayed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
