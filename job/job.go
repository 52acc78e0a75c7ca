package job

import (
	"time"

	"github.com/debnit/MsmeBazaar-sub000/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StateWaiting means the job is queued and becomes claimable at RunAt.
	StateWaiting State = "waiting"
	// StateActive means exactly one worker holds a lease on the job.
	StateActive State = "active"
	// StateCompleted means the handler returned nil.
	StateCompleted State = "completed"
	// StateFailed means the job exhausted its attempts. It never returns to
	// waiting; a DLQ replay creates a new job.
	StateFailed State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateWaiting, StateActive, StateCompleted, StateFailed:
		return true
	}
	return false
}

// Mode records which dispatcher backend accepted a job.
type Mode string

const (
	ModeBroker   Mode = "broker"
	ModeFallback Mode = "fallback"
)

// Job is a unit of deferred work. The payload is a JSON snapshot; jobs never
// reference ledger rows by key.
type Job struct {
	ID          id.JobID      `json:"id"`
	Type        string        `json:"type"`
	Queue       string        `json:"queue"`
	Payload     []byte        `json:"payload"`
	State       State         `json:"state"`
	Mode        Mode          `json:"mode"`
	Priority    int           `json:"priority"`
	Attempts    int           `json:"attempts"`
	MaxAttempts int           `json:"max_attempts"`
	Delay       time.Duration `json:"delay,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
	LastError   string        `json:"last_error,omitempty"`

	// Seq is assigned by the store on enqueue and breaks priority ties in
	// insertion order.
	Seq int64 `json:"seq"`

	WorkerID id.WorkerID `json:"worker_id,omitempty"`
	LeaseID  id.LeaseID  `json:"lease_id,omitempty"`

	RunAt       time.Time  `json:"run_at"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	HeartbeatAt *time.Time `json:"heartbeat_at,omitempty"`
}

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Payload != nil {
		cp.Payload = append([]byte(nil), j.Payload...)
	}
	cp.StartedAt = cloneTime(j.StartedAt)
	cp.CompletedAt = cloneTime(j.CompletedAt)
	cp.HeartbeatAt = cloneTime(j.HeartbeatAt)
	return &cp
}

// LastSeen is the newest sign of life from the worker holding j: its last
// heartbeat, or its start time if none was recorded yet.
func (j *Job) LastSeen() time.Time {
	switch {
	case j.HeartbeatAt != nil:
		return *j.HeartbeatAt
	case j.StartedAt != nil:
		return *j.StartedAt
	default:
		return j.UpdatedAt
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
