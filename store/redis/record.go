package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/debnit/MsmeBazaar-sub000/dlq"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
)

// jobRecord is the msgpack form of a job. IDs are strings and times are
// unix nanoseconds so the encoding does not depend on Go-specific types.
type jobRecord struct {
	ID          string `msgpack:"id"`
	Type        string `msgpack:"type"`
	Queue       string `msgpack:"queue"`
	Payload     []byte `msgpack:"payload"`
	State       string `msgpack:"state"`
	Mode        string `msgpack:"mode"`
	Priority    int    `msgpack:"priority"`
	Attempts    int    `msgpack:"attempts"`
	MaxAttempts int    `msgpack:"max_attempts"`
	Delay       int64  `msgpack:"delay"`
	Timeout     int64  `msgpack:"timeout"`
	LastError   string `msgpack:"last_error,omitempty"`
	Seq         int64  `msgpack:"seq"`
	RunAt       int64  `msgpack:"run_at"`
	EnqueuedAt  int64  `msgpack:"enqueued_at"`
	UpdatedAt   int64  `msgpack:"updated_at"`
	StartedAt   int64  `msgpack:"started_at,omitempty"`
	CompletedAt int64  `msgpack:"completed_at,omitempty"`
}

func encodeJob(j *job.Job) ([]byte, error) {
	rec := jobRecord{
		ID:          j.ID.String(),
		Type:        j.Type,
		Queue:       j.Queue,
		Payload:     j.Payload,
		State:       string(j.State),
		Mode:        string(j.Mode),
		Priority:    j.Priority,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		Delay:       int64(j.Delay),
		Timeout:     int64(j.Timeout),
		LastError:   j.LastError,
		Seq:         j.Seq,
		RunAt:       unixNano(j.RunAt),
		EnqueuedAt:  unixNano(j.EnqueuedAt),
		UpdatedAt:   unixNano(j.UpdatedAt),
		StartedAt:   unixNanoPtr(j.StartedAt),
		CompletedAt: unixNanoPtr(j.CompletedAt),
	}
	return msgpack.Marshal(&rec)
}

// decodeJob rebuilds a job from its Hash fields. The live fields written by
// the scripts take precedence over the record.
func decodeJob(fields map[string]string) (*job.Job, error) {
	var rec jobRecord
	if err := msgpack.Unmarshal([]byte(fields["data"]), &rec); err != nil {
		return nil, fmt.Errorf("redis: decode job: %w", err)
	}
	jobID, err := id.ParseJobID(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("redis: parse job id: %w", err)
	}

	j := &job.Job{
		ID:          jobID,
		Type:        rec.Type,
		Queue:       rec.Queue,
		Payload:     rec.Payload,
		State:       job.State(rec.State),
		Mode:        job.Mode(rec.Mode),
		Priority:    rec.Priority,
		Attempts:    rec.Attempts,
		MaxAttempts: rec.MaxAttempts,
		Delay:       time.Duration(rec.Delay),
		Timeout:     time.Duration(rec.Timeout),
		LastError:   rec.LastError,
		Seq:         rec.Seq,
		RunAt:       fromUnixNano(rec.RunAt),
		EnqueuedAt:  fromUnixNano(rec.EnqueuedAt),
		UpdatedAt:   fromUnixNano(rec.UpdatedAt),
		StartedAt:   fromUnixNanoPtr(rec.StartedAt),
		CompletedAt: fromUnixNanoPtr(rec.CompletedAt),
	}

	if v, ok := fields["state"]; ok && v != "" {
		j.State = job.State(v)
	}
	if v := fields["worker_id"]; v != "" {
		j.WorkerID, _ = id.ParseWorkerID(v) //nolint:errcheck // written by this package
	}
	if v := fields["lease_id"]; v != "" {
		j.LeaseID, _ = id.ParseLeaseID(v) //nolint:errcheck // written by this package
	}
	if t := parseLiveTime(fields["started_at"]); t != nil {
		j.StartedAt = t
	}
	j.HeartbeatAt = parseLiveTime(fields["heartbeat_at"])
	return j, nil
}

// dlqRecord is the msgpack form of a DLQ entry.
type dlqRecord struct {
	ID          string `msgpack:"id"`
	JobID       string `msgpack:"job_id"`
	JobType     string `msgpack:"job_type"`
	Queue       string `msgpack:"queue"`
	Payload     []byte `msgpack:"payload"`
	Error       string `msgpack:"error"`
	Attempts    int    `msgpack:"attempts"`
	MaxAttempts int    `msgpack:"max_attempts"`
	Mode        string `msgpack:"mode"`
	FailedAt    int64  `msgpack:"failed_at"`
	ReplayedAt  int64  `msgpack:"replayed_at,omitempty"`
	CreatedAt   int64  `msgpack:"created_at"`
}

func encodeDLQ(e *dlq.Entry) ([]byte, error) {
	return msgpack.Marshal(&dlqRecord{
		ID:          e.ID.String(),
		JobID:       e.JobID.String(),
		JobType:     e.JobType,
		Queue:       e.Queue,
		Payload:     e.Payload,
		Error:       e.Error,
		Attempts:    e.Attempts,
		MaxAttempts: e.MaxAttempts,
		Mode:        string(e.Mode),
		FailedAt:    unixNano(e.FailedAt),
		ReplayedAt:  unixNanoPtr(e.ReplayedAt),
		CreatedAt:   unixNano(e.CreatedAt),
	})
}

func decodeDLQ(data []byte) (*dlq.Entry, error) {
	var rec dlqRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("redis: decode dlq entry: %w", err)
	}
	entryID, err := id.ParseDLQID(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("redis: parse dlq id: %w", err)
	}
	jobID, _ := id.ParseJobID(rec.JobID) //nolint:errcheck // written by this package

	return &dlq.Entry{
		ID:          entryID,
		JobID:       jobID,
		JobType:     rec.JobType,
		Queue:       rec.Queue,
		Payload:     rec.Payload,
		Error:       rec.Error,
		Attempts:    rec.Attempts,
		MaxAttempts: rec.MaxAttempts,
		Mode:        job.Mode(rec.Mode),
		FailedAt:    fromUnixNano(rec.FailedAt),
		ReplayedAt:  fromUnixNanoPtr(rec.ReplayedAt),
		CreatedAt:   fromUnixNano(rec.CreatedAt),
	}, nil
}

// ── time helpers ──

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func unixNanoPtr(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return unixNano(*t)
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func fromUnixNanoPtr(n int64) *time.Time {
	if n == 0 {
		return nil
	}
	t := fromUnixNano(n)
	return &t
}

// liveTime formats a time for the script-managed Hash fields.
func liveTime(t time.Time) string { return strconv.FormatInt(t.UnixNano(), 10) }

func parseLiveTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return fromUnixNanoPtr(n)
}

// readyScore orders due jobs: higher priority first, then lower sequence.
// Sequences stay below 1e12 so the score is exact in a float64.
func readyScore(priority int, seq int64) float64 {
	return float64(-priority)*1e12 + float64(seq)
}
