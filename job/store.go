package job

import (
	"context"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/id"
)

// ListOpts controls pagination and filtering for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
	// Queue filters by queue name. Empty means all queues.
	Queue string
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	Queue string
	State State
}

// Store defines the persistence contract for jobs.
type Store interface {
	// EnqueueJob persists a new job. The store assigns Seq when it is zero.
	EnqueueJob(ctx context.Context, j *Job) error

	// DequeueJobs atomically claims up to limit waiting jobs whose RunAt has
	// passed, ordered by priority (descending) then Seq (ascending). Each
	// claimed job is set active with WorkerID = workerID and a fresh LeaseID.
	DequeueJobs(ctx context.Context, queues []string, workerID id.WorkerID, limit int) ([]*Job, error)

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// SettleJob persists the outcome of an active job (completed, waiting
	// for retry, or failed). It returns escrow.ErrLeaseLost unless the stored
	// job is still active under j.LeaseID.
	SettleJob(ctx context.Context, j *Job) error

	// RemoveJob deletes a waiting job. It returns escrow.ErrInvalidState for
	// any other state.
	RemoveJob(ctx context.Context, jobID id.JobID) error

	// HeartbeatJob refreshes HeartbeatAt for an active job held by lease.
	HeartbeatJob(ctx context.Context, jobID id.JobID, lease id.LeaseID) error

	// RequeueStalledJobs moves active jobs in queue whose LastSeen is older
	// than threshold back to waiting, revoking their lease. Attempts are not
	// consumed. It returns the requeued jobs.
	RequeueStalledJobs(ctx context.Context, queue string, threshold time.Duration) ([]*Job, error)

	// ListJobsByState returns jobs in the given state.
	ListJobsByState(ctx context.Context, state State, opts ListOpts) ([]*Job, error)

	// CountJobs returns the number of jobs matching opts.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)
}
