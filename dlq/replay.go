package dlq

import (
	"context"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
)

// Replay enqueues a new waiting job carrying the entry's payload and marks
// the entry replayed. The failed job itself is left untouched.
func (s *Service) Replay(ctx context.Context, entryID id.DLQID) (*job.Job, error) {
	entry, err := s.store.GetDLQ(ctx, entryID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	j := &job.Job{
		ID:          id.NewJobID(),
		Type:        entry.JobType,
		Queue:       entry.Queue,
		Payload:     entry.Payload,
		State:       job.StateWaiting,
		Mode:        job.ModeBroker,
		MaxAttempts: entry.MaxAttempts,
		RunAt:       now,
		EnqueuedAt:  now,
		UpdatedAt:   now,
	}
	if err := s.jobStore.EnqueueJob(ctx, j); err != nil {
		return nil, err
	}

	// The job is already enqueued; report the marking failure alongside it.
	if err := s.store.ReplayDLQ(ctx, entryID); err != nil {
		return j, err
	}
	return j, nil
}
