package dlq

import (
	"context"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
)

// Service provides DLQ operations over a Store. Replay re-enqueues into
// jobStore.
type Service struct {
	store    Store
	jobStore job.Store
}

// NewService creates a DLQ service.
func NewService(store Store, jobStore job.Store) *Service {
	return &Service{store: store, jobStore: jobStore}
}

// Push records j, which just exhausted its attempts with jobErr.
func (s *Service) Push(ctx context.Context, j *job.Job, jobErr error) error {
	now := time.Now().UTC()
	msg := j.LastError
	if jobErr != nil {
		msg = jobErr.Error()
	}
	return s.store.PushDLQ(ctx, &Entry{
		ID:          id.NewDLQID(),
		JobID:       j.ID,
		JobType:     j.Type,
		Queue:       j.Queue,
		Payload:     j.Payload,
		Error:       msg,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		Mode:        j.Mode,
		FailedAt:    now,
		CreatedAt:   now,
	})
}

// List returns entries matching opts.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return s.store.ListDLQ(ctx, opts)
}

// Get returns a single entry.
func (s *Service) Get(ctx context.Context, entryID id.DLQID) (*Entry, error) {
	return s.store.GetDLQ(ctx, entryID)
}

// Count returns the number of entries.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.CountDLQ(ctx)
}

// Purge removes entries that failed before the given time.
func (s *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	return s.store.PurgeDLQ(ctx, before)
}

// DLQStore returns the underlying store.
func (s *Service) DLQStore() Store { return s.store }
