package dlq

import (
	"context"
	"time"

	"github.com/debnit/MsmeBazaar-sub000/id"
)

// ListOpts controls pagination and filtering for DLQ list queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
	// Queue filters by queue name. Empty means all queues.
	Queue string
}

// Store defines the persistence contract for the dead letter queue.
type Store interface {
	// PushDLQ adds an entry.
	PushDLQ(ctx context.Context, entry *Entry) error

	// ListDLQ returns entries, oldest failure first.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// GetDLQ retrieves an entry by ID.
	GetDLQ(ctx context.Context, entryID id.DLQID) (*Entry, error)

	// ReplayDLQ marks an entry as replayed. Re-enqueueing is done by Service.
	ReplayDLQ(ctx context.Context, entryID id.DLQID) error

	// PurgeDLQ removes entries that failed before the given time and returns
	// how many were removed.
	PurgeDLQ(ctx context.Context, before time.Time) (int64, error)

	// CountDLQ returns the number of entries.
	CountDLQ(ctx context.Context) (int64, error)
}
