package memory

import (
	"context"
	"sort"
	"time"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/dlq"
	"github.com/debnit/MsmeBazaar-sub000/id"
)

// ──────────────────────────────────────────────────
// DLQ Store
// ──────────────────────────────────────────────────

// PushDLQ adds an entry.
func (m *Store) PushDLQ(_ context.Context, entry *dlq.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlqs[entry.ID.String()] = cloneEntry(entry)
	return nil
}

// ListDLQ returns entries, oldest failure first.
func (m *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*dlq.Entry
	for _, e := range m.dlqs {
		if opts.Queue != "" && e.Queue != opts.Queue {
			continue
		}
		result = append(result, cloneEntry(e))
	}
	sort.Slice(result, func(a, b int) bool {
		if !result[a].FailedAt.Equal(result[b].FailedAt) {
			return result[a].FailedAt.Before(result[b].FailedAt)
		}
		return result[a].ID.String() < result[b].ID.String()
	})
	return paginate(result, opts.Offset, opts.Limit), nil
}

// GetDLQ retrieves an entry by ID.
func (m *Store) GetDLQ(_ context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return nil, escrow.ErrDLQNotFound
	}
	return cloneEntry(e), nil
}

// ReplayDLQ marks an entry as replayed.
func (m *Store) ReplayDLQ(_ context.Context, entryID id.DLQID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return escrow.ErrDLQNotFound
	}
	now := time.Now().UTC()
	e.ReplayedAt = &now
	return nil
}

// PurgeDLQ removes entries that failed before the given time.
func (m *Store) PurgeDLQ(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key, e := range m.dlqs {
		if e.FailedAt.Before(before) {
			delete(m.dlqs, key)
			n++
		}
	}
	return n, nil
}

// CountDLQ returns the number of entries.
func (m *Store) CountDLQ(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.dlqs)), nil
}

func cloneEntry(e *dlq.Entry) *dlq.Entry {
	cp := *e
	if e.Payload != nil {
		cp.Payload = append([]byte(nil), e.Payload...)
	}
	if e.ReplayedAt != nil {
		t := *e.ReplayedAt
		cp.ReplayedAt = &t
	}
	return &cp
}
