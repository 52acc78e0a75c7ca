package memory

import (
	"context"
	"sort"
	"time"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
)

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// EnqueueJob persists a new job. Seq is assigned when zero and written back
// to j.
func (m *Store) EnqueueJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable != nil {
		return m.unavailable
	}
	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return escrow.ErrJobAlreadyExists
	}

	if j.Seq == 0 {
		m.jobSeq++
		j.Seq = m.jobSeq
	} else if j.Seq > m.jobSeq {
		m.jobSeq = j.Seq
	}
	if j.State == "" {
		j.State = job.StateWaiting
	}
	if j.RunAt.IsZero() {
		j.RunAt = time.Now().UTC()
	}
	m.jobs[key] = j.Clone()
	return nil
}

// DequeueJobs claims up to limit waiting jobs from the given queues. An
// empty queue list matches every queue.
func (m *Store) DequeueJobs(_ context.Context, queues []string, workerID id.WorkerID, limit int) ([]*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable != nil {
		return nil, m.unavailable
	}

	queueSet := make(map[string]struct{}, len(queues))
	for _, q := range queues {
		queueSet[q] = struct{}{}
	}

	now := time.Now().UTC()
	var candidates []*job.Job
	for _, j := range m.jobs {
		if j.State != job.StateWaiting || j.RunAt.After(now) {
			continue
		}
		if len(queueSet) > 0 {
			if _, ok := queueSet[j.Queue]; !ok {
				continue
			}
		}
		candidates = append(candidates, j)
	}

	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].Priority != candidates[b].Priority {
			return candidates[a].Priority > candidates[b].Priority
		}
		return candidates[a].Seq < candidates[b].Seq
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]*job.Job, 0, len(candidates))
	for _, j := range candidates {
		started := now
		hb := now
		j.State = job.StateActive
		j.WorkerID = workerID
		j.LeaseID = id.NewLeaseID()
		j.StartedAt = &started
		j.HeartbeatAt = &hb
		j.UpdatedAt = now
		result = append(result, j.Clone())
	}
	return result, nil
}

// GetJob returns a copy of the job.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, escrow.ErrJobNotFound
	}
	return j.Clone(), nil
}

// SettleJob stores the outcome of an active job held under j.LeaseID. The
// lease is released.
func (m *Store) SettleJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.jobs[j.ID.String()]
	if !ok {
		return escrow.ErrJobNotFound
	}
	if stored.State != job.StateActive || stored.LeaseID.String() != j.LeaseID.String() {
		return escrow.ErrLeaseLost
	}

	cp := j.Clone()
	cp.LeaseID = id.Nil
	cp.HeartbeatAt = nil
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[cp.ID.String()] = cp
	return nil
}

// RemoveJob deletes a waiting job.
func (m *Store) RemoveJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return escrow.ErrJobNotFound
	}
	if j.State != job.StateWaiting {
		return escrow.ErrInvalidState
	}
	delete(m.jobs, jobID.String())
	return nil
}

// HeartbeatJob refreshes HeartbeatAt for an active job held by lease.
func (m *Store) HeartbeatJob(_ context.Context, jobID id.JobID, lease id.LeaseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return escrow.ErrJobNotFound
	}
	if j.State != job.StateActive || j.LeaseID.String() != lease.String() {
		return escrow.ErrLeaseLost
	}
	now := time.Now().UTC()
	j.HeartbeatAt = &now
	j.UpdatedAt = now
	return nil
}

// RequeueStalledJobs moves stale active jobs in queue back to waiting.
func (m *Store) RequeueStalledJobs(_ context.Context, queue string, threshold time.Duration) ([]*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	cutoff := now.Add(-threshold)

	var requeued []*job.Job
	for _, j := range m.jobs {
		if j.State != job.StateActive || j.Queue != queue {
			continue
		}
		if j.LastSeen().After(cutoff) {
			continue
		}
		j.State = job.StateWaiting
		j.WorkerID = id.Nil
		j.LeaseID = id.Nil
		j.HeartbeatAt = nil
		j.RunAt = now
		j.UpdatedAt = now
		requeued = append(requeued, j.Clone())
	}
	sortBySeq(requeued)
	return requeued, nil
}

// ListJobsByState returns jobs in the given state ordered by Seq.
func (m *Store) ListJobsByState(_ context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*job.Job
	for _, j := range m.jobs {
		if j.State != state {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		result = append(result, j.Clone())
	}
	sortBySeq(result)
	return paginate(result, opts.Offset, opts.Limit), nil
}

// CountJobs returns the number of jobs matching opts.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, j := range m.jobs {
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		if opts.State != "" && j.State != opts.State {
			continue
		}
		count++
	}
	return count, nil
}

func sortBySeq(jobs []*job.Job) {
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].Seq < jobs[b].Seq })
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
