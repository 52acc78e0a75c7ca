package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/id"
	"github.com/debnit/MsmeBazaar-sub000/job"
)

// EnqueueJob stores a waiting job. Seq is drawn from a Redis counter when
// zero and written back to j.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	if j.Seq == 0 {
		seq, err := s.client.Incr(ctx, s.keys.jobSeq()).Result()
		if err != nil {
			return fmt.Errorf("redis: enqueue seq: %w", err)
		}
		j.Seq = seq
	}
	if j.State == "" {
		j.State = job.StateWaiting
	}
	if j.RunAt.IsZero() {
		j.RunAt = time.Now().UTC()
	}

	data, err := encodeJob(j)
	if err != nil {
		return fmt.Errorf("redis: encode job: %w", err)
	}

	jID := j.ID.String()
	res, err := enqueueScript.Run(ctx, s.client,
		[]string{s.keys.job(jID), s.keys.jobIDs(), s.keys.delayed(j.Queue)},
		jID, data, j.RunAt.UnixMilli(), readyScore(j.Priority, j.Seq),
	).Int()
	if err != nil {
		return fmt.Errorf("redis: enqueue job: %w", err)
	}
	if res == 0 {
		return escrow.ErrJobAlreadyExists
	}
	return nil
}

// DequeueJobs claims up to limit due jobs, visiting queues in order.
func (s *Store) DequeueJobs(ctx context.Context, queues []string, workerID id.WorkerID, limit int) ([]*job.Job, error) {
	if len(queues) == 0 {
		return nil, fmt.Errorf("%w: redis dequeue needs explicit queues", escrow.ErrValidation)
	}

	now := time.Now().UTC()
	var out []*job.Job
	for _, q := range queues {
		remaining := limit - len(out)
		if remaining <= 0 {
			break
		}

		args := []any{now.UnixMilli(), liveTime(now), workerID.String(), s.keys.job("")}
		for i := 0; i < remaining; i++ {
			args = append(args, id.NewLeaseID().String())
		}
		claimed, err := claimScript.Run(ctx, s.client,
			[]string{s.keys.delayed(q), s.keys.ready(q), s.keys.active(q)},
			args...,
		).StringSlice()
		if err != nil {
			return out, fmt.Errorf("redis: dequeue %s: %w", q, err)
		}

		for i := 0; i+1 < len(claimed); i += 2 {
			j, err := s.getJob(ctx, claimed[i])
			if err != nil {
				return out, err
			}
			out = append(out, j)
		}
	}
	return out, nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJob(ctx, jobID.String())
}

// SettleJob stores the outcome of an active job if its lease still holds.
func (s *Store) SettleJob(ctx context.Context, j *job.Job) error {
	j.UpdatedAt = time.Now().UTC()
	data, err := encodeJob(j)
	if err != nil {
		return fmt.Errorf("redis: encode job: %w", err)
	}

	jID := j.ID.String()
	res, err := settleScript.Run(ctx, s.client,
		[]string{s.keys.job(jID), s.keys.active(j.Queue), s.keys.delayed(j.Queue)},
		jID, j.LeaseID.String(), data, string(j.State), j.RunAt.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis: settle job: %w", err)
	}
	return scriptResult(res)
}

// RemoveJob deletes a waiting job.
func (s *Store) RemoveJob(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()
	raw, err := s.client.HGet(ctx, s.keys.job(jID), "data").Bytes()
	if errors.Is(err, goredis.Nil) {
		return escrow.ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("redis: remove job: %w", err)
	}
	j, err := decodeJob(map[string]string{"data": string(raw)})
	if err != nil {
		return err
	}

	res, err := removeScript.Run(ctx, s.client,
		[]string{s.keys.job(jID), s.keys.jobIDs(), s.keys.delayed(j.Queue), s.keys.ready(j.Queue)},
		jID,
	).Int()
	if err != nil {
		return fmt.Errorf("redis: remove job: %w", err)
	}
	if res == 0 {
		return fmt.Errorf("%w: job is not waiting", escrow.ErrInvalidState)
	}
	if res < 0 {
		return escrow.ErrJobNotFound
	}
	return nil
}

// HeartbeatJob refreshes the heartbeat of an active job held by lease.
func (s *Store) HeartbeatJob(ctx context.Context, jobID id.JobID, lease id.LeaseID) error {
	j, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	jID := jobID.String()
	res, err := heartbeatScript.Run(ctx, s.client,
		[]string{s.keys.job(jID), s.keys.active(j.Queue)},
		jID, lease.String(), now.UnixMilli(), liveTime(now),
	).Int()
	if err != nil {
		return fmt.Errorf("redis: heartbeat job: %w", err)
	}
	return scriptResult(res)
}

// RequeueStalledJobs moves active jobs not seen within threshold back to
// the ready set.
func (s *Store) RequeueStalledJobs(ctx context.Context, queue string, threshold time.Duration) ([]*job.Job, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	ids, err := requeueScript.Run(ctx, s.client,
		[]string{s.keys.active(queue), s.keys.ready(queue)},
		cutoff.UnixMilli(), s.keys.job(""),
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("redis: requeue stalled: %w", err)
	}

	out := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, err := s.getJob(ctx, jID)
		if err != nil {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

// ListJobsByState returns jobs in the given state ordered by sequence.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	jobs, err := s.scanJobs(ctx, func(j *job.Job) bool {
		return j.State == state && (opts.Queue == "" || j.Queue == opts.Queue)
	})
	if err != nil {
		return nil, err
	}

	if opts.Offset >= len(jobs) {
		return nil, nil
	}
	jobs = jobs[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(jobs) {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}

// CountJobs returns the number of jobs matching opts.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	jobs, err := s.scanJobs(ctx, func(j *job.Job) bool {
		return (opts.State == "" || j.State == opts.State) && (opts.Queue == "" || j.Queue == opts.Queue)
	})
	if err != nil {
		return 0, err
	}
	return int64(len(jobs)), nil
}

// ── helpers ──

func (s *Store) getJob(ctx context.Context, jID string) (*job.Job, error) {
	fields, err := s.client.HGetAll(ctx, s.keys.job(jID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get job: %w", err)
	}
	if len(fields) == 0 {
		return nil, escrow.ErrJobNotFound
	}
	return decodeJob(fields)
}

// scanJobs loads every job matching keep, sorted by Seq.
func (s *Store) scanJobs(ctx context.Context, keep func(*job.Job) bool) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, s.keys.jobIDs()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list job ids: %w", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	for i, jID := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.keys.job(jID))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("redis: list jobs: %w", err)
		}
	}

	var out []*job.Job
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue // removed since SMEMBERS
		}
		j, err := decodeJob(fields)
		if err != nil {
			s.logger.Warn("skipping undecodable job", "error", err.Error())
			continue
		}
		if keep(j) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Seq < out[b].Seq })
	return out, nil
}

func scriptResult(res int) error {
	switch {
	case res > 0:
		return nil
	case res == 0:
		return escrow.ErrLeaseLost
	default:
		return escrow.ErrJobNotFound
	}
}
