package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	escrow "github.com/debnit/MsmeBazaar-sub000"
	"github.com/debnit/MsmeBazaar-sub000/dlq"
	"github.com/debnit/MsmeBazaar-sub000/id"
)

// PushDLQ adds an entry to the dead letter queue.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	data, err := encodeDLQ(entry)
	if err != nil {
		return fmt.Errorf("redis: encode dlq entry: %w", err)
	}
	eID := entry.ID.String()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.keys.dlq(), eID, data)
	pipe.ZAdd(ctx, s.keys.dlqByFailedAt(), goredis.Z{Score: float64(entry.FailedAt.UnixMilli()), Member: eID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns entries, oldest failure first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	ids, err := s.client.ZRange(ctx, s.keys.dlqByFailedAt(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list dlq: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := s.client.HMGet(ctx, s.keys.dlq(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list dlq: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		e, err := decodeDLQ([]byte(raw))
		if err != nil {
			continue
		}
		if opts.Queue != "" && e.Queue != opts.Queue {
			continue
		}
		entries = append(entries, e)
	}

	if opts.Offset >= len(entries) {
		return nil, nil
	}
	entries = entries[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// GetDLQ retrieves an entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	raw, err := s.client.HGet(ctx, s.keys.dlq(), entryID.String()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, escrow.ErrDLQNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get dlq: %w", err)
	}
	return decodeDLQ(raw)
}

// ReplayDLQ marks an entry as replayed.
func (s *Store) ReplayDLQ(ctx context.Context, entryID id.DLQID) error {
	e, err := s.GetDLQ(ctx, entryID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	e.ReplayedAt = &now

	data, err := encodeDLQ(e)
	if err != nil {
		return fmt.Errorf("redis: encode dlq entry: %w", err)
	}
	if err := s.client.HSet(ctx, s.keys.dlq(), entryID.String(), data).Err(); err != nil {
		return fmt.Errorf("redis: replay dlq: %w", err)
	}
	return nil
}

// PurgeDLQ removes entries that failed before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	maxScore := "(" + strconv.FormatInt(before.UnixMilli(), 10)
	ids, err := s.client.ZRangeByScore(ctx, s.keys.dlqByFailedAt(), &goredis.ZRangeBy{Min: "-inf", Max: maxScore}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: purge dlq: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	members := make([]any, len(ids))
	for i, v := range ids {
		members[i] = v
	}
	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, s.keys.dlq(), ids...)
	pipe.ZRem(ctx, s.keys.dlqByFailedAt(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis: purge dlq: %w", err)
	}
	return int64(len(ids)), nil
}

// CountDLQ returns the number of entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	n, err := s.client.HLen(ctx, s.keys.dlq()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: count dlq: %w", err)
	}
	return n, nil
}
