package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Pasan-pramu/remind"
	"github.com/Pasan-pramu/remind/dlq"
	"github.com/Pasan-pramu/remind/id"
)

func failedScore(t time.Time) float64 { return float64(t.UnixMilli()) }

// PushDLQ stores the entry and indexes it by failure time.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("remind/redis: encode dlq entry: %w", err)
	}
	eID := entry.ID.String()
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, dlqKey(eID), raw, 0)
		pipe.ZAdd(ctx, dlqFailedKey, goredis.Z{Score: failedScore(entry.FailedAt), Member: eID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("remind/redis: push dlq: %w", err)
	}
	return nil
}

// ListDLQ walks the failure index newest first. Without a queue filter
// the page is cut by the index itself.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	start, stop := int64(0), int64(-1)
	if opts.Queue == "" {
		start = int64(opts.Offset)
		if opts.Limit > 0 {
			stop = start + int64(opts.Limit) - 1
		}
	}
	ids, err := s.client.ZRevRange(ctx, dlqFailedKey, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("remind/redis: list dlq: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(ids))
	for _, eID := range ids {
		e, err := s.loadDLQ(ctx, eID)
		if errors.Is(err, remind.ErrDLQNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if opts.Queue == "" || e.Queue == opts.Queue {
			entries = append(entries, e)
		}
	}
	if opts.Queue != "" {
		entries = paginate(entries, opts.Offset, opts.Limit)
	}
	return entries, nil
}

// GetDLQ returns one entry.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	return s.loadDLQ(ctx, entryID.String())
}

// ReplayDLQ stamps the entry as replayed on the store clock.
func (s *Store) ReplayDLQ(ctx context.Context, entryID id.DLQID) error {
	e, err := s.loadDLQ(ctx, entryID.String())
	if err != nil {
		return err
	}
	at := s.now()
	e.ReplayedAt = &at
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("remind/redis: encode dlq entry: %w", err)
	}
	if err := s.client.Set(ctx, dlqKey(entryID.String()), raw, 0).Err(); err != nil {
		return fmt.Errorf("remind/redis: replay dlq: %w", err)
	}
	return nil
}

// PurgeDLQ deletes entries that failed strictly before the cutoff.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.client.ZRangeByScore(ctx, dlqFailedKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("remind/redis: purge dlq scan: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, eID := range ids {
		keys[i] = dlqKey(eID)
		members[i] = eID
	}
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, dlqFailedKey, members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("remind/redis: purge dlq: %w", err)
	}
	return int64(len(ids)), nil
}

// CountDLQ returns the size of the failure index.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, dlqFailedKey).Result()
	if err != nil {
		return 0, fmt.Errorf("remind/redis: count dlq: %w", err)
	}
	return n, nil
}

func (s *Store) loadDLQ(ctx context.Context, eID string) (*dlq.Entry, error) {
	raw, err := s.client.Get(ctx, dlqKey(eID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, remind.ErrDLQNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("remind/redis: get dlq: %w", err)
	}
	var e dlq.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("remind/redis: decode dlq entry %s: %w", eID, err)
	}
	return &e, nil
}
