package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore keeps the small pieces of sync state that must survive a
// restart: the incremental watermark, the last full-sync instant, and the
// most recent run report. A zero time / nil report means "never recorded".
type StateStore interface {
	Watermark(ctx context.Context) (time.Time, error)
	SetWatermark(ctx context.Context, t time.Time) error
	LastFullSync(ctx context.Context) (time.Time, error)
	SetLastFullSync(ctx context.Context, t time.Time) error
	LastReport(ctx context.Context) (*Report, error)
	SetLastReport(ctx context.Context, r Report) error
}

const (
	keyWatermark    = "sync:watermark"
	keyLastFullSync = "sync:last_full_sync"
	keyLastReport   = "sync:last_report"
)

// RedisStateStore persists sync state under sync:* keys.
type RedisStateStore struct {
	rdb *redis.Client
}

func NewRedisStateStore(rdb *redis.Client) *RedisStateStore {
	return &RedisStateStore{rdb: rdb}
}

func (s *RedisStateStore) getTime(ctx context.Context, key string) (time.Time, error) {
	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("redis GET %s: %w", key, err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return t, nil
}

func (s *RedisStateStore) setTime(ctx context.Context, key string, t time.Time) error {
	if err := s.rdb.Set(ctx, key, t.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

func (s *RedisStateStore) Watermark(ctx context.Context) (time.Time, error) {
	return s.getTime(ctx, keyWatermark)
}

func (s *RedisStateStore) SetWatermark(ctx context.Context, t time.Time) error {
	return s.setTime(ctx, keyWatermark, t)
}

func (s *RedisStateStore) LastFullSync(ctx context.Context) (time.Time, error) {
	return s.getTime(ctx, keyLastFullSync)
}

func (s *RedisStateStore) SetLastFullSync(ctx context.Context, t time.Time) error {
	return s.setTime(ctx, keyLastFullSync, t)
}

func (s *RedisStateStore) LastReport(ctx context.Context) (*Report, error) {
	raw, err := s.rdb.Get(ctx, keyLastReport).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", keyLastReport, err)
	}
	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", keyLastReport, err)
	}
	return &r, nil
}

func (s *RedisStateStore) SetLastReport(ctx context.Context, r Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode %s: %w", keyLastReport, err)
	}
	if err := s.rdb.Set(ctx, keyLastReport, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", keyLastReport, err)
	}
	return nil
}

// MemoryStateStore is the in-process StateStore for tests and single-node
// setups without Redis.
type MemoryStateStore struct {
	mu           stdsync.Mutex
	watermark    time.Time
	lastFullSync time.Time
	lastReport   *Report
}

func NewMemoryStateStore() *MemoryStateStore { return &MemoryStateStore{} }

func (s *MemoryStateStore) Watermark(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark, nil
}

func (s *MemoryStateStore) SetWatermark(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermark = t
	return nil
}

func (s *MemoryStateStore) LastFullSync(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFullSync, nil
}

func (s *MemoryStateStore) SetLastFullSync(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFullSync = t
	return nil
}

func (s *MemoryStateStore) LastReport(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReport == nil {
		return nil, nil
	}
	r := *s.lastReport
	return &r, nil
}

func (s *MemoryStateStore) SetLastReport(ctx context.Context, r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = &r
	return nil
}
