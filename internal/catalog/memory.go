package catalog

import (
	"context"
	"sync"
	"time"

	"medstaff/sync-service/internal/model"
)

// MemoryStore is the reference Store implementation. A single mutex
// serializes all writes, which trivially satisfies the per-record
// serialization requirement at in-memory scale.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]model.CatalogJobRecord
	now     func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]model.CatalogJobRecord),
		now:     time.Now,
	}
}

// SetClock replaces the store's clock so tests can observe audit
// timestamp behavior deterministically.
func (m *MemoryStore) SetClock(now func() time.Time) { m.now = now }

// Upsert inserts or updates the record keyed by its upstream identifier.
func (m *MemoryStore) Upsert(ctx context.Context, rec model.CatalogJobRecord) (model.CatalogJobRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.CatalogJobRecord{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	existing, ok := m.records[rec.UpstreamID]
	if !ok {
		rec.CreatedAt = now
		rec.UpdatedAt = now
		m.records[rec.UpstreamID] = rec
		return rec, nil
	}

	merged, changed := applyExisting(existing, rec)
	if !changed {
		return existing, nil
	}
	merged.UpdatedAt = now
	m.records[rec.UpstreamID] = merged
	return merged, nil
}

// MarkExpired flips the record's status to expired, leaving every other
// field untouched.
func (m *MemoryStore) MarkExpired(ctx context.Context, upstreamID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[upstreamID]
	if !ok {
		return false, nil
	}
	rec.Status = model.StatusExpired
	rec.UpdatedAt = m.now()
	m.records[upstreamID] = rec
	return true, nil
}

// Get returns the stored record, for tests and the status surface.
func (m *MemoryStore) Get(upstreamID string) (model.CatalogJobRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[upstreamID]
	return rec, ok
}

// Len reports how many records the store holds.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
