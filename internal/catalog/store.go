// Package catalog defines the store the sync engine writes into, plus two
// implementations: a Postgres store for production and an in-memory
// reference store for tests.
package catalog

import (
	"context"
	"errors"

	"medstaff/sync-service/internal/model"
)

// ErrUnavailable means the store itself is unreachable, as opposed to a
// single record failing. The orchestrator aborts the run on this error and
// keeps going on anything else.
var ErrUnavailable = errors.New("catalog store unavailable")

// Store persists catalog job records. Upsert is keyed on the upstream
// identifier and must be idempotent: re-applying the same record converges
// to the same state, with createdAt stable and updatedAt bumped. The store
// serializes concurrent upserts to the same identifier and drops writes
// whose upstream timestamp is older than the stored one.
//
// MarkExpired transitions a record's status to expired without removing it;
// the bool reports whether the record existed.
type Store interface {
	Upsert(ctx context.Context, rec model.CatalogJobRecord) (model.CatalogJobRecord, error)
	MarkExpired(ctx context.Context, upstreamID string) (bool, error)
}

// applyExisting merges an incoming write onto a stored record: stale writes
// (older upstream timestamp) are dropped, disallowed lifecycle transitions
// keep the stored status, and createdAt always survives. Shared by both
// implementations so their semantics cannot drift.
func applyExisting(existing, incoming model.CatalogJobRecord) (model.CatalogJobRecord, bool) {
	if staleWrite(existing, incoming) {
		return existing, false
	}
	if !model.IsTransitionAllowed(existing.Status, incoming.Status) {
		incoming.Status = existing.Status
	}
	incoming.CreatedAt = existing.CreatedAt
	return incoming, true
}

// staleWrite is the last-writer-by-upstream-timestamp rule. Records without
// an upstream timestamp fall back to last-writer-wins by arrival.
func staleWrite(existing, incoming model.CatalogJobRecord) bool {
	e, i := existing.Metadata.UpstreamUpdatedAt, incoming.Metadata.UpstreamUpdatedAt
	return e != nil && i != nil && i.Before(*e)
}
