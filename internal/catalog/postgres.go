package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medstaff/sync-service/internal/model"
)

// PostgresStore persists catalog records in the catalog_jobs table:
//
//	upstream_id          text primary key
//	title, specialty, facility_name, status   text
//	featured, urgent     boolean
//	location, duration, compensation, shift, requirements, metadata   jsonb
//	upstream_updated_at  timestamptz null
//	created_at, updated_at   timestamptz
//
// Per-record serialization comes from SELECT ... FOR UPDATE inside a
// transaction, so a webhook upsert racing an incremental-sync upsert for
// the same job applies the same stale-write rule as the reference store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type recordColumns struct {
	location     []byte
	duration     []byte
	compensation []byte
	shift        []byte
	requirements []byte
	metadata     []byte
}

func marshalColumns(rec model.CatalogJobRecord) (recordColumns, error) {
	var c recordColumns
	var err error
	if c.location, err = json.Marshal(rec.Location); err != nil {
		return c, err
	}
	if c.duration, err = json.Marshal(rec.Duration); err != nil {
		return c, err
	}
	if c.compensation, err = json.Marshal(rec.Compensation); err != nil {
		return c, err
	}
	if c.shift, err = json.Marshal(rec.Shift); err != nil {
		return c, err
	}
	if c.requirements, err = json.Marshal(rec.Requirements); err != nil {
		return c, err
	}
	c.metadata, err = json.Marshal(rec.Metadata)
	return c, err
}

// Upsert inserts or updates one record inside a transaction holding the
// record's row lock.
func (s *PostgresStore) Upsert(ctx context.Context, rec model.CatalogJobRecord) (model.CatalogJobRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.CatalogJobRecord{}, fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var existing model.CatalogJobRecord
	var haveExisting bool
	var existingUpdatedAt *time.Time
	row := tx.QueryRow(ctx,
		`SELECT status, created_at, upstream_updated_at
		 FROM catalog_jobs
		 WHERE upstream_id = $1
		 FOR UPDATE`,
		rec.UpstreamID,
	)
	var status string
	switch err := row.Scan(&status, &existing.CreatedAt, &existingUpdatedAt); {
	case err == nil:
		haveExisting = true
		existing.UpstreamID = rec.UpstreamID
		existing.Status = model.JobStatus(status)
		existing.Metadata.UpstreamUpdatedAt = existingUpdatedAt
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return model.CatalogJobRecord{}, fmt.Errorf("select catalog_jobs %s: %w", rec.UpstreamID, err)
	}

	cols, err := marshalColumns(rec)
	if err != nil {
		return model.CatalogJobRecord{}, fmt.Errorf("marshal catalog_jobs %s: %w", rec.UpstreamID, err)
	}

	if !haveExisting {
		err = tx.QueryRow(ctx,
			`INSERT INTO catalog_jobs
			   (upstream_id, title, specialty, facility_name, status, featured, urgent,
			    location, duration, compensation, shift, requirements, metadata,
			    upstream_updated_at, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())
			 RETURNING created_at, updated_at`,
			rec.UpstreamID, rec.Title, rec.Specialty, rec.FacilityName, string(rec.Status),
			rec.Featured, rec.Urgent,
			cols.location, cols.duration, cols.compensation, cols.shift, cols.requirements, cols.metadata,
			rec.Metadata.UpstreamUpdatedAt,
		).Scan(&rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			return model.CatalogJobRecord{}, fmt.Errorf("insert catalog_jobs %s: %w", rec.UpstreamID, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return model.CatalogJobRecord{}, fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
		}
		return rec, nil
	}

	merged, changed := applyExisting(existing, rec)
	if !changed {
		// Stale write: keep the stored row, nothing to commit.
		return s.get(ctx, tx, rec.UpstreamID)
	}

	err = tx.QueryRow(ctx,
		`UPDATE catalog_jobs SET
		   title = $2, specialty = $3, facility_name = $4, status = $5,
		   featured = $6, urgent = $7,
		   location = $8, duration = $9, compensation = $10, shift = $11,
		   requirements = $12, metadata = $13, upstream_updated_at = $14,
		   updated_at = now()
		 WHERE upstream_id = $1
		 RETURNING created_at, updated_at`,
		merged.UpstreamID, merged.Title, merged.Specialty, merged.FacilityName, string(merged.Status),
		merged.Featured, merged.Urgent,
		cols.location, cols.duration, cols.compensation, cols.shift, cols.requirements, cols.metadata,
		merged.Metadata.UpstreamUpdatedAt,
	).Scan(&merged.CreatedAt, &merged.UpdatedAt)
	if err != nil {
		return model.CatalogJobRecord{}, fmt.Errorf("update catalog_jobs %s: %w", rec.UpstreamID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.CatalogJobRecord{}, fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}
	return merged, nil
}

// MarkExpired transitions the record to expired in place.
func (s *PostgresStore) MarkExpired(ctx context.Context, upstreamID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE catalog_jobs
		 SET status = $2, updated_at = now()
		 WHERE upstream_id = $1`,
		upstreamID, string(model.StatusExpired),
	)
	if err != nil {
		return false, fmt.Errorf("mark expired %s: %w", upstreamID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) get(ctx context.Context, tx pgx.Tx, upstreamID string) (model.CatalogJobRecord, error) {
	var rec model.CatalogJobRecord
	var status string
	var location, duration, compensation, shift, requirements, metadata []byte
	err := tx.QueryRow(ctx,
		`SELECT upstream_id, title, specialty, facility_name, status, featured, urgent,
		        location, duration, compensation, shift, requirements, metadata,
		        created_at, updated_at
		 FROM catalog_jobs WHERE upstream_id = $1`,
		upstreamID,
	).Scan(&rec.UpstreamID, &rec.Title, &rec.Specialty, &rec.FacilityName, &status,
		&rec.Featured, &rec.Urgent,
		&location, &duration, &compensation, &shift, &requirements, &metadata,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return model.CatalogJobRecord{}, fmt.Errorf("select catalog_jobs %s: %w", upstreamID, err)
	}
	rec.Status = model.JobStatus(status)
	for _, pair := range []struct {
		raw []byte
		out interface{}
	}{
		{location, &rec.Location},
		{duration, &rec.Duration},
		{compensation, &rec.Compensation},
		{shift, &rec.Shift},
		{requirements, &rec.Requirements},
		{metadata, &rec.Metadata},
	} {
		if err := json.Unmarshal(pair.raw, pair.out); err != nil {
			return model.CatalogJobRecord{}, fmt.Errorf("decode catalog_jobs %s: %w", upstreamID, err)
		}
	}
	return rec, nil
}
