// Package webhook applies near-real-time change notifications from the
// upstream ATS/VMS between scheduled sync runs.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"medstaff/sync-service/internal/catalog"
	"medstaff/sync-service/internal/model"
	"medstaff/sync-service/internal/transform"
)

// ErrInvalidSignature means the request body failed HMAC verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Event is the decoded webhook notification.
type Event struct {
	Type    string                    `json:"type"`
	JobID   string                    `json:"job_id"`
	Payload *model.UpstreamJobPayload `json:"payload"`
}

const (
	EventJobCreated = "job.created"
	EventJobUpdated = "job.updated"
	EventJobDeleted = "job.deleted"
)

// Processor verifies and applies webhook events against the catalog.
type Processor struct {
	secret []byte
	store  catalog.Store
	log    *logrus.Entry
	now    func() time.Time
}

func NewProcessor(secret string, store catalog.Store, log *logrus.Entry) *Processor {
	return &Processor{
		secret: []byte(secret),
		store:  store,
		log:    log,
		now:    time.Now,
	}
}

// VerifySignature checks the hex-encoded HMAC-SHA256 of the raw body against
// the signature header, which may carry a "sha256=" prefix. Verification
// happens before the body is parsed or touches the store.
func (p *Processor) VerifySignature(body []byte, signature string) error {
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, p.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Process applies one verified event. Created and updated events run through
// the same transform-and-upsert path as a sync run; deleted events soft-expire
// the record. Unknown event types are acknowledged and logged, so an upstream
// rollout of new types never fails deliveries.
func (p *Processor) Process(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventJobCreated, EventJobUpdated:
		if ev.Payload == nil {
			return fmt.Errorf("event %s without payload", ev.Type)
		}
		rec, err := transform.Job(*ev.Payload, p.now().UTC())
		if err != nil {
			return fmt.Errorf("transform webhook payload: %w", err)
		}
		if _, err := p.store.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("upsert %s: %w", rec.UpstreamID, err)
		}
		p.log.WithFields(logrus.Fields{"type": ev.Type, "upstream_id": rec.UpstreamID}).Info("webhook applied")
		return nil

	case EventJobDeleted:
		id := ev.JobID
		if id == "" && ev.Payload != nil {
			id = ev.Payload.ID
		}
		if id == "" {
			return errors.New("job.deleted event without a job identifier")
		}
		found, err := p.store.MarkExpired(ctx, id)
		if err != nil {
			return fmt.Errorf("expire %s: %w", id, err)
		}
		if !found {
			// A deletion for a job we never saw is normal during backfill.
			p.log.WithField("upstream_id", id).Info("job.deleted for unknown record, ignored")
			return nil
		}
		p.log.WithField("upstream_id", id).Info("webhook expired record")
		return nil

	default:
		p.log.WithField("type", ev.Type).Warn("unknown webhook event type, ignored")
		return nil
	}
}
