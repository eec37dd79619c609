package webhook_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"medstaff/sync-service/internal/catalog"
	"medstaff/sync-service/internal/metrics"
	"medstaff/sync-service/internal/model"
	"medstaff/sync-service/internal/webhook"
)

const testSecret = "whsec_test"

func newTestLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// countingStore tracks whether the catalog was touched at all.
type countingStore struct {
	inner   *catalog.MemoryStore
	upserts int
	expires int
}

func newCountingStore() *countingStore {
	return &countingStore{inner: catalog.NewMemoryStore()}
}

func (s *countingStore) Upsert(ctx context.Context, rec model.CatalogJobRecord) (model.CatalogJobRecord, error) {
	s.upserts++
	return s.inner.Upsert(ctx, rec)
}

func (s *countingStore) MarkExpired(ctx context.Context, id string) (bool, error) {
	s.expires++
	return s.inner.MarkExpired(ctx, id)
}

// ── signature verification ─────────────────────────────────────────────────

func TestVerifySignature(t *testing.T) {
	p := webhook.NewProcessor(testSecret, newCountingStore(), newTestLog())
	body := []byte(`{"type":"job.updated"}`)

	if err := p.VerifySignature(body, sign(body)); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}
	if err := p.VerifySignature(body, "sha256="+sign(body)); err != nil {
		t.Errorf("prefixed signature rejected: %v", err)
	}
	if err := p.VerifySignature(body, sign([]byte("other"))); !errors.Is(err, webhook.ErrInvalidSignature) {
		t.Errorf("wrong signature: err = %v, want ErrInvalidSignature", err)
	}
	if err := p.VerifySignature(body, ""); !errors.Is(err, webhook.ErrInvalidSignature) {
		t.Errorf("missing signature: err = %v, want ErrInvalidSignature", err)
	}
}

// ── event processing ───────────────────────────────────────────────────────

func TestProcess_CreatedUpserts(t *testing.T) {
	store := newCountingStore()
	p := webhook.NewProcessor(testSecret, store, newTestLog())

	ev := webhook.Event{
		Type:    webhook.EventJobCreated,
		Payload: &model.UpstreamJobPayload{ID: "J-9", Title: "ER RN", Status: "open"},
	}
	if err := p.Process(context.Background(), ev); err != nil {
		t.Fatalf("Process: %v", err)
	}

	rec, ok := store.inner.Get("J-9")
	if !ok {
		t.Fatal("record not stored")
	}
	if rec.Status != model.StatusActive {
		t.Errorf("status = %s, want active", rec.Status)
	}
}

func TestProcess_DeletedExpires(t *testing.T) {
	store := newCountingStore()
	store.inner.Upsert(context.Background(), model.CatalogJobRecord{UpstreamID: "J-9", Status: model.StatusActive})

	p := webhook.NewProcessor(testSecret, store, newTestLog())
	if err := p.Process(context.Background(), webhook.Event{Type: webhook.EventJobDeleted, JobID: "J-9"}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	rec, ok := store.inner.Get("J-9")
	if !ok {
		t.Fatal("record removed; deletions must be soft")
	}
	if rec.Status != model.StatusExpired {
		t.Errorf("status = %s, want expired", rec.Status)
	}
}

func TestProcess_DeletedUnknownRecordIgnored(t *testing.T) {
	p := webhook.NewProcessor(testSecret, newCountingStore(), newTestLog())
	if err := p.Process(context.Background(), webhook.Event{Type: webhook.EventJobDeleted, JobID: "never-seen"}); err != nil {
		t.Errorf("deletion of unknown record must not error, got %v", err)
	}
}

func TestProcess_UnknownTypeAcknowledged(t *testing.T) {
	store := newCountingStore()
	p := webhook.NewProcessor(testSecret, store, newTestLog())
	if err := p.Process(context.Background(), webhook.Event{Type: "job.starred"}); err != nil {
		t.Errorf("unknown type must not error, got %v", err)
	}
	if store.upserts != 0 || store.expires != 0 {
		t.Error("unknown event type touched the store")
	}
}

// ── HTTP handler ───────────────────────────────────────────────────────────

func newTestRouter(store catalog.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	p := webhook.NewProcessor(testSecret, store, newTestLog())
	h := webhook.NewHandler(p, metrics.NewCollector())
	r := gin.New()
	r.POST("/webhooks/jobs", h.Handle)
	return r
}

func TestHandle_ValidDelivery(t *testing.T) {
	store := newCountingStore()
	router := newTestRouter(store)

	body := []byte(`{"type":"job.updated","payload":{"id":"J-1","title":"ICU RN","status":"open"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/jobs", bytes.NewReader(body))
	req.Header.Set(webhook.SignatureHeader, sign(body))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	if store.upserts != 1 {
		t.Errorf("upserts = %d, want 1", store.upserts)
	}
}

func TestHandle_BadSignatureRejectedBeforeParsing(t *testing.T) {
	store := newCountingStore()
	router := newTestRouter(store)

	// Valid JSON, wrong signature: must be rejected without touching the store.
	body := []byte(`{"type":"job.updated","payload":{"id":"J-1","title":"ICU RN","status":"open"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/jobs", bytes.NewReader(body))
	req.Header.Set(webhook.SignatureHeader, sign([]byte("tampered")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if store.upserts != 0 || store.expires != 0 {
		t.Error("unauthenticated delivery reached the store")
	}
}

func TestHandle_MalformedBody(t *testing.T) {
	router := newTestRouter(newCountingStore())

	body := []byte(`{"type":`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/jobs", bytes.NewReader(body))
	req.Header.Set(webhook.SignatureHeader, sign(body))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
