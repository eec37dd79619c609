package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log.WithField("component", "resilience")
}

// statusErr mimics the upstream client's classified HTTP error.
type statusErr struct {
	code      int
	retryable bool
}

func (e statusErr) Error() string   { return "status error" }
func (e statusErr) Retryable() bool { return e.retryable }

// newInstantRetryer records requested delays instead of sleeping, with
// jitter disabled so the backoff sequence is deterministic.
func newInstantRetryer(cfg RetryConfig, delays *[]time.Duration) *Retryer {
	r := NewRetryer(cfg, testLog())
	r.jitter = func(time.Duration) time.Duration { return 0 }
	r.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
	return r
}

// ── backoff sequence ───────────────────────────────────────────────────────

func TestBackoffDelay_SequenceAndCap(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:  10,
		InitialDelay: 1000 * time.Millisecond,
		MaxDelay:     30000 * time.Millisecond,
		Multiplier:   2,
	}
	wantMs := []int64{1000, 2000, 4000, 8000, 16000, 30000, 30000}
	for i, want := range wantMs {
		got := backoffDelay(cfg, i+1)
		if got.Milliseconds() != want {
			t.Errorf("backoffDelay(attempt %d) = %v, want %dms", i+1, got, want)
		}
	}
}

func TestDo_SleepsBetweenRetryableFailures(t *testing.T) {
	var delays []time.Duration
	r := newInstantRetryer(RetryConfig{
		MaxAttempts:  4,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}, &delays)

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		return statusErr{code: 503, retryable: true}
	})
	if err == nil {
		t.Fatal("Do should surface the last error")
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("slept %d times (%v), want %d", len(delays), delays, len(want))
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

// ── classification ─────────────────────────────────────────────────────────

func TestDo_PermanentFailureNotRetried(t *testing.T) {
	var delays []time.Duration
	r := newInstantRetryer(DefaultRetryConfig(), &delays)

	attempts := 0
	wantErr := statusErr{code: 404, retryable: false}
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		return wantErr
	})
	var got statusErr
	if !errors.As(err, &got) || got.code != 404 {
		t.Fatalf("err = %v, want the 404 error", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (4xx is not retryable)", attempts)
	}
	if len(delays) != 0 {
		t.Errorf("slept %d times, want 0", len(delays))
	}
}

func TestDo_CircuitOpenNotRetried(t *testing.T) {
	var delays []time.Duration
	r := newInstantRetryer(DefaultRetryConfig(), &delays)

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		return ErrCircuitOpen
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (open circuit means back off entirely)", attempts)
	}
}

func TestDo_LastErrorSurfacedUnchanged(t *testing.T) {
	var delays []time.Duration
	r := newInstantRetryer(RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Second,
		MaxDelay:     time.Second,
		Multiplier:   2,
	}, &delays)

	last := statusErr{code: 500, retryable: true}
	err := r.Do(context.Background(), func(context.Context) error { return last })
	var got statusErr
	if !errors.As(err, &got) || got.code != 500 {
		t.Errorf("err = %v, want the original 500 error", err)
	}
}

func TestDo_SuccessAfterFailure(t *testing.T) {
	var delays []time.Duration
	r := newInstantRetryer(DefaultRetryConfig(), &delays)

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return statusErr{code: 502, retryable: true}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDo_CancelledContextStopsRetrying(t *testing.T) {
	r := NewRetryer(DefaultRetryConfig(), testLog())
	r.jitter = func(time.Duration) time.Duration { return 0 }
	r.sleep = sleepCtx

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	failure := statusErr{code: 503, retryable: true}
	err := r.Do(ctx, func(context.Context) error {
		attempts++
		cancel() // cancelled mid-run: the backoff sleep must abort
		return failure
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	var got statusErr
	if !errors.As(err, &got) {
		t.Errorf("err = %v, want the last operation error", err)
	}
}

// ── IsRetryable ────────────────────────────────────────────────────────────

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"classified retryable", statusErr{code: 429, retryable: true}, true},
		{"classified permanent", statusErr{code: 400, retryable: false}, false},
		{"circuit open", ErrCircuitOpen, false},
		{"context cancelled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"plain error", errors.New("boom"), false},
	}
	for _, c := range cases {
		if got := IsRetryable(c.err); got != c.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", c.name, got, c.want)
		}
	}
}
