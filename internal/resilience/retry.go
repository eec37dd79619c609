// Package resilience provides the two outbound-call guards used for every
// upstream request: retry with exponential backoff, and a circuit breaker.
// They are independent and compose by explicit nesting; the upstream client
// runs the breaker inside the retryer so the breaker observes every attempt.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// maxJitterFraction bounds the random jitter added to each backoff delay.
const maxJitterFraction = 0.3

// retryable is implemented by errors that know whether the failed call is
// worth repeating (e.g. upstream.StatusError).
type retryable interface {
	Retryable() bool
}

// IsRetryable classifies an error. Network-level errors (including request
// timeouts) are retryable; errors carrying their own classification are
// asked; a rejected call on an open circuit is not retryable — the caller
// should back off entirely. Everything else is permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// RetryConfig parameterizes backoff. All values come from configuration,
// never hard-coded at call sites.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns the stock parameters: 3 attempts, 1s initial
// delay doubling up to 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// Retryer invokes operations with retry-on-retryable-failure semantics.
type Retryer struct {
	cfg RetryConfig
	log *logrus.Entry

	// sleep and jitter are injectable so tests run without real delays.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(d time.Duration) time.Duration
}

// NewRetryer constructs a Retryer with real sleeping and random jitter.
func NewRetryer(cfg RetryConfig, log *logrus.Entry) *Retryer {
	return &Retryer{
		cfg:    cfg,
		log:    log,
		sleep:  sleepCtx,
		jitter: randomJitter,
	}
}

// Do invokes op up to MaxAttempts times. A non-retryable failure or an
// exhausted budget surfaces the last error unchanged. The backoff sleep is
// interruptible: a cancelled context stops retrying immediately.
func (r *Retryer) Do(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) || attempt == r.cfg.MaxAttempts {
			return lastErr
		}

		delay := backoffDelay(r.cfg, attempt)
		r.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
		}).WithError(lastErr).Warn("retrying upstream call")

		if err := r.sleep(ctx, delay+r.jitter(delay)); err != nil {
			return lastErr
		}
	}
	return lastErr
}

// backoffDelay computes the pre-jitter delay after the given attempt:
// min(initial * multiplier^(attempt-1), max).
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	d := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if d > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(d)
}

func randomJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(float64(d) * maxJitterFraction)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
