package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCircuitOpen is returned without invoking the operation while the
// breaker presumes the dependency unhealthy.
var ErrCircuitOpen = errors.New("circuit open")

// BreakerState is the breaker's position in its state machine.
//
//	Closed ──(threshold failures)──► Open ──(reset timeout)──► HalfOpen
//	   ▲                               ▲                           │
//	   └──(required successes)─────────┼──(any failure)────────────┘
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half-open"
)

// BreakerConfig parameterizes the state machine. Zero values are replaced
// by the documented defaults.
type BreakerConfig struct {
	FailureThreshold  int           // consecutive failures that open the circuit (default 5)
	ResetTimeout      time.Duration // how long Open rejects before trialing (default 30s)
	HalfOpenSuccesses int           // consecutive successes that close it again (default 2)
	HalfOpenMaxCalls  int           // concurrent trial calls admitted in HalfOpen (default 1)
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = 2
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 1
	}
	return c
}

// Breaker is a circuit breaker for one upstream dependency. Exactly one
// instance per dependency is shared by all call sites, so failures observed
// anywhere open the circuit everywhere.
type Breaker struct {
	name string
	cfg  BreakerConfig
	log  *logrus.Entry

	mu               sync.Mutex
	state            BreakerState
	failures         int
	successes        int
	openedAt         time.Time
	halfOpenInFlight int

	now func() time.Time
}

// NewBreaker constructs a closed Breaker named after its dependency.
func NewBreaker(name string, cfg BreakerConfig, log *logrus.Entry) *Breaker {
	return &Breaker{
		name:  name,
		cfg:   cfg.withDefaults(),
		log:   log,
		state: StateClosed,
		now:   time.Now,
	}
}

// Name identifies the guarded dependency on the status surface.
func (b *Breaker) Name() string { return b.name }

// State reports the current state, transitioning Open → HalfOpen first if
// the reset timeout has elapsed, so the status surface never reports a
// stale Open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && !b.now().Before(b.openedAt.Add(b.cfg.ResetTimeout)) {
		b.transition(StateHalfOpen)
	}
	return b.state
}

// Do runs op through the breaker. While Open it fails fast with
// ErrCircuitOpen and op is never invoked. Context cancellation is counted
// as neither success nor failure — it says nothing about the dependency.
func (b *Breaker) Do(ctx context.Context, op func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := op(ctx)
	b.record(err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Before(b.openedAt.Add(b.cfg.ResetTimeout)) {
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxCalls {
			return ErrCircuitOpen
		}
		b.halfOpenInFlight++
		return nil
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.halfOpenInFlight--
	}
	if err != nil && errors.Is(err, context.Canceled) {
		return
	}

	switch b.state {
	case StateClosed:
		if err == nil {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		if err != nil {
			// Any trial failure reopens immediately and restarts the timer.
			b.transition(StateOpen)
			return
		}
		b.successes++
		if b.successes >= b.cfg.HalfOpenSuccesses {
			b.transition(StateClosed)
		}
	}
}

// transition switches state and resets the counters. Caller holds b.mu.
func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	b.halfOpenInFlight = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
	b.log.WithFields(logrus.Fields{
		"dependency": b.name,
		"from":       string(from),
		"to":         string(to),
	}).Warn("circuit breaker state change")
}
