// Package resilience provides failover across interchangeable provider
// backends. A [FallbackGroup] tries a primary and then each registered
// fallback in order; every entry carries its own three-state [Breaker]
// (closed, open, half-open) so a backend that keeps failing is skipped
// without paying its timeout on every turn.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by [Breaker.Do] while the breaker is open and
// the cooldown has not elapsed.
var ErrBreakerOpen = errors.New("resilience: breaker open")

// BreakerState is the operating mode of a [Breaker].
type BreakerState int

const (
	// BreakerClosed forwards every call.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls with [ErrBreakerOpen] until the cooldown
	// elapses.
	BreakerOpen

	// BreakerHalfOpen lets a bounded number of probe calls through; enough
	// successes close the breaker, any failure re-opens it.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig tunes a [Breaker]. Zero fields select the defaults.
type BreakerConfig struct {
	// Name labels the breaker in log lines, usually the provider type.
	Name string

	// MaxFailures is the consecutive-failure count that opens the breaker.
	// Default 5.
	MaxFailures int

	// Cooldown is how long the breaker stays open before probing again.
	// Default 30s.
	Cooldown time.Duration

	// ProbeBudget bounds the calls admitted while half-open. Default 3.
	ProbeBudget int

	// Logger receives state-transition logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Breaker is a three-state circuit breaker.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	probeBudget int
	logger      *slog.Logger

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	probes      int
	probeFails  int
}

// NewBreaker creates a Breaker from cfg, filling defaults for zero fields.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		probeBudget: cfg.ProbeBudget,
		logger:      cfg.Logger,
	}
}

// Do runs fn unless the breaker rejects the call. While open it returns
// [ErrBreakerOpen] without invoking fn; while half-open only the probe
// budget's worth of calls get through.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case BreakerOpen:
		if time.Since(b.lastFailure) < b.cooldown {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.state = BreakerHalfOpen
		b.probes = 0
		b.probeFails = 0
		b.logger.Info("breaker half-open", "name", b.name)

	case BreakerHalfOpen:
		if b.probes >= b.probeBudget {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
	}
	probing := b.state == BreakerHalfOpen
	if probing {
		b.probes++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(probing)
	} else {
		b.onSuccess(probing)
	}
	return err
}

// onFailure updates counters after a failed call. Caller holds b.mu.
func (b *Breaker) onFailure(probing bool) {
	b.lastFailure = time.Now()
	if probing {
		b.probeFails++
		b.state = BreakerOpen
		b.failures = b.maxFailures
		b.logger.Warn("breaker re-opened", "name", b.name)
		return
	}
	b.failures++
	if b.failures >= b.maxFailures {
		b.state = BreakerOpen
		b.logger.Warn("breaker opened", "name", b.name, "failures", b.failures)
	}
}

// onSuccess updates counters after a successful call. Caller holds b.mu.
func (b *Breaker) onSuccess(probing bool) {
	if !probing {
		b.failures = 0
		return
	}
	if b.probes-b.probeFails >= b.probeBudget {
		b.state = BreakerClosed
		b.failures = 0
		b.probes = 0
		b.probeFails = 0
		b.logger.Info("breaker closed", "name", b.name)
	}
}

// State returns the breaker's state. An open breaker whose cooldown has
// elapsed reports half-open; the transition itself happens on the next Do.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && time.Since(b.lastFailure) >= b.cooldown {
		return BreakerHalfOpen
	}
	return b.state
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.probes = 0
	b.probeFails = 0
}
