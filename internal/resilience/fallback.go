package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllBackendsFailed is returned when every entry of a [FallbackGroup]
// failed or had an open breaker. The last underlying error is wrapped.
var ErrAllBackendsFailed = errors.New("resilience: all backends failed")

// GroupConfig configures a [FallbackGroup] and the breaker created for each
// of its entries.
type GroupConfig struct {
	Breaker BreakerConfig

	// Logger receives failover logs. Defaults to slog.Default().
	Logger *slog.Logger
}

type entry[T any] struct {
	name    string
	backend T
	breaker *Breaker
}

// FallbackGroup holds a primary backend and zero or more fallbacks of the
// same type. Calls go to the first entry whose breaker admits them; a
// failure moves on to the next entry in registration order.
type FallbackGroup[T any] struct {
	entries []entry[T]
	cfg     GroupConfig
	logger  *slog.Logger
}

// NewFallbackGroup creates a group with primary as its first entry.
func NewFallbackGroup[T any](name string, primary T, cfg GroupConfig) *FallbackGroup[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := &FallbackGroup[T]{cfg: cfg, logger: logger}
	g.Add(name, primary)
	return g
}

// Add appends a fallback backend. Fallbacks are tried in the order added.
func (g *FallbackGroup[T]) Add(name string, backend T) {
	bc := g.cfg.Breaker
	bc.Name = name
	if bc.Logger == nil {
		bc.Logger = g.logger
	}
	g.entries = append(g.entries, entry[T]{
		name:    name,
		backend: backend,
		breaker: NewBreaker(bc),
	})
}

// Len returns the number of registered backends.
func (g *FallbackGroup[T]) Len() int { return len(g.entries) }

// Available reports whether at least one backend's breaker currently admits
// calls. False means every entry is open and the next call can only fail.
func (g *FallbackGroup[T]) Available() bool {
	for i := range g.entries {
		if g.entries[i].breaker.State() != BreakerOpen {
			return true
		}
	}
	return false
}

// do tries fn against each entry until one succeeds. Entries with an open
// breaker are skipped without counting as a failure of their own.
func do[T, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range g.entries {
		e := &g.entries[i]
		var result R
		err := e.breaker.Do(func() error {
			var callErr error
			result, callErr = fn(e.backend)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			g.logger.Debug("backend skipped, breaker open", "backend", e.name)
		} else {
			g.logger.Warn("backend failed, trying next", "backend", e.name, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllBackendsFailed, lastErr)
}
