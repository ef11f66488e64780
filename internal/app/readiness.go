package app

import (
	"context"
	"fmt"

	"github.com/ashverse/animato/internal/health"
)

// availability is implemented by the failover wrappers; it reports whether
// any backend's breaker currently admits calls.
type availability interface {
	Available() bool
}

// ReadinessChecks builds one health checker per required provider slot.
// A slot backed by a failover chain fails its check while every backend's
// breaker is open, so /readyz flips to 503 before a client connects into a
// session that cannot answer.
func ReadinessChecks(p Providers) []health.Checker {
	return []health.Checker{
		{Name: "asr", Check: providerCheck("asr", p.ASR)},
		{Name: "llm", Check: providerCheck("llm", p.LLM)},
		{Name: "tts", Check: providerCheck("tts", p.TTS)},
	}
}

func providerCheck(kind string, provider any) func(context.Context) error {
	return func(context.Context) error {
		if provider == nil {
			return fmt.Errorf("%s provider not configured", kind)
		}
		if a, ok := provider.(availability); ok && !a.Available() {
			return fmt.Errorf("%s breaker open on every backend", kind)
		}
		return nil
	}
}
