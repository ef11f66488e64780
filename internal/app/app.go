// Package app wires the Animato subsystems into a running server: it builds
// providers from the config registry and owns the per-connection session
// lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ashverse/animato/internal/config"
	"github.com/ashverse/animato/internal/resilience"
	"github.com/ashverse/animato/pkg/provider/asr"
	"github.com/ashverse/animato/pkg/provider/llm"
	"github.com/ashverse/animato/pkg/provider/tts"
	"github.com/ashverse/animato/pkg/provider/vad"
)

// Providers holds one instance per provider slot, shared by all sessions.
// The VAD slot is an engine; each session gets its own detector from it.
type Providers struct {
	ASR asr.Provider
	LLM llm.Provider
	TTS tts.Provider
	VAD vad.Engine
}

// BuildProviders instantiates every configured provider through the registry.
// The returned closers release providers that hold resources (local model
// handles, HTTP pools); call them in reverse order at shutdown.
func BuildProviders(reg *config.Registry, cfg config.ProvidersConfig) (Providers, []func() error, error) {
	var p Providers
	var closers []func() error

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}
	track := func(v any) {
		if c, ok := v.(io.Closer); ok {
			closers = append(closers, c.Close)
		}
	}

	var err error
	if p.ASR, err = buildASR(reg, cfg.ASR); err != nil {
		return Providers{}, nil, fmt.Errorf("app: build asr provider: %w", err)
	}
	track(p.ASR)

	if p.LLM, err = buildLLM(reg, cfg.LLM); err != nil {
		closeAll()
		return Providers{}, nil, fmt.Errorf("app: build llm provider: %w", err)
	}
	track(p.LLM)

	if p.TTS, err = buildTTS(reg, cfg.TTS); err != nil {
		closeAll()
		return Providers{}, nil, fmt.Errorf("app: build tts provider: %w", err)
	}
	track(p.TTS)

	if cfg.VAD.Type != "" {
		if p.VAD, err = reg.CreateVAD(cfg.VAD); err != nil {
			closeAll()
			return Providers{}, nil, fmt.Errorf("app: build vad engine: %w", err)
		}
		track(p.VAD)
	}

	slog.Info("providers built",
		"asr", cfg.ASR.Type,
		"llm", cfg.LLM.Type,
		"tts", cfg.TTS.Type,
		"vad", cfg.VAD.Type,
	)
	return p, closers, nil
}

// closeEach closes any of the given values that hold resources. Used to
// unwind partially built fallback chains.
func closeEach[T any](vs []T) {
	for _, v := range vs {
		if c, ok := any(v).(io.Closer); ok {
			_ = c.Close()
		}
	}
}

// buildASR builds the configured ASR backend; when the entry lists
// fallbacks, the result is a failover chain owning every backend.
func buildASR(reg *config.Registry, entry config.ProviderEntry) (asr.Provider, error) {
	primary, err := reg.CreateASR(entry)
	if err != nil || len(entry.Fallbacks) == 0 {
		return primary, err
	}
	built := []asr.Provider{primary}
	f := resilience.NewASRFallback(entry.Type, primary, resilience.GroupConfig{})
	for _, fb := range entry.Fallbacks {
		p, err := reg.CreateASR(fb)
		if err != nil {
			closeEach(built)
			return nil, fmt.Errorf("fallback %q: %w", fb.Type, err)
		}
		built = append(built, p)
		f.Add(fb.Type, p)
	}
	return f, nil
}

// buildLLM is the LLM counterpart of buildASR.
func buildLLM(reg *config.Registry, entry config.ProviderEntry) (llm.Provider, error) {
	primary, err := reg.CreateLLM(entry)
	if err != nil || len(entry.Fallbacks) == 0 {
		return primary, err
	}
	built := []llm.Provider{primary}
	f := resilience.NewLLMFallback(entry.Type, primary, resilience.GroupConfig{})
	for _, fb := range entry.Fallbacks {
		p, err := reg.CreateLLM(fb)
		if err != nil {
			closeEach(built)
			return nil, fmt.Errorf("fallback %q: %w", fb.Type, err)
		}
		built = append(built, p)
		f.Add(fb.Type, p)
	}
	return f, nil
}

// buildTTS is the TTS counterpart of buildASR.
func buildTTS(reg *config.Registry, entry config.ProviderEntry) (tts.Provider, error) {
	primary, err := reg.CreateTTS(entry)
	if err != nil || len(entry.Fallbacks) == 0 {
		return primary, err
	}
	built := []tts.Provider{primary}
	f := resilience.NewTTSFallback(entry.Type, primary, resilience.GroupConfig{})
	for _, fb := range entry.Fallbacks {
		p, err := reg.CreateTTS(fb)
		if err != nil {
			closeEach(built)
			return nil, fmt.Errorf("fallback %q: %w", fb.Type, err)
		}
		built = append(built, p)
		f.Add(fb.Type, p)
	}
	return f, nil
}

// levelHandler filters records through a session-scoped level before
// delegating to the shared handler, so one client's set_log_level never
// touches another session's verbosity.
type levelHandler struct {
	level *slog.LevelVar
	inner slog.Handler
}

func newLevelHandler(level *slog.LevelVar, inner slog.Handler) levelHandler {
	return levelHandler{level: level, inner: inner}
}

func (h levelHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	return lvl >= h.level.Level()
}

func (h levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return levelHandler{level: h.level, inner: h.inner.WithAttrs(attrs)}
}

func (h levelHandler) WithGroup(name string) slog.Handler {
	return levelHandler{level: h.level, inner: h.inner.WithGroup(name)}
}

// ParseLevel converts a config log level to its slog value.
func ParseLevel(l config.LogLevel) (slog.Level, error) {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug, nil
	case config.LogInfo, "":
		return slog.LevelInfo, nil
	case config.LogWarn:
		return slog.LevelWarn, nil
	case config.LogError:
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("app: unknown log level %q", l)
	}
}
