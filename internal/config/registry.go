package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ashverse/animato/pkg/provider/asr"
	"github.com/ashverse/animato/pkg/provider/llm"
	"github.com/ashverse/animato/pkg/provider/tts"
	"github.com/ashverse/animato/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider type.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider types to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	asr map[string]func(ProviderEntry) (asr.Provider, error)
	llm map[string]func(ProviderEntry) (llm.Provider, error)
	tts map[string]func(ProviderEntry) (tts.Provider, error)
	vad map[string]func(ProviderEntry) (vad.Engine, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		asr: make(map[string]func(ProviderEntry) (asr.Provider, error)),
		llm: make(map[string]func(ProviderEntry) (llm.Provider, error)),
		tts: make(map[string]func(ProviderEntry) (tts.Provider, error)),
		vad: make(map[string]func(ProviderEntry) (vad.Engine, error)),
	}
}

// RegisterASR registers an ASR provider factory under typ.
// Registering the same type again overwrites the previous factory with a
// warning.
func (r *Registry) RegisterASR(typ string, factory func(ProviderEntry) (asr.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.asr[typ]; exists {
		slog.Warn("overwriting registered provider factory", "kind", "asr", "type", typ)
	}
	r.asr[typ] = factory
}

// RegisterLLM registers an LLM provider factory under typ.
func (r *Registry) RegisterLLM(typ string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.llm[typ]; exists {
		slog.Warn("overwriting registered provider factory", "kind", "llm", "type", typ)
	}
	r.llm[typ] = factory
}

// RegisterTTS registers a TTS provider factory under typ.
func (r *Registry) RegisterTTS(typ string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tts[typ]; exists {
		slog.Warn("overwriting registered provider factory", "kind", "tts", "type", typ)
	}
	r.tts[typ] = factory
}

// RegisterVAD registers a VAD engine factory under typ.
func (r *Registry) RegisterVAD(typ string, factory func(ProviderEntry) (vad.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.vad[typ]; exists {
		slog.Warn("overwriting registered provider factory", "kind", "vad", "type", typ)
	}
	r.vad[typ] = factory
}

// CreateASR instantiates an ASR provider using the factory registered under
// entry.Type. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that type.
func (r *Registry) CreateASR(entry ProviderEntry) (asr.Provider, error) {
	r.mu.RLock()
	factory, ok := r.asr[entry.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: asr/%q", ErrProviderNotRegistered, entry.Type)
	}
	return factory(entry)
}

// CreateLLM instantiates an LLM provider using the factory registered under
// entry.Type.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Type)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under
// entry.Type.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Type)
	}
	return factory(entry)
}

// CreateVAD instantiates a VAD engine using the factory registered under
// entry.Type.
func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Engine, error) {
	r.mu.RLock()
	factory, ok := r.vad[entry.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, entry.Type)
	}
	return factory(entry)
}

// Registered returns the sorted factory types registered for each kind.
// Intended for startup logging and diagnostics endpoints.
func (r *Registry) Registered() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, 4)
	out["asr"] = sortedKeys(r.asr)
	out["llm"] = sortedKeys(r.llm)
	out["tts"] = sortedKeys(r.tts)
	out["vad"] = sortedKeys(r.vad)
	return out
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
