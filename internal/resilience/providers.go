package resilience

import (
	"context"
	"io"

	"github.com/ashverse/animato/pkg/provider/asr"
	"github.com/ashverse/animato/pkg/provider/llm"
	"github.com/ashverse/animato/pkg/provider/tts"
)

// ASRFallback is an [asr.Provider] that fails over across multiple
// transcription backends.
type ASRFallback struct {
	group *FallbackGroup[asr.Provider]
}

var _ asr.Provider = (*ASRFallback)(nil)

// NewASRFallback creates an ASRFallback with primary as the preferred
// backend; register alternatives with Add.
func NewASRFallback(name string, primary asr.Provider, cfg GroupConfig) *ASRFallback {
	return &ASRFallback{group: NewFallbackGroup(name, primary, cfg)}
}

// Add registers a fallback transcription backend.
func (f *ASRFallback) Add(name string, p asr.Provider) { f.group.Add(name, p) }

// Transcribe runs the utterance through the first healthy backend.
func (f *ASRFallback) Transcribe(ctx context.Context, samples []float32) (string, error) {
	return do(f.group, func(p asr.Provider) (string, error) {
		return p.Transcribe(ctx, samples)
	})
}

// LLMFallback is an [llm.Provider] that fails over across multiple agent
// backends. Only opening the stream is covered; a stream that dies mid-reply
// surfaces its error to the caller unchanged.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an LLMFallback with primary as the preferred
// backend; register alternatives with Add.
func NewLLMFallback(name string, primary llm.Provider, cfg GroupConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(name, primary, cfg)}
}

// Add registers a fallback agent backend.
func (f *LLMFallback) Add(name string, p llm.Provider) { f.group.Add(name, p) }

// ChatStream opens a completion stream on the first healthy backend.
func (f *LLMFallback) ChatStream(ctx context.Context, messages []llm.Message) (llm.Stream, error) {
	return do(f.group, func(p llm.Provider) (llm.Stream, error) {
		return p.ChatStream(ctx, messages)
	})
}

// TTSFallback is a [tts.Provider] that fails over across multiple synthesis
// backends. Fallbacks may return a different audio format than the primary;
// the per-sentence format tag keeps the downstream decoder honest.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

type synthResult struct {
	audio  []byte
	format string
}

// NewTTSFallback creates a TTSFallback with primary as the preferred
// backend; register alternatives with Add.
func NewTTSFallback(name string, primary tts.Provider, cfg GroupConfig) *TTSFallback {
	return &TTSFallback{group: NewFallbackGroup(name, primary, cfg)}
}

// Add registers a fallback synthesis backend.
func (f *TTSFallback) Add(name string, p tts.Provider) { f.group.Add(name, p) }

// Synthesize renders the sentence through the first healthy backend.
func (f *TTSFallback) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	r, err := do(f.group, func(p tts.Provider) (synthResult, error) {
		audio, format, err := p.Synthesize(ctx, text)
		return synthResult{audio: audio, format: format}, err
	})
	return r.audio, r.format, err
}

// closeGroup closes every backend in the group that is an io.Closer,
// returning the first error.
func closeGroup[T any](g *FallbackGroup[T]) error {
	var first error
	for i := range g.entries {
		if c, ok := any(g.entries[i].backend).(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// Close closes every backend that holds resources.
func (f *ASRFallback) Close() error { return closeGroup(f.group) }

// Close closes every backend that holds resources.
func (f *LLMFallback) Close() error { return closeGroup(f.group) }

// Close closes every backend that holds resources.
func (f *TTSFallback) Close() error { return closeGroup(f.group) }

// Available reports whether any transcription backend is admitted.
func (f *ASRFallback) Available() bool { return f.group.Available() }

// Available reports whether any agent backend is admitted.
func (f *LLMFallback) Available() bool { return f.group.Available() }

// Available reports whether any synthesis backend is admitted.
func (f *TTSFallback) Available() bool { return f.group.Available() }
