// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps a speech synthesis service (the OpenAI speech API or a
// test mock) behind a single batch call: the output pipeline hands it one
// sentence and receives a complete encoded audio artifact. Synthesis runs
// per-sentence so playback can start before the agent finishes its reply;
// multiple sentences of the same turn are synthesized concurrently.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any text-to-speech backend.
type Provider interface {
	// Synthesize converts one sentence into an encoded audio artifact. The
	// returned format tag ("wav", "mp3") tells the caller how to decode it.
	// Transport and provider failures are reported as tts_unavailable faults.
	Synthesize(ctx context.Context, text string) (audio []byte, format string, err error)
}
