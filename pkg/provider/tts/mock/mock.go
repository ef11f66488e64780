// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider in unit tests to feed controlled audio artifacts and inspect
// the text that was synthesized. When no Audio is configured, Synthesize
// fabricates a short sine-tone WAV whose duration scales with the text length,
// so downstream decode and envelope code can run against real bytes.
//
// Example:
//
//	p := &mock.Provider{}
//	audio, format, err := p.Synthesize(ctx, "Hello!")
package mock

import (
	"context"
	"math"
	"sync"

	"github.com/ashverse/animato/pkg/audio"
	"github.com/ashverse/animato/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Provider.Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the sentence passed to Synthesize.
	Text string
}

// Provider is a mock implementation of tts.Provider.
// Zero values cause Synthesize to return a generated sine-tone WAV. Set Err
// to inject a failure.
type Provider struct {
	mu sync.Mutex

	// Audio, if non-nil, is returned by every Synthesize call instead of the
	// generated tone.
	Audio []byte

	// Format is the format tag returned alongside the audio. Defaults to "wav".
	Format string

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// Delay, if non-nil, makes Synthesize block until the returned channel is
	// closed or ctx is done. Useful for ordering and interrupt tests.
	Delay func(text string) <-chan struct{}

	// Calls records every invocation of Synthesize in order.
	Calls []SynthesizeCall
}

// Synthesize records the call and returns the configured or generated audio.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, SynthesizeCall{Ctx: ctx, Text: text})
	audioData, format, err, delay := p.Audio, p.Format, p.Err, p.Delay
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-delay(text):
		}
	}
	if err != nil {
		return nil, "", err
	}
	if format == "" {
		format = "wav"
	}
	if audioData != nil {
		return audioData, format, nil
	}
	return ToneWAV(text), "wav", nil
}

// CallCount returns the number of Synthesize calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Texts returns the synthesized sentences in call order. Thread-safe.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Calls))
	for i, c := range p.Calls {
		out[i] = c.Text
	}
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// ToneWAV builds a 440 Hz sine-tone WAV at 16 kHz mono, 60 ms per character
// with a 200 ms floor. Deterministic for a given text.
func ToneWAV(text string) []byte {
	const sampleRate = 16000
	durMS := 200 + 60*len(text)
	n := sampleRate * durMS / 1000
	samples := make([]float64, n)
	for i := range n {
		samples[i] = 0.3 * math.Sin(2*math.Pi*440*float64(i)/sampleRate)
	}
	return audio.EncodeWAV(audio.Clip{Samples: samples, SampleRate: sampleRate})
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
