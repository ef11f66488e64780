// Package mock provides a test double for the asr.Provider interface.
//
// Use Provider in unit tests to feed controlled transcription results and to
// inspect the audio that was submitted, without a live recognition backend.
//
// Example:
//
//	p := &mock.Provider{Text: "hello there"}
//	text, err := p.Transcribe(ctx, samples)
package mock

import (
	"context"
	"sync"

	"github.com/ashverse/animato/pkg/provider/asr"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Samples is a copy of the audio passed to Transcribe.
	Samples []float32
}

// Provider is a mock implementation of asr.Provider.
// Zero values cause Transcribe to return "", nil. Set Err to inject a failure.
type Provider struct {
	mu sync.Mutex

	// Text is returned by every Transcribe call.
	Text string

	// Texts, if non-empty, takes precedence over Text: call n returns Texts[n],
	// and calls past the end fall back to the last entry.
	Texts []string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records every invocation of Transcribe in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns the configured text, Err.
func (p *Provider) Transcribe(ctx context.Context, samples []float32) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	n := len(p.Calls)
	p.Calls = append(p.Calls, TranscribeCall{Ctx: ctx, Samples: cp})
	if p.Err != nil {
		return "", p.Err
	}
	if len(p.Texts) > 0 {
		if n >= len(p.Texts) {
			n = len(p.Texts) - 1
		}
		return p.Texts[n], nil
	}
	return p.Text, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements asr.Provider at compile time.
var _ asr.Provider = (*Provider)(nil)
