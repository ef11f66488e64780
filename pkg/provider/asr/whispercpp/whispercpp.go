// Package whispercpp provides a local ASR provider backed by the whisper.cpp
// CGO bindings. The model is loaded once at startup and shared across all
// sessions; each Transcribe call runs inference in a fresh whisper context
// because contexts are not thread-safe while the model is.
//
// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/ashverse/animato/pkg/fault"
	"github.com/ashverse/animato/pkg/provider/asr"
)

// Compile-time assertion that Provider satisfies asr.Provider.
var _ asr.Provider = (*Provider)(nil)

const defaultLanguage = "en"

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the recognition language code (e.g. "en", "zh", "auto").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// Provider implements asr.Provider using an in-process whisper.cpp model.
type Provider struct {
	model    whisperlib.Model
	language string
}

// New loads the GGML model at modelPath. The returned Provider owns the
// model; call Close when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("whispercpp: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: load model %q: %w", modelPath, err)
	}
	p := &Provider{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements asr.Provider. Inference is synchronous; ctx is
// checked before the (uninterruptible) whisper.cpp call starts.
func (p *Provider) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fault.Wrap(fault.ASRUnavailable, "whisper.cpp context", err)
	}

	if err := wctx.SetLanguage(p.language); err != nil {
		slog.Warn("whispercpp: failed to set language, using model default",
			"language", p.language, "err", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fault.Wrap(fault.ASRUnavailable, "whisper.cpp inference", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fault.Wrap(fault.ASRUnavailable, "whisper.cpp segment read", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}
