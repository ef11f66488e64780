// Package openai provides an ASR provider backed by the OpenAI audio
// transcription API (Whisper). Utterances are wrapped into an in-memory WAV
// artifact and submitted as a single batch request.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ashverse/animato/pkg/audio"
	"github.com/ashverse/animato/pkg/fault"
	"github.com/ashverse/animato/pkg/provider/asr"
)

// Compile-time assertion that Provider satisfies asr.Provider.
var _ asr.Provider = (*Provider)(nil)

const defaultModel = "whisper-1"

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the transcription model (default "whisper-1").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the ISO-639-1 recognition language hint (e.g. "en",
// "zh"). Empty lets the API auto-detect.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithBaseURL overrides the default API endpoint, for OpenAI-compatible
// gateways.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout. Default 60 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

// Provider implements asr.Provider using the OpenAI transcription API.
// Safe for concurrent use.
type Provider struct {
	client   oai.Client
	model    string
	language string
	baseURL  string
	timeout  time.Duration
}

// New constructs a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai asr: apiKey must not be empty")
	}
	p := &Provider{
		model:   defaultModel,
		timeout: 60 * time.Second,
	}
	for _, o := range opts {
		o(p)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: p.timeout}),
	}
	if p.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(p.baseURL))
	}
	p.client = oai.NewClient(reqOpts...)
	return p, nil
}

// Transcribe implements asr.Provider. The float32 utterance is packaged as a
// 16 kHz mono WAV and posted to the transcription endpoint.
func (p *Provider) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	wav := audio.EncodeWAV(clipFromFloat32(samples))

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: oai.AudioModel(p.model),
	}
	if p.language != "" {
		params.Language = oai.String(p.language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fault.Wrap(fault.ASRUnavailable, "openai transcription request failed", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// clipFromFloat32 widens a float32 utterance to the audio package's mono
// clip representation at the fixed ASR sample rate.
func clipFromFloat32(samples []float32) audio.Clip {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s)
	}
	return audio.Clip{Samples: out, SampleRate: asr.SampleRate}
}
