// Package openai provides a TTS provider backed by the OpenAI speech API.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ashverse/animato/pkg/fault"
	"github.com/ashverse/animato/pkg/provider/tts"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultModel = "tts-1"
	defaultVoice = "alloy"
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the speech model (default "tts-1").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithVoice sets the synthesis voice (default "alloy").
func WithVoice(voice string) Option {
	return func(p *Provider) { p.voice = voice }
}

// WithSpeed sets the playback speed multiplier in [0.25, 4.0]. Zero leaves
// the API default of 1.0.
func WithSpeed(speed float64) Option {
	return func(p *Provider) { p.speed = speed }
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

// Provider implements tts.Provider using the OpenAI speech API. Audio is
// requested as WAV so the output pipeline can decode it without an external
// codec. Safe for concurrent use.
type Provider struct {
	client  oai.Client
	model   string
	voice   string
	speed   float64
	baseURL string
	timeout time.Duration
}

// New constructs a Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}
	p := &Provider{
		model:   defaultModel,
		voice:   defaultVoice,
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

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if text == "" {
		return nil, "", fault.New(fault.TTSUnavailable, "openai tts: empty text")
	}

	params := oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(p.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatWAV,
	}
	if p.speed > 0 {
		params.Speed = oai.Float(p.speed)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, "", fault.Wrap(fault.TTSUnavailable, "openai speech request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fault.Wrap(fault.TTSUnavailable, "openai speech read body", err)
	}
	return data, "wav", nil
}
