// Package openai provides an LLM provider backed by the OpenAI chat API.
// Prefer it over the anyllm backend when OpenAI-specific request options
// (organization, custom gateways) are needed.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	"github.com/ashverse/animato/pkg/fault"
	"github.com/ashverse/animato/pkg/provider/llm"
)

// Compile-time assertion that Provider satisfies llm.Provider.
var _ llm.Provider = (*Provider)(nil)

// Provider implements llm.Provider using the OpenAI API.
type Provider struct {
	client      oai.Client
	model       string
	temperature float64
	maxTokens   int
}

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
	temperature  float64
	maxTokens    int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(c *config) { c.organization = org }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithTemperature sets the sampling temperature. Zero leaves the API default.
func WithTemperature(t float64) Option {
	return func(c *config) { c.temperature = t }
}

// WithMaxTokens caps the reply length in tokens. Zero leaves the API default.
func WithMaxTokens(n int) Option {
	return func(c *config) { c.maxTokens = n }
}

// New constructs a new OpenAI LLM Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai llm: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai llm: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client:      oai.NewClient(reqOpts...),
		model:       model,
		temperature: cfg.temperature,
		maxTokens:   cfg.maxTokens,
	}, nil
}

// ChatStream implements llm.Provider.
func (p *Provider) ChatStream(ctx context.Context, messages []llm.Message) (llm.Stream, error) {
	if len(messages) == 0 {
		return nil, fault.New(fault.LLMUnavailable, "openai llm: empty message history")
	}

	params, err := p.buildParams(messages)
	if err != nil {
		return nil, fault.Wrap(fault.LLMUnavailable, "openai llm: build params", err)
	}

	raw := p.client.Chat.Completions.NewStreaming(ctx, params)
	if err := raw.Err(); err != nil {
		return nil, fault.Wrap(fault.LLMUnavailable, "openai llm: start stream", err)
	}
	return &stream{raw: raw}, nil
}

// buildParams converts the history into OpenAI SDK params.
func (p *Provider) buildParams(messages []llm.Message) (oai.ChatCompletionNewParams, error) {
	converted := make([]oai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			converted = append(converted, oai.SystemMessage(m.Content))
		case llm.RoleUser:
			converted = append(converted, oai.UserMessage(m.Content))
		case llm.RoleAssistant:
			converted = append(converted, oai.AssistantMessage(m.Content))
		default:
			return oai.ChatCompletionNewParams{}, fmt.Errorf("unknown message role %q", m.Role)
		}
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: converted,
	}
	if p.temperature != 0 {
		params.Temperature = param.NewOpt(p.temperature)
	}
	if p.maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(p.maxTokens))
	}
	return params, nil
}

// stream adapts the SDK's SSE stream to llm.Stream.
type stream struct {
	raw *ssestream.Stream[oai.ChatCompletionChunk]
	err error
}

// Recv implements llm.Stream.
func (s *stream) Recv() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	for s.raw.Next() {
		chunk := s.raw.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
	if err := s.raw.Err(); err != nil {
		s.err = fault.Wrap(fault.LLMUnavailable, "openai llm: stream read", err)
	} else {
		s.err = io.EOF
	}
	return "", s.err
}

// Close implements llm.Stream.
func (s *stream) Close() error {
	return s.raw.Close()
}
