// Package anyllm provides a universal LLM provider backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and more.
//
// Usage:
//
//	p, err := anyllm.New("ollama", "llama3.2", []anyllmlib.Option{anyllmlib.WithBaseURL("http://localhost:11434")})
//	p, err := anyllm.NewAnthropic("claude-3-5-sonnet-latest", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-ant-...")})
package anyllm

import (
	"context"
	"fmt"
	"io"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/ashverse/animato/pkg/fault"
	"github.com/ashverse/animato/pkg/provider/llm"
)

// Compile-time assertion that Provider satisfies llm.Provider.
var _ llm.Provider = (*Provider)(nil)

// Provider implements llm.Provider by wrapping github.com/mozilla-ai/any-llm-go.
type Provider struct {
	backend     anyllmlib.Provider
	model       string
	temperature float64
	maxTokens   int
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTemperature sets the sampling temperature. Zero leaves the backend
// default.
func WithTemperature(t float64) Option {
	return func(p *Provider) { p.temperature = t }
}

// WithMaxTokens caps the reply length in tokens. Zero leaves the backend
// default.
func WithMaxTokens(n int) Option {
	return func(p *Provider) { p.maxTokens = n }
}

// New creates a new Provider backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama", "deepseek",
// "mistral", "groq", "llamacpp", "llamafile".
//
// model is the specific model to use (e.g., "gpt-4o", "claude-3-5-sonnet-latest").
//
// backendOpts are any-llm-go configuration options (e.g., anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). If no API key option is provided, the backend falls
// back to the relevant environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY,
// etc.).
func New(providerName, model string, backendOpts []anyllmlib.Option, opts ...Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, backendOpts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	p := &Provider{backend: backend, model: model}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// NewOpenAI creates a Provider backed by OpenAI.
func NewOpenAI(model string, backendOpts []anyllmlib.Option, opts ...Option) (*Provider, error) {
	return New("openai", model, backendOpts, opts...)
}

// NewAnthropic creates a Provider backed by Anthropic.
func NewAnthropic(model string, backendOpts []anyllmlib.Option, opts ...Option) (*Provider, error) {
	return New("anthropic", model, backendOpts, opts...)
}

// NewOllama creates a Provider backed by Ollama (local inference).
// Without options, it connects to http://localhost:11434.
func NewOllama(model string, backendOpts []anyllmlib.Option, opts ...Option) (*Provider, error) {
	return New("ollama", model, backendOpts, opts...)
}

// createBackend creates the underlying any-llm-go provider for the given name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}

// ChatStream implements llm.Provider.
func (p *Provider) ChatStream(ctx context.Context, messages []llm.Message) (llm.Stream, error) {
	if len(messages) == 0 {
		return nil, fault.New(fault.LLMUnavailable, "anyllm: empty message history")
	}

	params := anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: convertMessages(messages),
	}
	if p.temperature != 0 {
		t := p.temperature
		params.Temperature = &t
	}
	if p.maxTokens > 0 {
		mt := p.maxTokens
		params.MaxTokens = &mt
	}

	ctx, cancel := context.WithCancel(ctx)
	backendChunks, backendErrs := p.backend.CompletionStream(ctx, params)

	out := make(chan string, 32)
	done := make(chan error, 1)
	go func() {
		defer close(out)
		for chunk := range backendChunks {
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out <- delta:
			case <-ctx.Done():
				done <- ctx.Err()
				return
			}
		}
		if err := <-backendErrs; err != nil {
			done <- fault.Wrap(fault.LLMUnavailable, "anyllm: completion stream", err)
			return
		}
		done <- nil
	}()

	return &stream{ctx: ctx, cancel: cancel, chunks: out, done: done}, nil
}

// convertMessages maps the provider-neutral history onto any-llm messages.
func convertMessages(messages []llm.Message) []anyllmlib.Message {
	out := make([]anyllmlib.Message, len(messages))
	for i, m := range messages {
		out[i] = anyllmlib.Message{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}
	return out
}

// stream adapts the any-llm chunk/error channel pair to llm.Stream.
type stream struct {
	ctx    context.Context
	cancel context.CancelFunc
	chunks <-chan string
	done   <-chan error
	err    error
}

// Recv implements llm.Stream.
func (s *stream) Recv() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	select {
	case text, ok := <-s.chunks:
		if !ok {
			if err := <-s.done; err != nil {
				s.err = err
			} else {
				s.err = io.EOF
			}
			return "", s.err
		}
		return text, nil
	case <-s.ctx.Done():
		s.err = s.ctx.Err()
		return "", s.err
	}
}

// Close implements llm.Stream.
func (s *stream) Close() error {
	s.cancel()
	return nil
}
