package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/ashverse/animato/pkg/provider/llm"
)

// ── convertMessages ───────────────────────────────────────────────────────────

// TestConvertMessages_Roles checks that every role maps through unchanged.
func TestConvertMessages_Roles(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleSystem, Content: "You are helpful."},
		{Role: llm.RoleUser, Content: "Hello!"},
		{Role: llm.RoleAssistant, Content: "Hi there!"},
	}
	got := convertMessages(history)
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	wantRoles := []string{anyllmlib.RoleSystem, anyllmlib.RoleUser, anyllmlib.RoleAssistant}
	for i, m := range got {
		if m.Role != wantRoles[i] {
			t.Errorf("message %d: expected role %q, got %q", i, wantRoles[i], m.Role)
		}
		if m.Content != history[i].Content {
			t.Errorf("message %d: expected content %q, got %q", i, history[i].Content, m.Content)
		}
	}
}

// TestConvertMessages_Empty checks that an empty history converts to an empty slice.
func TestConvertMessages_Empty(t *testing.T) {
	if got := convertMessages(nil); len(got) != 0 {
		t.Errorf("expected empty conversion, got %d messages", len(got))
	}
}

// ── Constructor ───────────────────────────────────────────────────────────────

// TestNew_EmptyProviderName checks that an empty provider name returns an error.
func TestNew_EmptyProviderName(t *testing.T) {
	_, err := New("", "gpt-4o", nil)
	if err == nil {
		t.Fatal("expected error for empty providerName")
	}
}

// TestNew_EmptyModel checks that an empty model name returns an error.
func TestNew_EmptyModel(t *testing.T) {
	_, err := New("openai", "", nil)
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_UnsupportedProvider checks that an unsupported provider returns an error.
func TestNew_UnsupportedProvider(t *testing.T) {
	_, err := New("fakecloud", "some-model", []anyllmlib.Option{anyllmlib.WithAPIKey("dummy")})
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

// TestNew_OpenAI_WithAPIKey checks that the OpenAI backend constructs successfully.
func TestNew_OpenAI_WithAPIKey(t *testing.T) {
	p, err := New("openai", "gpt-4o", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-test")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
	if p.model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %q", p.model)
	}
}

// TestNew_OpenAI_MissingAPIKey checks that OpenAI errors when no API key is available.
// This relies on OPENAI_API_KEY not being set in the test environment.
func TestNew_OpenAI_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "") // Ensure env var is clear.
	_, err := New("openai", "gpt-4o", nil)
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

// TestNew_Ollama_NoAPIKey checks that Ollama works without an API key.
func TestNew_Ollama_NoAPIKey(t *testing.T) {
	p, err := NewOllama("llama3", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
}

// TestNew_Options checks that temperature and token cap options are applied.
func TestNew_Options(t *testing.T) {
	p, err := NewOllama("llama3", nil, WithTemperature(0.7), WithMaxTokens(256))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", p.temperature)
	}
	if p.maxTokens != 256 {
		t.Errorf("expected maxTokens 256, got %d", p.maxTokens)
	}
}

// TestConvenienceConstructors checks that the convenience constructors delegate correctly.
func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		fn   func() (*Provider, error)
	}{
		{"NewOpenAI", func() (*Provider, error) {
			return NewOpenAI("gpt-4o", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-test")})
		}},
		{"NewAnthropic", func() (*Provider, error) {
			return NewAnthropic("claude-3-5-sonnet-latest", []anyllmlib.Option{anyllmlib.WithAPIKey("sk-ant-test")})
		}},
		{"NewOllama", func() (*Provider, error) { return NewOllama("llama3", nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.fn()
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tt.name, err)
			}
			if p == nil {
				t.Fatalf("%s: expected non-nil provider", tt.name)
			}
		})
	}
}
