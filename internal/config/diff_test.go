package config_test

import (
	"testing"

	"github.com/ashverse/animato/internal/config"
)

func base() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
		Providers: config.ProvidersConfig{
			LLM: config.ProviderEntry{Type: "mock"},
		},
		Persona: config.PersonaConfig{Name: "Aria", SystemPrompt: "You are Aria."},
		Emotion: config.EmotionConfig{Mode: "first", Known: []string{"joy", "neutral"}},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(base(), base())
	if d.Any() {
		t.Errorf("expected empty diff, got %+v", d)
	}
	if d.RestartRequired {
		t.Error("expected no restart required")
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()
	n := base()
	n.Server.LogLevel = config.LogDebug
	d := config.Diff(base(), n)
	if !d.LogLevelChanged {
		t.Fatal("expected LogLevelChanged")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected new level debug, got %q", d.NewLogLevel)
	}
	if d.RestartRequired {
		t.Error("log level change must not require restart")
	}
}

func TestDiff_Persona(t *testing.T) {
	t.Parallel()
	n := base()
	n.Persona.SystemPrompt = "You are someone else."
	d := config.Diff(base(), n)
	if !d.PersonaChanged {
		t.Error("expected PersonaChanged")
	}
}

func TestDiff_EmotionKnownList(t *testing.T) {
	t.Parallel()
	n := base()
	n.Emotion.Known = []string{"joy", "anger", "neutral"}
	d := config.Diff(base(), n)
	if !d.EmotionChanged {
		t.Error("expected EmotionChanged for changed known list")
	}
}

func TestDiff_ProviderChangeRequiresRestart(t *testing.T) {
	t.Parallel()
	n := base()
	n.Providers.LLM.Model = "gpt-4o"
	d := config.Diff(base(), n)
	if !d.RestartRequired {
		t.Error("expected RestartRequired for provider change")
	}
	if d.Any() {
		t.Error("provider change is not hot-reloadable")
	}
}

func TestDiff_FallbackChangeRequiresRestart(t *testing.T) {
	t.Parallel()
	n := base()
	n.Providers.LLM.Fallbacks = []config.ProviderEntry{{Type: "anthropic"}}
	d := config.Diff(base(), n)
	if !d.RestartRequired {
		t.Error("expected RestartRequired for added fallback")
	}
}

func TestDiff_ListenAddrRequiresRestart(t *testing.T) {
	t.Parallel()
	n := base()
	n.Server.ListenAddr = ":9090"
	d := config.Diff(base(), n)
	if !d.RestartRequired {
		t.Error("expected RestartRequired for listen_addr change")
	}
}
