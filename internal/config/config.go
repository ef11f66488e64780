// Package config provides the configuration schema, loader, and provider
// registry for the Animato conversation server.
package config

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Animato.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Persona      PersonaConfig      `yaml:"persona"`
	Emotion      EmotionConfig      `yaml:"emotion"`
	Conversation ConversationConfig `yaml:"conversation"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// AllowedOrigins lists origins accepted for WebSocket upgrades. Empty
	// means same-origin only; "*" disables the check.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	ASR ProviderEntry `yaml:"asr"`
	LLM ProviderEntry `yaml:"llm"`
	TTS ProviderEntry `yaml:"tts"`
	VAD ProviderEntry `yaml:"vad"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. The Type field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Type selects the registered provider implementation (e.g., "openai",
	// "whispercpp", "mock").
	Type string `yaml:"type"`

	// APIKey is the authentication key for the provider's API if any.
	// Supports ${VAR} expansion from the environment.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o",
	// "whisper-1", or a GGML model path for local inference).
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`

	// Fallbacks lists alternative backends tried in order when this one
	// fails or its circuit breaker is open. Fallback entries cannot nest
	// further fallbacks.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// StringOption returns the named entry of Options as a string, or def when
// absent or not a string.
func (e ProviderEntry) StringOption(name, def string) string {
	if v, ok := e.Options[name].(string); ok {
		return v
	}
	return def
}

// FloatOption returns the named entry of Options as a float64, or def when
// absent. YAML integers are widened.
func (e ProviderEntry) FloatOption(name string, def float64) float64 {
	switch v := e.Options[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

// IntOption returns the named entry of Options as an int, or def when absent.
func (e ProviderEntry) IntOption(name string, def int) int {
	switch v := e.Options[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

// PersonaConfig describes the character the agent plays.
type PersonaConfig struct {
	// Name is the character's display name.
	Name string `yaml:"name"`

	// SystemPrompt is the persona description injected as the system message
	// of every completion. The emotion tagging instructions are appended to
	// it at runtime.
	SystemPrompt string `yaml:"system_prompt"`

	// Greeting, when non-empty, is spoken to each client on connect.
	Greeting string `yaml:"greeting"`
}

// EmotionConfig controls how expressions are derived from agent text.
type EmotionConfig struct {
	// Analyzer selects the extraction strategy: "tag" reads [emotion]
	// markers the agent was prompted to emit, "keyword" scans for trigger
	// words. Defaults to "tag".
	Analyzer string `yaml:"analyzer"`

	// Mode selects how a primary emotion is chosen when a sentence carries
	// several: "first", "frequency", or "majority". Defaults to "first".
	Mode string `yaml:"mode"`

	// Timeline selects how emotions are spread over the audio clip:
	// "position" (one equal slot per tag in order of appearance), "duration"
	// (slots weighted by tag count times the per-emotion weight), or
	// "intensity" (duration layout with the normalized weight as segment
	// intensity). Defaults to "position".
	Timeline string `yaml:"timeline"`

	// Known lists the emotion names the avatar can display. Markers outside
	// this list stay literal in the text. Empty accepts everything.
	Known []string `yaml:"known"`

	// Default is the emotion used when a sentence carries no tags.
	// Defaults to "neutral".
	Default string `yaml:"default"`

	// Intensity is the expression intensity attached to every timeline
	// segment, in [0, 1]. Defaults to 1.0. The "intensity" timeline
	// overrides it per segment.
	Intensity float64 `yaml:"intensity"`

	// MinDuration is the shortest segment, in seconds, the "duration" and
	// "intensity" timelines will emit. Shorter slots are folded into their
	// neighbours. Zero disables the floor.
	MinDuration float64 `yaml:"min_duration"`

	// Weights scales how much clip time each emotion claims under the
	// "duration" and "intensity" timelines. Unlisted emotions weigh 1.0.
	Weights map[string]float64 `yaml:"weights"`

	// Transition is the crossfade length, in seconds, shipped with each
	// audio_with_expression payload for the client to blend expressions at
	// segment boundaries. Segments themselves stay contiguous.
	Transition float64 `yaml:"transition"`
}

// ConversationConfig holds turn-level runtime settings.
type ConversationConfig struct {
	// TurnTimeoutSeconds bounds one full turn (transcription through last
	// synthesized sentence). Zero selects the 120 s default.
	TurnTimeoutSeconds int `yaml:"turn_timeout_seconds"`

	// MaxHistory bounds the chat log in messages; older entries are evicted
	// in pairs. Zero selects the 48 message default.
	MaxHistory int `yaml:"max_history"`

	// SampleRate is the microphone PCM sample rate in Hz. Defaults to 16000.
	SampleRate int `yaml:"sample_rate"`
}
