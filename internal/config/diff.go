package config

import (
	"maps"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// server changes require a restart and are reported as RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PersonaChanged is true when the character name, system prompt, or
	// greeting changed. Applies to new sessions only.
	PersonaChanged bool

	// EmotionChanged is true when any expression extraction setting changed.
	// Applies to new sessions only.
	EmotionChanged bool

	// RestartRequired is true when providers, conversation limits, or server
	// settings changed. These are ignored by the hot-reload path.
	RestartRequired bool
}

// Any reports whether the diff carries at least one hot-reloadable change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.PersonaChanged || d.EmotionChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Persona != new.Persona {
		d.PersonaChanged = true
	}

	if !emotionEqual(old.Emotion, new.Emotion) {
		d.EmotionChanged = true
	}

	if providersChanged(old.Providers, new.Providers) ||
		old.Conversation != new.Conversation ||
		serverChanged(old.Server, new.Server) {
		d.RestartRequired = true
	}

	return d
}

// emotionEqual compares emotion configs including the Known slice and the
// Weights map.
func emotionEqual(a, b EmotionConfig) bool {
	if a.Analyzer != b.Analyzer || a.Mode != b.Mode || a.Timeline != b.Timeline ||
		a.Default != b.Default || a.Intensity != b.Intensity ||
		a.MinDuration != b.MinDuration || a.Transition != b.Transition {
		return false
	}
	return slices.Equal(a.Known, b.Known) && maps.Equal(a.Weights, b.Weights)
}

// providersChanged compares provider entries field by field. Options maps are
// compared by length only; a changed option value with the same key set slips
// through and still requires a manual restart.
func providersChanged(a, b ProvidersConfig) bool {
	return entryChanged(a.ASR, b.ASR) || entryChanged(a.LLM, b.LLM) ||
		entryChanged(a.TTS, b.TTS) || entryChanged(a.VAD, b.VAD)
}

func entryChanged(a, b ProviderEntry) bool {
	if len(a.Fallbacks) != len(b.Fallbacks) {
		return true
	}
	for i := range a.Fallbacks {
		if entryChanged(a.Fallbacks[i], b.Fallbacks[i]) {
			return true
		}
	}
	return a.Type != b.Type || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL ||
		a.Model != b.Model || len(a.Options) != len(b.Options)
}

// serverChanged compares server configs ignoring the log level, which is
// hot-reloadable.
func serverChanged(a, b ServerConfig) bool {
	if a.ListenAddr != b.ListenAddr {
		return true
	}
	if (a.TLS == nil) != (b.TLS == nil) {
		return true
	}
	if a.TLS != nil && *a.TLS != *b.TLS {
		return true
	}
	return !slices.Equal(a.AllowedOrigins, b.AllowedOrigins)
}
