package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ashverse/animato/pkg/fault"
)

// ValidProviderTypes lists known provider types per provider kind.
// Used by [Validate] to warn about unrecognised types before the registry
// lookup fails at build time.
var ValidProviderTypes = map[string][]string{
	"asr": {"openai", "whispercpp", "mock"},
	"llm": {"openai", "anthropic", "gemini", "deepseek", "mistral", "groq", "ollama", "mock"},
	"tts": {"openai", "mock"},
	"vad": {"energy", "mock"},
}

// validOptionKeys lists the option keys each built-in provider type reads.
// Keys outside the list are rejected by [Validate]; provider types absent
// from the map (third-party registrations) skip the check.
var validOptionKeys = map[string]map[string][]string{
	"asr": {
		"openai":     {"language"},
		"whispercpp": {"model_path", "language"},
		"mock":       {"text"},
	},
	"llm": {
		"openai":    {"temperature", "max_tokens"},
		"anthropic": {},
		"gemini":    {},
		"deepseek":  {},
		"mistral":   {},
		"groq":      {},
		"ollama":    {},
		"mock":      {"reply"},
	},
	"tts": {
		"openai": {"voice", "speed"},
		"mock":   {},
	},
	"vad": {
		"energy": {"speech_threshold", "min_speech_ms", "silence_hold_ms", "pre_roll_ms"},
		"mock":   {},
	},
}

// envPattern matches ${VAR} references inside config values.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with environment references expanded. It is a convenience wrapper
// around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references,
// and validates the result. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fault.Wrap(fault.ConfigInvalid, "config: decode yaml", err)
	}
	if err := ExpandEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandEnv replaces ${VAR} references in the credential-bearing fields of
// cfg with values from the environment. A reference to an unset or empty
// variable is a config_missing_env fault naming the variable.
func ExpandEnv(cfg *Config) error {
	var errs []error
	entries := []*ProviderEntry{
		&cfg.Providers.ASR, &cfg.Providers.LLM, &cfg.Providers.TTS, &cfg.Providers.VAD,
	}
	for _, e := range entries {
		errs = append(errs, expandEntry(e))
		for i := range e.Fallbacks {
			errs = append(errs, expandEntry(&e.Fallbacks[i]))
		}
	}
	return errors.Join(errs...)
}

func expandEntry(e *ProviderEntry) error {
	var errs []error
	for _, field := range []*string{&e.APIKey, &e.BaseURL, &e.Model} {
		expanded, err := expandString(*field)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*field = expanded
	}
	for key, val := range e.Options {
		s, ok := val.(string)
		if !ok {
			continue
		}
		expanded, err := expandString(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		e.Options[key] = expanded
	}
	return errors.Join(errs...)
}

// expandString resolves every ${VAR} in s against the environment.
func expandString(s string) (string, error) {
	var missing []string
	out := envPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := envPattern.FindStringSubmatch(ref)[1]
		val, ok := os.LookupEnv(name)
		if !ok || val == "" {
			missing = append(missing, name)
			return ""
		}
		return val
	})
	if len(missing) > 0 {
		return "", fault.Newf(fault.ConfigMissingEnv, "environment variable %s is not set", missing[0])
	}
	return out, nil
}

// Validate checks that cfg contains a coherent set of values.
// All failures are joined into a single config_invalid fault.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider type validation: warn for unknown types, reject nested
	// fallbacks.
	kinds := map[string]ProviderEntry{
		"asr": cfg.Providers.ASR,
		"llm": cfg.Providers.LLM,
		"tts": cfg.Providers.TTS,
		"vad": cfg.Providers.VAD,
	}
	for kind, entry := range kinds {
		validateProviderType(kind, entry.Type)
		errs = append(errs, validateOptionKeys(kind, entry)...)
		if kind == "vad" && len(entry.Fallbacks) > 0 {
			errs = append(errs, errors.New("providers.vad does not support fallbacks"))
		}
		for i, fb := range entry.Fallbacks {
			if fb.Type == "" {
				errs = append(errs, fmt.Errorf("providers.%s.fallbacks[%d] is missing a type", kind, i))
				continue
			}
			validateProviderType(kind, fb.Type)
			errs = append(errs, validateOptionKeys(kind, fb)...)
			if len(fb.Fallbacks) > 0 {
				errs = append(errs, fmt.Errorf("providers.%s.fallbacks[%d]: fallbacks cannot nest", kind, i))
			}
		}
	}

	// Emotion
	if a := cfg.Emotion.Analyzer; a != "" && a != "tag" && a != "keyword" {
		errs = append(errs, fmt.Errorf("emotion.analyzer %q is invalid; valid values: tag, keyword", a))
	}
	if m := cfg.Emotion.Mode; m != "" && m != "first" && m != "frequency" && m != "majority" {
		errs = append(errs, fmt.Errorf("emotion.mode %q is invalid; valid values: first, frequency, majority", m))
	}
	if tl := cfg.Emotion.Timeline; tl != "" && tl != "position" && tl != "duration" && tl != "intensity" {
		errs = append(errs, fmt.Errorf("emotion.timeline %q is invalid; valid values: position, duration, intensity", tl))
	}
	if i := cfg.Emotion.Intensity; i < 0 || i > 1 {
		errs = append(errs, fmt.Errorf("emotion.intensity %.2f is out of range [0, 1]", i))
	}
	if d := cfg.Emotion.Default; d != "" && len(cfg.Emotion.Known) > 0 && !slices.Contains(cfg.Emotion.Known, d) {
		errs = append(errs, fmt.Errorf("emotion.default %q is not in emotion.known", d))
	}
	if md := cfg.Emotion.MinDuration; md < 0 {
		errs = append(errs, fmt.Errorf("emotion.min_duration %.2f must not be negative", md))
	}
	if tr := cfg.Emotion.Transition; tr < 0 {
		errs = append(errs, fmt.Errorf("emotion.transition %.2f must not be negative", tr))
	}
	for emotion, w := range cfg.Emotion.Weights {
		if w <= 0 {
			errs = append(errs, fmt.Errorf("emotion.weights[%s] %.2f must be positive", emotion, w))
		}
	}

	// Conversation
	if cfg.Conversation.TurnTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("conversation.turn_timeout_seconds %d must not be negative", cfg.Conversation.TurnTimeoutSeconds))
	}
	if cfg.Conversation.MaxHistory < 0 {
		errs = append(errs, fmt.Errorf("conversation.max_history %d must not be negative", cfg.Conversation.MaxHistory))
	}
	if sr := cfg.Conversation.SampleRate; sr < 0 {
		errs = append(errs, fmt.Errorf("conversation.sample_rate %d must not be negative", sr))
	}

	// Persona availability warning
	if cfg.Persona.SystemPrompt == "" {
		slog.Warn("persona.system_prompt is empty; the agent will answer without a character")
	}

	if err := errors.Join(errs...); err != nil {
		return fault.Wrap(fault.ConfigInvalid, "config: validation failed", err)
	}
	return nil
}

// validateOptionKeys rejects option keys the entry's provider type does not
// read. Unknown types pass: their option schema belongs to whoever registered
// them.
func validateOptionKeys(kind string, e ProviderEntry) []error {
	byType, ok := validOptionKeys[kind]
	if !ok {
		return nil
	}
	known, ok := byType[e.Type]
	if !ok {
		return nil
	}
	var errs []error
	for _, key := range slices.Sorted(maps.Keys(e.Options)) {
		if !slices.Contains(known, key) {
			errs = append(errs, fmt.Errorf("providers.%s: unknown option %q for type %q", kind, key, e.Type))
		}
	}
	return errs
}

// validateProviderType logs a warning if typ is non-empty and not found in
// the [ValidProviderTypes] list for the given kind.
func validateProviderType(kind, typ string) {
	if typ == "" {
		return
	}
	known, ok := ValidProviderTypes[kind]
	if !ok {
		return
	}
	if slices.Contains(known, typ) {
		return
	}
	slog.Warn("unknown provider type, may be a typo or third-party provider",
		"kind", kind,
		"type", typ,
		"known", known,
	)
}
