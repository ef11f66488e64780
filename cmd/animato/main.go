// Command animato is the Animato conversational avatar server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/ashverse/animato/internal/app"
	"github.com/ashverse/animato/internal/config"
	"github.com/ashverse/animato/internal/observe"
	"github.com/ashverse/animato/internal/server"
	"github.com/ashverse/animato/pkg/provider/asr"
	asrmock "github.com/ashverse/animato/pkg/provider/asr/mock"
	asropenai "github.com/ashverse/animato/pkg/provider/asr/openai"
	"github.com/ashverse/animato/pkg/provider/asr/whispercpp"
	"github.com/ashverse/animato/pkg/provider/llm"
	"github.com/ashverse/animato/pkg/provider/llm/anyllm"
	llmmock "github.com/ashverse/animato/pkg/provider/llm/mock"
	llmopenai "github.com/ashverse/animato/pkg/provider/llm/openai"
	"github.com/ashverse/animato/pkg/provider/tts"
	ttsmock "github.com/ashverse/animato/pkg/provider/tts/mock"
	ttsopenai "github.com/ashverse/animato/pkg/provider/tts/openai"
	"github.com/ashverse/animato/pkg/provider/vad"
	"github.com/ashverse/animato/pkg/provider/vad/energy"
	vadmock "github.com/ashverse/animato/pkg/provider/vad/mock"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "animato: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "animato: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("animato starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics provider ──────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "animato"})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(sctx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	for kind, types := range reg.Registered() {
		slog.Debug("registered provider factories", "kind", kind, "types", types)
	}

	providers, closers, err := app.BuildProviders(reg, cfg.Providers)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				slog.Warn("provider close error", "err", err)
			}
		}
	}()

	// ── Session manager ───────────────────────────────────────────────────────
	manager := app.NewManager(app.ManagerConfig{
		Config:    cfg,
		Providers: providers,
		Logger:    logger,
		Metrics:   metrics,
	})

	// ── Config hot reload ─────────────────────────────────────────────────────
	// Persona, emotion, and log level apply to sessions opened after the
	// change; provider and server changes need a restart.
	watcher, err := config.NewWatcher(*configPath, func(prev, next *config.Config) {
		manager.ApplyConfig(prev, next)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── HTTP / WebSocket server ───────────────────────────────────────────────
	srv := server.New(cfg.Server, manager,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithReadiness(app.ReadinessChecks(providers)...),
	)

	slog.Info("server ready",
		"asr", cfg.Providers.ASR.Type,
		"llm", cfg.Providers.LLM.Type,
		"tts", cfg.Providers.TTS.Type,
		"vad", cfg.Providers.VAD.Type,
	)

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyLLMBackends lists the hosted backends exposed through any-llm. Each uses
// the same pattern: optional APIKey + optional BaseURL.
var anyLLMBackends = []string{
	"anthropic", "gemini", "deepseek", "mistral", "groq",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── ASR ───────────────────────────────────────────────────────────────────

	reg.RegisterASR("openai", func(entry config.ProviderEntry) (asr.Provider, error) {
		var opts []asropenai.Option
		if entry.Model != "" {
			opts = append(opts, asropenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, asropenai.WithBaseURL(entry.BaseURL))
		}
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, asropenai.WithLanguage(lang))
		}
		return asropenai.New(entry.APIKey, opts...)
	})

	reg.RegisterASR("whispercpp", func(entry config.ProviderEntry) (asr.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.StringOption("model_path", "")
		}
		var opts []whispercpp.Option
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, whispercpp.WithLanguage(lang))
		}
		return whispercpp.New(modelPath, opts...)
	})

	reg.RegisterASR("mock", func(entry config.ProviderEntry) (asr.Provider, error) {
		return &asrmock.Provider{Text: entry.StringOption("text", "mock transcript")}, nil
	})

	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		if temp := entry.FloatOption("temperature", -1); temp >= 0 {
			opts = append(opts, llmopenai.WithTemperature(temp))
		}
		if n := entry.IntOption("max_tokens", 0); n > 0 {
			opts = append(opts, llmopenai.WithMaxTokens(n))
		}
		return llmopenai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, backend := range anyLLMBackends {
		reg.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			var backendOpts []anyllmlib.Option
			if entry.APIKey != "" {
				backendOpts = append(backendOpts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				backendOpts = append(backendOpts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, backendOpts)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var backendOpts []anyllmlib.Option
		if entry.BaseURL != "" {
			backendOpts = append(backendOpts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, backendOpts)
	})

	reg.RegisterLLM("mock", func(entry config.ProviderEntry) (llm.Provider, error) {
		reply := entry.StringOption("reply", "Hello! This is the mock agent speaking.")
		return &llmmock.Provider{Chunks: []string{reply}}, nil
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsopenai.Option
		if entry.Model != "" {
			opts = append(opts, ttsopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		if voice := entry.StringOption("voice", ""); voice != "" {
			opts = append(opts, ttsopenai.WithVoice(voice))
		}
		if speed := entry.FloatOption("speed", 0); speed > 0 {
			opts = append(opts, ttsopenai.WithSpeed(speed))
		}
		return ttsopenai.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("energy", func(config.ProviderEntry) (vad.Engine, error) {
		return energy.New(), nil
	})

	reg.RegisterVAD("mock", func(config.ProviderEntry) (vad.Engine, error) {
		return &vadmock.Engine{}, nil
	})
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	lvl, err := app.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
