package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashverse/animato/internal/config"
	"github.com/ashverse/animato/internal/conversation"
	"github.com/ashverse/animato/internal/eventbus"
	"github.com/ashverse/animato/internal/expression"
	"github.com/ashverse/animato/internal/handlers"
	"github.com/ashverse/animato/internal/observe"
	"github.com/ashverse/animato/pkg/events"
	"github.com/ashverse/animato/pkg/provider/vad"
)

// Manager owns every connected client session. Each session gets its own
// event bus, orchestrator, VAD detector, and log level; the ASR, LLM, and TTS
// providers are shared. All exported methods are safe for concurrent use.
type Manager struct {
	providers Providers
	logger    *slog.Logger
	metrics   *observe.Metrics

	mu       sync.Mutex
	cfg      *config.Config
	sessions map[string]*Session
}

// ManagerConfig holds the dependencies for a [Manager].
type ManagerConfig struct {
	Config    *config.Config
	Providers Providers

	// Logger is the base logger; each session derives a level-scoped child
	// from it. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics is optional; nil disables session gauges.
	Metrics *observe.Metrics
}

// NewManager creates a Manager with the given dependencies.
func NewManager(mc ManagerConfig) *Manager {
	logger := mc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		providers: mc.Providers,
		logger:    logger,
		metrics:   mc.Metrics,
		cfg:       mc.Config,
		sessions:  make(map[string]*Session),
	}
}

// SetConfig swaps the configuration used for sessions opened from now on.
// Live sessions keep the settings they were built with.
func (m *Manager) SetConfig(cfg *config.Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

// ApplyConfig is the hot-reload entry point: it diffs prev against next and
// installs next for future sessions only when the diff carries a
// hot-reloadable change. Provider, server, and conversation changes are
// logged as needing a restart and the running config keeps its old values.
func (m *Manager) ApplyConfig(prev, next *config.Config) config.ConfigDiff {
	d := config.Diff(prev, next)
	if d.RestartRequired {
		m.logger.Warn("config change touches providers, server, or conversation settings; restart to apply those")
	}
	if d.Any() {
		m.SetConfig(next)
		m.logger.Info("configuration reloaded; applies to new sessions",
			"persona_changed", d.PersonaChanged,
			"emotion_changed", d.EmotionChanged,
			"log_level_changed", d.LogLevelChanged,
		)
	}
	return d
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Get returns the session with the given id, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Open creates a session for one client connection: a fresh event bus with
// the frame handlers registered, an orchestrator over the shared providers,
// and a per-session VAD detector. The connection-established frame goes out
// before Open returns; the persona's greeting (if any) follows asynchronously.
//
// ctx bounds the session's lifetime; Close (or CloseAll) ends it early.
func (m *Manager) Open(ctx context.Context, send handlers.SendFunc) (*Session, error) {
	m.mu.Lock()
	cfg := m.cfg
	m.mu.Unlock()

	id := uuid.NewString()

	level := new(slog.LevelVar)
	if lvl, err := ParseLevel(cfg.Server.LogLevel); err == nil {
		level.Set(lvl)
	}
	logger := slog.New(newLevelHandler(level, m.logger.Handler())).With("session_id", id)

	var vadSession vad.Session
	if m.providers.VAD != nil {
		sess, err := m.providers.VAD.NewSession(vad.Config{
			SampleRate:      cfg.Conversation.SampleRate,
			SpeechThreshold: cfg.Providers.VAD.FloatOption("speech_threshold", 0),
			MinSpeechMs:     cfg.Providers.VAD.IntOption("min_speech_ms", 0),
			SilenceHoldMs:   cfg.Providers.VAD.IntOption("silence_hold_ms", 0),
			PreRollMs:       cfg.Providers.VAD.IntOption("pre_roll_ms", 0),
		})
		if err != nil {
			return nil, fmt.Errorf("app: open vad session: %w", err)
		}
		vadSession = sess
	}

	bus := eventbus.New(eventbus.WithLogger(logger))
	proc := expression.NewProcessor(cfg.Emotion)
	orch := conversation.New(bus, proc,
		conversation.Providers{
			ASR: m.providers.ASR,
			LLM: m.providers.LLM,
			TTS: m.providers.TTS,
			VAD: vadSession,
		},
		conversation.WithLogger(logger),
		conversation.WithPersona(cfg.Persona),
		conversation.WithTurnTimeout(time.Duration(cfg.Conversation.TurnTimeoutSeconds)*time.Second),
		conversation.WithMaxHistory(cfg.Conversation.MaxHistory),
		conversation.WithKnownEmotions(cfg.Emotion.Known),
		conversation.WithASREngine(cfg.Providers.ASR.Type),
		conversation.WithLLMEngine(cfg.Providers.LLM.Type),
		conversation.WithTTSEngine(cfg.Providers.TTS.Type),
		conversation.WithMetrics(m.metrics),
	)

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ID:      id,
		logger:  logger,
		level:   level,
		bus:     bus,
		orch:    orch,
		send:    send,
		ctx:     sctx,
		cancel:  cancel,
		manager: m,
	}
	s.subs = handlers.Register(bus, send)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.AddSession(sctx, 1)
	}

	if err := send(events.ConnectionEstablishedFrame{
		Type:    events.OutConnectionEstablished,
		SID:     id,
		Message: "connected",
	}); err != nil {
		s.Close()
		return nil, fmt.Errorf("app: send connection-established: %w", err)
	}

	logger.Info("session opened")
	orch.Greet(sctx)
	return s, nil
}

// CloseAll tears down every live session. Used at server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// drop removes a closed session from the table.
func (m *Manager) drop(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()
}

// Session is the server side of one client connection.
type Session struct {
	// ID is the unique session identifier sent in connection-established.
	ID string

	logger  *slog.Logger
	level   *slog.LevelVar
	bus     *eventbus.Bus
	orch    *conversation.Orchestrator
	subs    []*eventbus.Subscription
	send    handlers.SendFunc
	ctx     context.Context
	cancel  context.CancelFunc
	manager *Manager

	closeOnce sync.Once
}

// HandleFrame demultiplexes one inbound client frame. Turn-starting frames
// derive from the session context, so a turn outlives the frame that carried
// it. Unknown frame types and bad payloads return an error; the caller
// decides whether to report it to the client.
func (s *Session) HandleFrame(f events.InboundFrame) error {
	switch f.Type {
	case events.InTextInput:
		if f.Text == "" {
			return fmt.Errorf("app: text_input frame without text")
		}
		s.orch.HandleText(s.ctx, f.Text)

	case events.InRawAudioData:
		s.orch.HandleAudio(s.ctx, f.Audio)

	case events.InMicAudioEnd:
		s.orch.HandleMicEnd(s.ctx)

	case events.InInterruptSignal:
		s.orch.Interrupt(s.ctx)

	case events.InClearHistory:
		s.orch.ClearHistory()
		s.logger.Info("chat log cleared by client")

	case events.InSetLogLevel:
		lvl, err := ParseLevel(config.LogLevel(f.Level))
		if err != nil {
			return err
		}
		s.level.Set(lvl)
		s.logger.Info("session log level changed", "level", f.Level)

	default:
		return fmt.Errorf("app: unknown frame type %q", f.Type)
	}
	return nil
}

// State exposes the orchestrator state, for diagnostics.
func (s *Session) State() conversation.State {
	return s.orch.State()
}

// Close tears the session down: the live turn is cancelled, handlers are
// unsubscribed, and the session leaves the manager's table. Safe to call more
// than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		if err := s.orch.Close(); err != nil {
			s.logger.Warn("orchestrator close failed", "err", err)
		}
		handlers.Unregister(s.bus, s.subs)
		s.bus.Clear()
		s.manager.drop(s)
		if s.manager.metrics != nil {
			s.manager.metrics.AddSession(context.Background(), -1)
		}
		s.logger.Info("session closed")
	})
}
