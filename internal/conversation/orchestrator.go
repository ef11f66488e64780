package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashverse/animato/internal/config"
	"github.com/ashverse/animato/internal/eventbus"
	"github.com/ashverse/animato/internal/expression"
	"github.com/ashverse/animato/internal/observe"
	"github.com/ashverse/animato/internal/pipeline"
	"github.com/ashverse/animato/pkg/events"
	"github.com/ashverse/animato/pkg/fault"
	"github.com/ashverse/animato/pkg/provider/asr"
	"github.com/ashverse/animato/pkg/provider/llm"
	"github.com/ashverse/animato/pkg/provider/tts"
	"github.com/ashverse/animato/pkg/provider/vad"
)

// DefaultTurnTimeout bounds one turn from input through the last synthesized
// sentence.
const DefaultTurnTimeout = 120 * time.Second

// Providers bundles the session's live provider instances. ASR, LLM, and TTS
// are shared across sessions; VAD is per-session and may be nil when the
// client never streams audio.
type Providers struct {
	ASR asr.Provider
	LLM llm.Provider
	TTS tts.Provider
	VAD vad.Session
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithPersona sets the character the agent plays.
func WithPersona(p config.PersonaConfig) Option {
	return func(o *Orchestrator) { o.persona = p }
}

// WithTurnTimeout overrides [DefaultTurnTimeout]. Zero or negative keeps the
// default.
func WithTurnTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.turnTimeout = d
		}
	}
}

// WithMaxHistory bounds the chat log in messages.
func WithMaxHistory(n int) Option {
	return func(o *Orchestrator) { o.history = NewHistory(n) }
}

// WithKnownEmotions lists the emotions the avatar can display; the agent is
// prompted to tag its sentences with them.
func WithKnownEmotions(known []string) Option {
	return func(o *Orchestrator) { o.known = known }
}

// WithASREngine names the recognizer in transcript metadata and metrics.
func WithASREngine(name string) Option {
	return func(o *Orchestrator) { o.asrEngine = name }
}

// WithLLMEngine names the agent backend in metrics.
func WithLLMEngine(name string) Option {
	return func(o *Orchestrator) { o.llmEngine = name }
}

// WithTTSEngine names the synthesis backend in metrics.
func WithTTSEngine(name string) Option {
	return func(o *Orchestrator) { o.ttsEngine = name }
}

// WithMetrics attaches the pipeline instruments. Nil disables recording.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator owns one session's conversation: the idle, listening,
// processing, speaking state machine, the live turn with its cancellation and
// timeout, the chat log, and the wiring between the providers and the event
// bus.
//
// Inbound methods (HandleText, HandleAudio, HandleMicEnd, Interrupt,
// ClearHistory) are safe to call from the session's read loop; the turn
// itself runs on its own goroutine so an interrupt never waits behind
// provider I/O.
type Orchestrator struct {
	logger    *slog.Logger
	bus       *eventbus.Bus
	proc      *expression.Processor
	providers Providers
	listener  *pipeline.Listener

	persona     config.PersonaConfig
	known       []string
	asrEngine   string
	llmEngine   string
	ttsEngine   string
	turnTimeout time.Duration
	metrics     *observe.Metrics

	mu         sync.Mutex
	state      State
	turn       *turn
	history    *History
	nextTurnID int
}

// turn is one live user-input-to-reply cycle.
type turn struct {
	id     int
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	spoken []string
}

func (t *turn) recordSpoken(sentence string) {
	t.mu.Lock()
	t.spoken = append(t.spoken, sentence)
	t.mu.Unlock()
}

// spokenText joins the sentences handed to the output pipeline so far.
func (t *turn) spokenText() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.spoken, " ")
}

// New builds an Orchestrator over the session's bus and providers.
func New(bus *eventbus.Bus, proc *expression.Processor, p Providers, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:      slog.Default(),
		bus:         bus,
		proc:        proc,
		providers:   p,
		asrEngine:   "asr",
		llmEngine:   "llm",
		ttsEngine:   "tts",
		turnTimeout: DefaultTurnTimeout,
		state:       StateIdle,
		history:     NewHistory(0),
	}
	if p.VAD != nil {
		o.listener = pipeline.NewListener(p.VAD)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current conversation state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// HistoryMessages returns a snapshot of the chat log.
func (o *Orchestrator) HistoryMessages() []llm.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.history.Messages()
}

// ClearHistory empties the chat log. The next turn starts from a blank
// context, as if the session were fresh.
func (o *Orchestrator) ClearHistory() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history.Clear()
}

// HandleText begins a turn from typed input. ctx should span the session:
// the turn derives its lifetime from it and survives the frame that carried
// the text.
func (o *Orchestrator) HandleText(ctx context.Context, text string) {
	ic := pipeline.NewInputContext()
	ic.Text = text
	o.beginTurn(ctx, ic, false)
}

// HandleAudio feeds one chunk of 16 kHz mono PCM through the VAD. The first
// chunk in idle opens the listening state; a completed utterance begins a
// turn. Chunks arriving while a turn is live are dropped, per the rule that
// voice detection belongs to the listening state only.
func (o *Orchestrator) HandleAudio(ctx context.Context, chunk []int16) {
	o.mu.Lock()
	switch o.state {
	case StateIdle:
		o.setStateLocked(StateListening)
	case StateListening:
	default:
		st := o.state
		o.mu.Unlock()
		o.logger.Debug("audio chunk dropped outside listening", "state", st)
		return
	}
	listener := o.listener
	o.mu.Unlock()

	if listener == nil {
		o.logger.Warn("audio received but no voice detector is configured")
		return
	}

	utterance, done, err := listener.Feed(chunk)
	if err != nil {
		o.logger.Warn("voice detection failed, dropping capture", "err", err)
		listener.Reset()
		return
	}
	if !done {
		return
	}
	if len(utterance) == 0 {
		o.noAudio(ctx)
		return
	}

	ic := pipeline.NewInputContext()
	ic.RawAudio = utterance
	o.beginTurn(ctx, ic, true)
}

// HandleMicEnd force-closes the current utterance capture: whatever the VAD
// holds is transcribed, or the no-audio-data control answers an empty
// capture.
func (o *Orchestrator) HandleMicEnd(ctx context.Context) {
	o.mu.Lock()
	if o.state != StateListening {
		o.mu.Unlock()
		return
	}
	listener := o.listener
	o.mu.Unlock()

	if listener == nil {
		return
	}
	utterance := listener.FlushUtterance()
	if len(utterance) == 0 {
		o.noAudio(ctx)
		return
	}
	ic := pipeline.NewInputContext()
	ic.RawAudio = utterance
	o.beginTurn(ctx, ic, true)
}

// Interrupt cancels the live turn: the LLM stream closes, in-flight
// synthesis is abandoned, the partial reply lands in the chat log, and the
// interrupted control tells the client to stop playback. A no-op outside a
// live turn.
func (o *Orchestrator) Interrupt(ctx context.Context) {
	o.mu.Lock()
	t := o.turn
	o.mu.Unlock()
	if t == nil {
		o.logger.Debug("interrupt with no live turn")
		return
	}

	t.cancel()
	<-t.done

	if o.metrics != nil {
		o.metrics.RecordInterrupt(ctx)
	}
	if err := o.bus.Emit(ctx, events.NewControl(events.SignalInterrupted)); err != nil {
		o.logger.Warn("interrupted control delivery incomplete", "err", err)
	}
	o.mu.Lock()
	o.setStateLocked(StateIdle)
	o.mu.Unlock()
}

// Greet speaks the persona's configured greeting through the output
// pipeline, so the avatar opens the conversation. A no-op without a
// greeting.
func (o *Orchestrator) Greet(ctx context.Context) {
	if o.persona.Greeting == "" {
		return
	}
	t, turnCtx, ok := o.startTurn(ctx)
	if !ok {
		return
	}
	go o.runGreeting(turnCtx, t)
}

// Close cancels the live turn and releases the session's VAD.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	t := o.turn
	o.mu.Unlock()
	if t != nil {
		t.cancel()
		<-t.done
	}
	if o.listener != nil {
		return o.listener.Close()
	}
	return nil
}

// ─── turn lifecycle ──────────────────────────────────────────────────────────

// beginTurn cancels any live turn and launches a new one over the input.
func (o *Orchestrator) beginTurn(ctx context.Context, ic *pipeline.InputContext, fromAudio bool) {
	t, turnCtx, ok := o.startTurn(ctx)
	if !ok {
		return
	}
	go o.runTurn(turnCtx, t, ic, fromAudio)
}

// startTurn installs a fresh turn, cancelling and draining its predecessor.
func (o *Orchestrator) startTurn(ctx context.Context) (*turn, context.Context, bool) {
	o.mu.Lock()
	for prev := o.turn; prev != nil; prev = o.turn {
		o.mu.Unlock()
		prev.cancel()
		<-prev.done
		o.mu.Lock()
	}
	if o.state == StateError {
		o.mu.Unlock()
		return nil, nil, false
	}
	o.nextTurnID++
	turnCtx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	t := &turn{id: o.nextTurnID, cancel: cancel, done: make(chan struct{})}
	o.turn = t
	o.setStateLocked(StateProcessing)
	o.mu.Unlock()
	return t, turnCtx, true
}

// runTurn is the turn body: input chain, LLM stream, sentence assembly, and
// the ordered synthesis fan-out. Runs on its own goroutine.
func (o *Orchestrator) runTurn(ctx context.Context, t *turn, ic *pipeline.InputContext, fromAudio bool) {
	defer close(t.done)
	defer t.cancel()

	// Emissions after a timeout or cancel still need a live context.
	emitCtx := context.WithoutCancel(ctx)

	turnStart := time.Now()
	defer func() {
		if o.metrics != nil {
			o.metrics.TurnDuration.Record(emitCtx, time.Since(turnStart).Seconds())
		}
	}()

	chain := pipeline.NewInputChain(
		pipeline.TranscribeStep(o.providers.ASR, o.asrEngine),
		pipeline.NormalizeStep(),
		pipeline.ExtractTagsStep(o.proc),
	)
	chainStart := time.Now()
	chain.Process(ctx, ic)
	if fromAudio && o.metrics != nil {
		status := "ok"
		if ic.Err != nil {
			status = "error"
		}
		o.metrics.RecordStage(emitCtx, o.metrics.ASRDuration, o.asrEngine, time.Since(chainStart))
		o.metrics.RecordProviderRequest(emitCtx, o.asrEngine, "asr", status)
		if ic.Err != nil {
			o.metrics.RecordProviderError(emitCtx, o.asrEngine, "asr")
		}
	}

	switch {
	case ic.Err != nil:
		o.logger.Error("input pipeline failed", "turn", t.id, "err", ic.Err)
		o.emit(emitCtx, events.NewError(kindOr(ic.Err, fault.ASRUnavailable), ic.Err.Error()))
		o.finish(t, StateIdle)
		return
	case ic.SkipRemaining:
		o.emit(emitCtx, events.NewControl(events.SignalNoAudioData))
		o.finish(t, StateIdle)
		return
	}

	if fromAudio {
		o.emit(ctx, events.NewTranscript(ic.Text, true))
	}

	o.mu.Lock()
	msgs := make([]llm.Message, 0, o.history.Len()+2)
	if sp := o.systemPrompt(); sp != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: sp})
	}
	msgs = append(msgs, o.history.Messages()...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: ic.Text})
	o.history.Add(llm.RoleUser, ic.Text)
	o.mu.Unlock()

	llmStart := time.Now()
	stream, err := o.providers.LLM.ChatStream(ctx, msgs)
	if err != nil {
		o.logger.Error("agent stream failed to open", "turn", t.id, "err", err)
		if o.metrics != nil {
			o.metrics.RecordProviderRequest(emitCtx, o.llmEngine, "llm", "error")
			o.metrics.RecordProviderError(emitCtx, o.llmEngine, "llm")
		}
		o.emit(emitCtx, events.NewError(kindOr(err, fault.LLMUnavailable), err.Error()))
		o.finish(t, StateIdle)
		return
	}
	defer stream.Close()

	sentences := make(chan pipeline.Sentence)
	out := pipeline.NewOutput(o.providers.TTS, o.proc, o.bus, o.logger)
	out.Metrics = o.metrics
	out.Engine = o.ttsEngine
	outDone := make(chan error, 1)
	go func() { outDone <- out.Run(ctx, sentences) }()

	var (
		asm    pipeline.Assembler
		seq    int
		llmErr error
	)
	speak := func(raw string) bool {
		// Analyze sees one sentence at a time, so tag positions are offsets
		// into that sentence rather than the whole reply. Downstream only
		// consumes tag order, which is the same either way.
		clean, tags := o.proc.Analyze(raw)
		clean = strings.TrimSpace(clean)
		if clean == "" {
			return true
		}
		o.toSpeaking()
		select {
		case sentences <- pipeline.Sentence{Seq: seq, Text: clean, Tags: tags}:
		case <-ctx.Done():
			return false
		}
		seq++
		t.recordSpoken(clean)
		return true
	}

consume:
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			llmErr = err
			break
		}
		for _, s := range asm.Feed(chunk) {
			if !speak(s) {
				break consume
			}
		}
	}
	if llmErr == nil && ctx.Err() == nil {
		if rest := asm.Flush(); rest != "" {
			speak(rest)
		}
	}
	if o.metrics != nil {
		status := "ok"
		if llmErr != nil {
			status = "error"
		}
		o.metrics.RecordStage(emitCtx, o.metrics.LLMDuration, o.llmEngine, time.Since(llmStart))
		o.metrics.RecordProviderRequest(emitCtx, o.llmEngine, "llm", status)
		if llmErr != nil {
			o.metrics.RecordProviderError(emitCtx, o.llmEngine, "llm")
		}
	}
	close(sentences)
	<-outDone

	o.appendAssistant(t.spokenText())

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		o.logger.Warn("turn timed out", "turn", t.id, "timeout", o.turnTimeout)
		o.emit(emitCtx, events.NewError(fault.TurnTimeout, "turn timed out before the reply completed"))
		o.finish(t, StateIdle)
	case ctx.Err() != nil:
		// Interrupted or session closed; the interrupted control is the
		// interrupter's job, nothing more is emitted for this turn.
		o.finish(t, StateIdle)
	case llmErr != nil:
		o.logger.Error("agent stream broke mid-reply", "turn", t.id, "err", llmErr)
		o.emit(emitCtx, events.NewError(kindOr(llmErr, fault.LLMUnavailable), llmErr.Error()))
		o.finish(t, StateIdle)
	default:
		o.emit(ctx, events.NewControl(events.SignalConversationEnd))
		o.finish(t, StateIdle)
	}
}

// runGreeting speaks static text through the output pipeline, no LLM
// involved.
func (o *Orchestrator) runGreeting(ctx context.Context, t *turn) {
	defer close(t.done)
	defer t.cancel()

	sentences := make(chan pipeline.Sentence)
	out := pipeline.NewOutput(o.providers.TTS, o.proc, o.bus, o.logger)
	out.Metrics = o.metrics
	out.Engine = o.ttsEngine
	outDone := make(chan error, 1)
	go func() { outDone <- out.Run(ctx, sentences) }()

	var asm pipeline.Assembler
	seq := 0
	parts := asm.Feed(o.persona.Greeting)
	if rest := asm.Flush(); rest != "" {
		parts = append(parts, rest)
	}
feed:
	for _, raw := range parts {
		clean, tags := o.proc.Analyze(raw)
		clean = strings.TrimSpace(clean)
		if clean == "" {
			continue
		}
		o.toSpeaking()
		select {
		case sentences <- pipeline.Sentence{Seq: seq, Text: clean, Tags: tags}:
		case <-ctx.Done():
			// The sentence never reached the pipeline; it must not land in
			// the chat log.
			break feed
		}
		seq++
		t.recordSpoken(clean)
	}
	close(sentences)
	<-outDone

	o.appendAssistant(t.spokenText())
	if ctx.Err() == nil {
		o.emit(ctx, events.NewControl(events.SignalConversationEnd))
	}
	o.finish(t, StateIdle)
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// noAudio answers an empty capture: control event, cleared detector, idle.
func (o *Orchestrator) noAudio(ctx context.Context) {
	o.emit(ctx, events.NewControl(events.SignalNoAudioData))
	if o.listener != nil {
		o.listener.Reset()
	}
	o.mu.Lock()
	o.setStateLocked(StateIdle)
	o.mu.Unlock()
}

// toSpeaking moves processing to speaking on the first output of a turn.
func (o *Orchestrator) toSpeaking() {
	o.mu.Lock()
	if o.state == StateProcessing {
		o.setStateLocked(StateSpeaking)
	}
	o.mu.Unlock()
}

// finish retires t and settles the state, unless a newer turn took over.
func (o *Orchestrator) finish(t *turn, state State) {
	o.mu.Lock()
	if o.turn == t {
		o.turn = nil
		o.setStateLocked(state)
	}
	o.mu.Unlock()
}

// appendAssistant records the agent's (possibly truncated) reply.
func (o *Orchestrator) appendAssistant(text string) {
	if text == "" {
		return
	}
	o.mu.Lock()
	o.history.Add(llm.RoleAssistant, text)
	o.mu.Unlock()
}

func (o *Orchestrator) emit(ctx context.Context, ev events.OutputEvent) {
	if err := o.bus.Emit(ctx, ev); err != nil {
		o.logger.Warn("event delivery incomplete", "type", ev.Type, "err", err)
	}
}

func (o *Orchestrator) setStateLocked(s State) {
	if o.state == s {
		return
	}
	o.logger.Debug("conversation state change", "from", o.state.String(), "to", s.String())
	o.state = s
}

// systemPrompt combines the persona with the emotion tagging instructions.
func (o *Orchestrator) systemPrompt() string {
	var b strings.Builder
	b.WriteString(o.persona.SystemPrompt)
	if len(o.known) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Mark the mood of each sentence with a leading bracketed tag, for example [")
		b.WriteString(o.known[0])
		b.WriteString("]Hello there. Available tags: [")
		b.WriteString(strings.Join(o.known, "], ["))
		b.WriteString("].")
	}
	return b.String()
}

// kindOr returns the fault kind of err, or fallback for untyped errors.
func kindOr(err error, fallback fault.Kind) fault.Kind {
	if kind := fault.KindOf(err); kind != "" {
		return kind
	}
	return fallback
}
