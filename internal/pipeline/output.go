package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ashverse/animato/internal/eventbus"
	"github.com/ashverse/animato/internal/expression"
	"github.com/ashverse/animato/internal/observe"
	"github.com/ashverse/animato/pkg/events"
	"github.com/ashverse/animato/pkg/fault"
	"github.com/ashverse/animato/pkg/provider/tts"
)

// Sentence is one unit of agent speech headed for synthesis. Text is clean
// (markers already stripped); Tags carry what was stripped.
type Sentence struct {
	Seq  int
	Text string
	Tags []events.EmotionTag
}

// Output fans sentences out to concurrent synthesis and releases the
// finished audio_with_expression events strictly in sequence order. The
// sentence event itself is emitted immediately on arrival, so text always
// precedes its audio and never reorders.
type Output struct {
	tts    tts.Provider
	proc   *expression.Processor
	bus    *eventbus.Bus
	logger *slog.Logger

	// Concurrency bounds the in-flight synthesis calls per turn. Zero means
	// [DefaultConcurrency].
	Concurrency int

	// Metrics, when non-nil, receives per-sentence synthesis and lipsync
	// latencies plus provider request counters.
	Metrics *observe.Metrics

	// Engine labels the synthesis backend in metric attributes.
	Engine string
}

// DefaultConcurrency is the synthesis fan-out width per turn.
const DefaultConcurrency = 3

// NewOutput wires the synthesis fan-out.
func NewOutput(provider tts.Provider, proc *expression.Processor, bus *eventbus.Bus, logger *slog.Logger) *Output {
	if logger == nil {
		logger = slog.Default()
	}
	return &Output{tts: provider, proc: proc, bus: bus, logger: logger}
}

type synthResult struct {
	seq     int
	payload events.AudioExpressionPayload
	err     error
}

// Run consumes sentences until the channel closes or ctx is cancelled.
// Sentences must arrive with ascending, gapless Seq values. A failed
// synthesis drops only its own sentence: an error event takes its slot in
// the release order and later audio still plays. Cancellation drops all
// audio not yet emitted.
func (o *Output) Run(ctx context.Context, sentences <-chan Sentence) error {
	width := o.Concurrency
	if width <= 0 {
		width = DefaultConcurrency
	}

	results := make(chan synthResult, width)
	firstSeq := make(chan int, 1)

	releaseDone := make(chan struct{})
	go func() {
		defer close(releaseDone)
		o.release(ctx, firstSeq, results)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(width)

	first := true
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case s, ok := <-sentences:
			if !ok {
				break loop
			}
			if first {
				first = false
				firstSeq <- s.Seq
			}
			if err := o.bus.Emit(ctx, events.NewSentence(s.Text, s.Seq)); err != nil {
				o.logger.Warn("sentence event delivery incomplete", "seq", s.Seq, "err", err)
			}
			g.Go(func() error {
				o.synthesize(gctx, s, results)
				return nil
			})
		}
	}

	g.Wait()
	close(results)
	<-releaseDone
	return ctx.Err()
}

// synthesize runs TTS and expression processing for one sentence and funnels
// the outcome to the releaser.
func (o *Output) synthesize(ctx context.Context, s Sentence, results chan<- synthResult) {
	res := synthResult{seq: s.Seq}

	start := time.Now()
	audioData, format, err := o.tts.Synthesize(ctx, s.Text)
	if o.Metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.Metrics.RecordStage(ctx, o.Metrics.TTSDuration, o.Engine, time.Since(start))
		o.Metrics.RecordProviderRequest(ctx, o.Engine, "tts", status)
		if err != nil {
			o.Metrics.RecordProviderError(ctx, o.Engine, "tts")
		}
	}
	if err == nil {
		lipStart := time.Now()
		res.payload, res.err = o.proc.Process(s.Text, s.Tags, audioData, format)
		if o.Metrics != nil {
			o.Metrics.RecordStage(ctx, o.Metrics.LipsyncDuration, o.Engine, time.Since(lipStart))
		}
	} else {
		res.err = err
	}

	select {
	case results <- res:
	case <-ctx.Done():
	}
}

// release emits audio events in seq order, holding early finishers until
// their turn. A failed seq is released as an error event so the order never
// stalls.
func (o *Output) release(ctx context.Context, firstSeq <-chan int, results <-chan synthResult) {
	var (
		next    int
		started bool
	)
	pending := make(map[int]synthResult)

	for {
		select {
		case <-ctx.Done():
			return
		case seq := <-firstSeq:
			next = seq
			started = true
		case res, ok := <-results:
			if !ok {
				return
			}
			pending[res.seq] = res
		}
		if !started {
			continue
		}
		for {
			res, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			o.emit(ctx, res)
			next++
		}
	}
}

func (o *Output) emit(ctx context.Context, res synthResult) {
	if res.err != nil {
		kind := fault.KindOf(res.err)
		if kind == "" {
			kind = fault.TTSUnavailable
		}
		o.logger.Error("sentence synthesis failed", "seq", res.seq, "err", res.err)
		if err := o.bus.Emit(ctx, events.NewErrorSeq(kind, res.err.Error(), res.seq)); err != nil {
			o.logger.Warn("error event delivery incomplete", "seq", res.seq, "err", err)
		}
		return
	}
	if err := o.bus.Emit(ctx, events.NewAudioExpression(res.payload, res.seq)); err != nil {
		o.logger.Warn("audio event delivery incomplete", "seq", res.seq, "err", err)
	}
}
