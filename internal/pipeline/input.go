package pipeline

import (
	"context"
	"strings"
	"unicode"

	"github.com/ashverse/animato/pkg/events"
	"github.com/ashverse/animato/pkg/provider/asr"
)

// Metadata keys set by the built-in input steps.
const (
	// MetaEmotionTags holds the []events.EmotionTag extracted from the input.
	MetaEmotionTags = "emotion_tags"

	// MetaASREngine names the recognizer that produced the text.
	MetaASREngine = "asr_engine"
)

// InputContext travels through the input chain for one user input. Exactly
// one of RawAudio or Text is set on entry; Text is authoritative once filled.
type InputContext struct {
	// RawAudio is the captured utterance, 16 kHz mono PCM.
	RawAudio []int16

	// Text is the user's input after transcription and normalization.
	Text string

	// Metadata carries step outputs keyed by the Meta* constants.
	Metadata map[string]any

	// SkipRemaining short-circuits the chain; the turn ends without
	// reaching the agent.
	SkipRemaining bool

	// Err terminates the chain; the orchestrator surfaces it as an error
	// event.
	Err error
}

// NewInputContext builds a context for one input.
func NewInputContext() *InputContext {
	return &InputContext{Metadata: make(map[string]any)}
}

// Tags returns the extracted emotion tags, if the extraction step ran.
func (ic *InputContext) Tags() []events.EmotionTag {
	tags, _ := ic.Metadata[MetaEmotionTags].([]events.EmotionTag)
	return tags
}

// InputStep is one stage of the input chain.
type InputStep struct {
	Name string
	Run  func(ctx context.Context, ic *InputContext)
}

// InputChain runs steps in order, stopping at the first one that sets Err or
// SkipRemaining.
type InputChain struct {
	steps []InputStep
}

// NewInputChain builds a chain over the given steps.
func NewInputChain(steps ...InputStep) *InputChain {
	return &InputChain{steps: steps}
}

// Process runs the chain on ic.
func (c *InputChain) Process(ctx context.Context, ic *InputContext) {
	for _, step := range c.steps {
		if ic.Err != nil || ic.SkipRemaining {
			return
		}
		step.Run(ctx, ic)
	}
}

// TranscribeStep fills Text from RawAudio via the recognizer. Text input
// passes through untouched. An empty transcription sets SkipRemaining so the
// orchestrator can answer with a no-audio-data control instead of a turn.
func TranscribeStep(provider asr.Provider, engine string) InputStep {
	return InputStep{
		Name: "transcribe",
		Run: func(ctx context.Context, ic *InputContext) {
			if ic.Text != "" || len(ic.RawAudio) == 0 {
				return
			}
			text, err := provider.Transcribe(ctx, toFloat32(ic.RawAudio))
			if err != nil {
				ic.Err = err
				return
			}
			if strings.TrimSpace(text) == "" {
				ic.SkipRemaining = true
				return
			}
			ic.Text = text
			ic.Metadata[MetaASREngine] = engine
		},
	}
}

// NormalizeStep trims the text and collapses whitespace runs to single
// spaces. Bracketed emotion markers pass through untouched.
func NormalizeStep() InputStep {
	return InputStep{
		Name: "normalize",
		Run: func(_ context.Context, ic *InputContext) {
			ic.Text = normalizeText(ic.Text)
			if ic.Text == "" {
				ic.SkipRemaining = true
			}
		},
	}
}

// tagStripper matches the Analyze signature of expression analyzers without
// importing the package.
type tagStripper interface {
	Analyze(text string) (string, []events.EmotionTag)
}

// ExtractTagsStep pulls [emotion] markers out of the input text and records
// them in Metadata.
func ExtractTagsStep(analyzer tagStripper) InputStep {
	return InputStep{
		Name: "extract_tags",
		Run: func(_ context.Context, ic *InputContext) {
			clean, tags := analyzer.Analyze(ic.Text)
			ic.Text = normalizeText(clean)
			if len(tags) > 0 {
				ic.Metadata[MetaEmotionTags] = tags
			}
		},
	}
}

// toFloat32 widens PCM16 to the normalized float32 form ASR providers take.
func toFloat32(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, v := range pcm {
		out[i] = float32(v) / 32768.0
	}
	return out
}

// normalizeText collapses all whitespace runs to single spaces and trims.
func normalizeText(s string) string {
	var (
		b       strings.Builder
		inSpace bool
	)
	b.Grow(len(s))
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace {
			b.WriteByte(' ')
			inSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
