package expression

import (
	"encoding/base64"

	"github.com/ashverse/animato/internal/config"
	"github.com/ashverse/animato/pkg/audio"
	"github.com/ashverse/animato/pkg/events"
)

const (
	defaultEmotion   = "neutral"
	defaultIntensity = 1.0
)

// Processor turns one synthesized sentence into an audio_with_expression
// payload: decoded audio becomes a lipsync envelope, the sentence's emotion
// tags become an expression timeline, and the original encoded bytes ride
// along base64-encoded for the client's player.
type Processor struct {
	analyzer   Analyzer
	timeline   TimelineBuilder
	mode       string
	fallback   string
	transition float64

	// positional is true when the analyzer reports where in the sentence
	// each tag sits. Keyword hits carry no reliable placement, so their
	// sentences collapse to the mode-selected primary emotion instead.
	positional bool
}

// NewProcessor assembles a Processor from the emotion configuration,
// applying defaults for unset fields.
func NewProcessor(cfg config.EmotionConfig) *Processor {
	fallback := cfg.Default
	if fallback == "" {
		fallback = defaultEmotion
	}
	intensity := cfg.Intensity
	if intensity == 0 {
		intensity = defaultIntensity
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeFirst
	}

	var analyzer Analyzer
	positional := true
	switch cfg.Analyzer {
	case "keyword":
		analyzer = NewKeywordAnalyzer(nil)
		positional = false
	default:
		analyzer = NewTagAnalyzer(cfg.Known)
	}

	var timeline TimelineBuilder
	switch cfg.Timeline {
	case TimelineDuration:
		timeline = &DurationTimeline{
			Default:     fallback,
			Intensity:   intensity,
			Weights:     cfg.Weights,
			MinDuration: cfg.MinDuration,
		}
	case TimelineIntensity:
		timeline = &IntensityTimeline{
			Default:     fallback,
			Intensity:   intensity,
			Weights:     cfg.Weights,
			MinDuration: cfg.MinDuration,
		}
	default:
		timeline = &PositionTimeline{Default: fallback, Intensity: intensity}
	}

	return &Processor{
		analyzer:   analyzer,
		timeline:   timeline,
		mode:       mode,
		fallback:   fallback,
		transition: cfg.Transition,
		positional: positional,
	}
}

// Analyze strips emotion markers from a sentence before synthesis.
func (p *Processor) Analyze(text string) (string, []events.EmotionTag) {
	return p.analyzer.Analyze(text)
}

// Emotions summarizes a sentence's tags: every emotion in order plus the
// primary pick under the configured mode.
func (p *Processor) Emotions(tags []events.EmotionTag) events.EmotionData {
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Emotion
	}
	primary, confidence := Primary(names, p.mode, p.fallback)
	return events.EmotionData{Emotions: names, Primary: primary, Confidence: confidence}
}

// Process builds the payload for one synthesized sentence. cleanText and
// tags come from an earlier Analyze call; audioData/format is the TTS
// artifact. Returns a decode_failed fault when the artifact cannot be
// parsed.
//
// Positional tags each get their own timeline slot. Non-positional hits
// (keyword analyzer) reduce to one full-clip segment of the primary emotion
// picked under the configured mode.
func (p *Processor) Process(cleanText string, tags []events.EmotionTag, audioData []byte, format string) (events.AudioExpressionPayload, error) {
	clip, err := audio.Decode(audioData, format)
	if err != nil {
		return events.AudioExpressionPayload{}, err
	}

	timelineTags := tags
	if !p.positional && len(tags) > 0 {
		timelineTags = []events.EmotionTag{{Emotion: p.Emotions(tags).Primary}}
	}

	duration := clip.Duration()
	return events.AudioExpressionPayload{
		AudioBase64:   base64.StdEncoding.EncodeToString(audioData),
		Format:        format,
		Volumes:       audio.Envelope(clip),
		Timeline:      p.timeline.Build(timelineTags, duration),
		Transition:    p.transition,
		TotalDuration: duration,
		Text:          cleanText,
	}, nil
}
