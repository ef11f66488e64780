// Package expression derives avatar expressions from agent text and pairs
// them with synthesized audio.
//
// The flow is split in two because the emotion markers must be stripped
// before synthesis: an Analyzer pulls tags out of a sentence and returns the
// clean text, then a Processor spreads those tags over the finished audio
// clip as a timeline and attaches the lipsync volume envelope.
package expression

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ashverse/animato/pkg/events"
)

// tagPattern matches [emotion] markers the agent is prompted to emit.
var tagPattern = regexp.MustCompile(`\[([a-zA-Z_]+)\]`)

// Analyzer extracts emotion tags from one sentence.
type Analyzer interface {
	// Analyze returns the sentence with markers removed and the tags found.
	// Tag positions are rune offsets into the original text, ordered
	// ascending.
	Analyze(text string) (clean string, tags []events.EmotionTag)
}

// TagAnalyzer reads explicit [emotion] markers. Markers outside the known
// set are left literal in the text and logged, not extracted.
type TagAnalyzer struct {
	known  map[string]struct{} // empty means accept everything
	logger *slog.Logger
}

// NewTagAnalyzer builds a TagAnalyzer restricted to the given emotion names.
// An empty list accepts any well-formed marker.
func NewTagAnalyzer(known []string) *TagAnalyzer {
	a := &TagAnalyzer{
		known:  make(map[string]struct{}, len(known)),
		logger: slog.Default(),
	}
	for _, k := range known {
		a.known[strings.ToLower(k)] = struct{}{}
	}
	return a
}

// Analyze implements Analyzer.
func (a *TagAnalyzer) Analyze(text string) (string, []events.EmotionTag) {
	var (
		tags []events.EmotionTag
		b    strings.Builder
		last int
	)
	b.Grow(len(text))

	for _, m := range tagPattern.FindAllStringSubmatchIndex(text, -1) {
		emotion := strings.ToLower(text[m[2]:m[3]])
		if !a.accepts(emotion) {
			a.logger.Warn("unknown emotion marker left in text", "emotion", emotion)
			continue
		}

		b.WriteString(text[last:m[0]])
		last = m[1]
		tags = append(tags, events.EmotionTag{
			Emotion:  emotion,
			Position: utf8.RuneCountInString(text[:m[0]]),
		})
	}
	b.WriteString(text[last:])

	return b.String(), tags
}

func (a *TagAnalyzer) accepts(emotion string) bool {
	if len(a.known) == 0 {
		return true
	}
	_, ok := a.known[emotion]
	return ok
}

// DefaultKeywords maps emotions to trigger words for the keyword analyzer.
// Deliberately small; tune per character through configuration later if the
// keyword strategy sees real use.
var DefaultKeywords = map[string][]string{
	"joy":      {"haha", "great", "wonderful", "yay", "awesome"},
	"sadness":  {"sorry", "sadly", "unfortunately", "miss"},
	"anger":    {"angry", "furious", "annoying"},
	"surprise": {"wow", "whoa", "really", "incredible"},
}

// KeywordAnalyzer infers emotions from trigger words when the agent emits no
// explicit markers. The text is returned unchanged.
type KeywordAnalyzer struct {
	triggers map[string]string // lowercased word to emotion
}

// NewKeywordAnalyzer builds a KeywordAnalyzer from an emotion-to-words map.
// Pass nil to use [DefaultKeywords].
func NewKeywordAnalyzer(keywords map[string][]string) *KeywordAnalyzer {
	if keywords == nil {
		keywords = DefaultKeywords
	}
	a := &KeywordAnalyzer{triggers: make(map[string]string)}
	for emotion, words := range keywords {
		for _, w := range words {
			a.triggers[strings.ToLower(w)] = strings.ToLower(emotion)
		}
	}
	return a
}

// Analyze implements Analyzer.
func (a *KeywordAnalyzer) Analyze(text string) (string, []events.EmotionTag) {
	var tags []events.EmotionTag

	pos := 0
	for _, word := range strings.Fields(text) {
		trimmed := strings.ToLower(strings.Trim(word, ".,!?;:\"'()"))
		if emotion, ok := a.triggers[trimmed]; ok {
			tags = append(tags, events.EmotionTag{Emotion: emotion, Position: pos})
		}
		pos += len([]rune(word)) + 1
	}

	return text, tags
}

// Compile-time interface assertions.
var (
	_ Analyzer = (*TagAnalyzer)(nil)
	_ Analyzer = (*KeywordAnalyzer)(nil)
)
