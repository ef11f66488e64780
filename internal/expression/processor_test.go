package expression

import (
	"encoding/base64"
	"math"
	"testing"

	"github.com/ashverse/animato/internal/config"
	"github.com/ashverse/animato/pkg/audio"
	"github.com/ashverse/animato/pkg/fault"
)

// toneWAV builds a decodable mono WAV of the given duration.
func toneWAV(t *testing.T, seconds float64) []byte {
	t.Helper()
	const rate = 16000
	n := int(seconds * rate)
	samples := make([]float64, n)
	for i := range n {
		samples[i] = 0.25 * math.Sin(2*math.Pi*220*float64(i)/rate)
	}
	return audio.EncodeWAV(audio.Clip{Samples: samples, SampleRate: rate})
}

func TestProcessor_Process(t *testing.T) {
	t.Parallel()
	p := NewProcessor(config.EmotionConfig{Known: []string{"joy", "neutral"}})

	clean, tags := p.Analyze("[joy]Nice to meet you!")
	if clean != "Nice to meet you!" {
		t.Fatalf("unexpected clean text: %q", clean)
	}

	wav := toneWAV(t, 1.0)
	payload, err := p.Process(clean, tags, wav, "wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payload.Text != clean {
		t.Errorf("payload text mismatch: %q", payload.Text)
	}
	if payload.Format != "wav" {
		t.Errorf("expected format wav, got %q", payload.Format)
	}
	if math.Abs(payload.TotalDuration-1.0) > 0.01 {
		t.Errorf("expected ~1 s duration, got %v", payload.TotalDuration)
	}
	// 50 envelope values per second.
	if len(payload.Volumes) != 50 {
		t.Errorf("expected 50 envelope values, got %d", len(payload.Volumes))
	}
	for i, v := range payload.Volumes {
		if v < 0 || v > 1 {
			t.Fatalf("volume %d out of range: %v", i, v)
		}
	}
	if len(payload.Timeline) != 1 || payload.Timeline[0].Emotion != "joy" {
		t.Errorf("unexpected timeline: %+v", payload.Timeline)
	}

	decoded, err := base64.StdEncoding.DecodeString(payload.AudioBase64)
	if err != nil {
		t.Fatalf("audio is not valid base64: %v", err)
	}
	if len(decoded) != len(wav) {
		t.Errorf("expected original artifact bytes, got %d of %d", len(decoded), len(wav))
	}
}

func TestProcessor_ProcessUntagged(t *testing.T) {
	t.Parallel()
	p := NewProcessor(config.EmotionConfig{Default: "calm"})

	clean, tags := p.Analyze("Just a plain reply.")
	payload, err := p.Process(clean, tags, toneWAV(t, 0.5), "wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payload.Timeline) != 1 || payload.Timeline[0].Emotion != "calm" {
		t.Errorf("untagged sentence should get the default emotion, got %+v", payload.Timeline)
	}
}

func TestProcessor_DecodeFailure(t *testing.T) {
	t.Parallel()
	p := NewProcessor(config.EmotionConfig{})

	_, err := p.Process("text", nil, []byte("not audio"), "wav")
	if err == nil {
		t.Fatal("expected error for bogus audio")
	}
	if fault.KindOf(err) != fault.DecodeFailed {
		t.Errorf("expected decode_failed fault, got %v", fault.KindOf(err))
	}
}

func TestProcessor_ShortClipStillHasEnvelope(t *testing.T) {
	t.Parallel()
	p := NewProcessor(config.EmotionConfig{})

	// 5 ms clip: shorter than one 20 ms envelope window.
	payload, err := p.Process("hm", nil, toneWAV(t, 0.005), "wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payload.Volumes) != 1 {
		t.Errorf("expected a single envelope value for a sub-window clip, got %d", len(payload.Volumes))
	}
}

func TestProcessor_KeywordModeSelectsTimelineEmotion(t *testing.T) {
	t.Parallel()

	// "Wow, haha that was great!" hits surprise once and joy twice; the
	// keyword analyzer has no tag placement, so the whole clip gets the
	// primary emotion under the configured mode.
	const text = "Wow, haha that was great!"
	wav := toneWAV(t, 1.0)

	cases := []struct {
		mode string
		want string
	}{
		{mode: "first", want: "surprise"},
		{mode: "frequency", want: "joy"},
	}
	for _, tc := range cases {
		t.Run(tc.mode, func(t *testing.T) {
			t.Parallel()
			p := NewProcessor(config.EmotionConfig{Analyzer: "keyword", Mode: tc.mode})

			clean, tags := p.Analyze(text)
			if len(tags) != 3 {
				t.Fatalf("expected 3 keyword hits, got %+v", tags)
			}
			payload, err := p.Process(clean, tags, wav, "wav")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tl := payload.Timeline
			if len(tl) != 1 || tl[0].Emotion != tc.want {
				t.Errorf("expected a single %q segment, got %+v", tc.want, tl)
			}
			if len(tl) == 1 && math.Abs(tl[0].Duration-payload.TotalDuration) > 1e-9 {
				t.Errorf("primary segment must cover the whole clip, got %+v", tl[0])
			}
		})
	}
}

func TestProcessor_TagAnalyzerKeepsPerTagSlots(t *testing.T) {
	t.Parallel()
	p := NewProcessor(config.EmotionConfig{Mode: "frequency"})

	clean, tags := p.Analyze("[joy]Sure! [thinking]Let me see. [joy]Done.")
	payload, err := p.Process(clean, tags, toneWAV(t, 0.6), "wav")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payload.Timeline) != 3 {
		t.Errorf("explicit markers keep one slot each regardless of mode, got %+v", payload.Timeline)
	}
}

func TestProcessor_Emotions(t *testing.T) {
	t.Parallel()
	p := NewProcessor(config.EmotionConfig{Mode: "frequency", Default: "neutral"})

	_, tags := p.Analyze("[joy]a [anger]b [anger]c")
	data := p.Emotions(tags)
	if data.Primary != "anger" {
		t.Errorf("expected primary anger, got %q", data.Primary)
	}
	if len(data.Emotions) != 3 {
		t.Errorf("expected 3 emotions, got %v", data.Emotions)
	}
	if data.Confidence < 0.6 {
		t.Errorf("expected confidence >= 2/3, got %v", data.Confidence)
	}
}
