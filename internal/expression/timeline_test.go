package expression

import (
	"math"
	"testing"

	"github.com/ashverse/animato/pkg/events"
)

// checkCoverage asserts the segments are sorted, contiguous from 0, and sum
// to total within float tolerance.
func checkCoverage(t *testing.T, segments []events.TimelineSegment, total float64) {
	t.Helper()
	if len(segments) == 0 {
		t.Fatal("expected at least one segment")
	}
	if segments[0].Start != 0 {
		t.Errorf("first segment starts at %v, want 0", segments[0].Start)
	}
	sum := 0.0
	for i, s := range segments {
		if s.Duration <= 0 {
			t.Errorf("segment %d has non-positive duration %v", i, s.Duration)
		}
		if i > 0 && math.Abs(s.Start-segments[i-1].End()) > 1e-9 {
			t.Errorf("segment %d starts at %v, predecessor ends at %v", i, s.Start, segments[i-1].End())
		}
		sum += s.Duration
	}
	if math.Abs(sum-total) > 1e-6 {
		t.Errorf("durations sum to %v, want %v", sum, total)
	}
}

func tagList(emotions ...string) []events.EmotionTag {
	tags := make([]events.EmotionTag, len(emotions))
	for i, e := range emotions {
		tags[i] = events.EmotionTag{Emotion: e, Position: i * 10}
	}
	return tags
}

// ─── PositionTimeline ────────────────────────────────────────────────────────

func TestPositionTimeline_EqualSlots(t *testing.T) {
	t.Parallel()
	b := &PositionTimeline{Default: "neutral", Intensity: 1.0}

	segs := b.Build(tagList("happy", "thinking"), 2.0)
	checkCoverage(t, segs, 2.0)
	if len(segs) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(segs))
	}
	if segs[0].Emotion != "happy" || segs[0].Start != 0 || math.Abs(segs[0].Duration-1.0) > 1e-9 {
		t.Errorf("unexpected first slot: %+v", segs[0])
	}
	if segs[1].Emotion != "thinking" || math.Abs(segs[1].Start-1.0) > 1e-9 {
		t.Errorf("unexpected second slot: %+v", segs[1])
	}
}

func TestPositionTimeline_RepeatedEmotionKeepsSlots(t *testing.T) {
	t.Parallel()
	b := &PositionTimeline{Default: "neutral", Intensity: 1.0}

	segs := b.Build(tagList("joy", "sad", "joy"), 3.0)
	checkCoverage(t, segs, 3.0)
	if len(segs) != 3 {
		t.Fatalf("position timeline keeps one slot per tag, got %d", len(segs))
	}
	if segs[2].Emotion != "joy" {
		t.Errorf("unexpected last slot: %+v", segs[2])
	}
}

func TestPositionTimeline_NoTags(t *testing.T) {
	t.Parallel()
	b := &PositionTimeline{Default: "calm", Intensity: 0.8}

	segs := b.Build(nil, 1.5)
	checkCoverage(t, segs, 1.5)
	if len(segs) != 1 || segs[0].Emotion != "calm" || segs[0].Intensity != 0.8 {
		t.Errorf("expected a single default segment, got %+v", segs)
	}
}

func TestPositionTimeline_ZeroDuration(t *testing.T) {
	t.Parallel()
	b := &PositionTimeline{Default: "neutral"}
	if segs := b.Build(tagList("joy"), 0); segs != nil {
		t.Errorf("expected nil for zero duration, got %+v", segs)
	}
}

// ─── DurationTimeline ────────────────────────────────────────────────────────

func TestDurationTimeline_CountWeighted(t *testing.T) {
	t.Parallel()
	b := &DurationTimeline{Default: "neutral", Intensity: 1.0}

	// joy tagged twice, sad once: joy gets two thirds of the clip.
	segs := b.Build(tagList("joy", "sad", "joy"), 3.0)
	checkCoverage(t, segs, 3.0)
	if len(segs) != 2 {
		t.Fatalf("expected one slot per distinct emotion, got %d", len(segs))
	}
	if segs[0].Emotion != "joy" || math.Abs(segs[0].Duration-2.0) > 1e-9 {
		t.Errorf("unexpected joy slot: %+v", segs[0])
	}
	if segs[1].Emotion != "sad" || math.Abs(segs[1].Duration-1.0) > 1e-9 {
		t.Errorf("unexpected sad slot: %+v", segs[1])
	}
}

func TestDurationTimeline_ConfiguredWeights(t *testing.T) {
	t.Parallel()
	b := &DurationTimeline{
		Default:   "neutral",
		Intensity: 1.0,
		Weights:   map[string]float64{"sad": 3.0},
	}

	segs := b.Build(tagList("joy", "sad"), 4.0)
	checkCoverage(t, segs, 4.0)
	if math.Abs(segs[0].Duration-1.0) > 1e-9 || math.Abs(segs[1].Duration-3.0) > 1e-9 {
		t.Errorf("weights must skew the allocation, got %+v", segs)
	}
}

func TestDurationTimeline_FirstOccurrenceOrder(t *testing.T) {
	t.Parallel()
	b := &DurationTimeline{Default: "neutral", Intensity: 1.0}

	segs := b.Build(tagList("sad", "joy", "joy"), 3.0)
	if segs[0].Emotion != "sad" {
		t.Errorf("slots must follow first occurrence, got %+v", segs)
	}
}

func TestDurationTimeline_MinDurationFoldsShortSlots(t *testing.T) {
	t.Parallel()
	b := &DurationTimeline{Default: "neutral", Intensity: 1.0, MinDuration: 0.5}

	// blip would get 0.1 s of the 1.0 s clip; the floor folds it away.
	tags := tagList("joy", "joy", "joy", "joy", "joy", "joy", "joy", "joy", "joy", "blip")
	segs := b.Build(tags, 1.0)
	checkCoverage(t, segs, 1.0)
	if len(segs) != 1 || segs[0].Emotion != "joy" {
		t.Errorf("expected the short slot folded away, got %+v", segs)
	}
}

func TestDurationTimeline_MinDurationNeverEmptiesTimeline(t *testing.T) {
	t.Parallel()
	b := &DurationTimeline{Default: "neutral", Intensity: 1.0, MinDuration: 10}

	segs := b.Build(tagList("joy", "sad"), 1.0)
	checkCoverage(t, segs, 1.0)
	if len(segs) != 1 {
		t.Errorf("at least one slot must survive the floor, got %+v", segs)
	}
}

// ─── IntensityTimeline ───────────────────────────────────────────────────────

func TestIntensityTimeline_NormalizedWeights(t *testing.T) {
	t.Parallel()
	b := &IntensityTimeline{Default: "neutral"}

	segs := b.Build(tagList("joy", "sad", "joy"), 3.0)
	checkCoverage(t, segs, 3.0)
	if len(segs) != 2 {
		t.Fatalf("expected one slot per distinct emotion, got %d", len(segs))
	}
	if segs[0].Intensity != 1.0 {
		t.Errorf("heaviest emotion gets intensity 1.0, got %v", segs[0].Intensity)
	}
	if math.Abs(segs[1].Intensity-0.5) > 1e-9 {
		t.Errorf("sad carries half joy's weight, got intensity %v", segs[1].Intensity)
	}
}

func TestIntensityTimeline_NoTagsUsesFallbackIntensity(t *testing.T) {
	t.Parallel()
	b := &IntensityTimeline{Default: "calm", Intensity: 0.7}

	segs := b.Build(nil, 1.0)
	checkCoverage(t, segs, 1.0)
	if segs[0].Emotion != "calm" || segs[0].Intensity != 0.7 {
		t.Errorf("unexpected fallback segment: %+v", segs[0])
	}
}
