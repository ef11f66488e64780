package expression

import "github.com/ashverse/animato/pkg/events"

// Timeline strategy names accepted in configuration.
const (
	TimelinePosition  = "position"
	TimelineDuration  = "duration"
	TimelineIntensity = "intensity"
)

// TimelineBuilder spreads a sentence's emotion tags over its audio clip.
// Returned segments are sorted by start, non-overlapping, and tile
// [0, totalDuration] exactly.
type TimelineBuilder interface {
	// Build returns the expression timeline for one clip. An untagged
	// sentence yields one segment with the builder's default emotion.
	// totalDuration <= 0 yields nil.
	Build(tags []events.EmotionTag, totalDuration float64) []events.TimelineSegment
}

// defaultSegment covers the whole clip with the fallback emotion.
func defaultSegment(emotion string, intensity, totalDuration float64) []events.TimelineSegment {
	return []events.TimelineSegment{{
		Emotion:   emotion,
		Start:     0,
		Duration:  totalDuration,
		Intensity: intensity,
	}}
}

// PositionTimeline gives each tag one equal slot in order of appearance:
// n tags split the clip into n slots of D/n seconds each.
type PositionTimeline struct {
	Default   string
	Intensity float64
}

// Build implements TimelineBuilder.
func (p *PositionTimeline) Build(tags []events.EmotionTag, totalDuration float64) []events.TimelineSegment {
	if totalDuration <= 0 {
		return nil
	}
	if len(tags) == 0 {
		return defaultSegment(p.Default, p.Intensity, totalDuration)
	}

	n := len(tags)
	segments := make([]events.TimelineSegment, n)
	for i, tag := range tags {
		start := totalDuration * float64(i) / float64(n)
		end := totalDuration * float64(i+1) / float64(n)
		segments[i] = events.TimelineSegment{
			Emotion:   tag.Emotion,
			Start:     start,
			Duration:  end - start,
			Intensity: p.Intensity,
		}
	}
	// Kill float drift so the durations sum to the clip length exactly.
	last := &segments[n-1]
	last.Duration = totalDuration - last.Start
	return segments
}

// weightedSlot is one distinct emotion with its accumulated weight, ordered
// by first occurrence in the tag list.
type weightedSlot struct {
	emotion string
	weight  float64
}

// weightSlots folds the tag list into distinct emotions. Each occurrence
// contributes the per-emotion weight (1.0 when unlisted).
func weightSlots(tags []events.EmotionTag, weights map[string]float64) []weightedSlot {
	index := make(map[string]int, len(tags))
	var slots []weightedSlot
	for _, tag := range tags {
		w := 1.0
		if v, ok := weights[tag.Emotion]; ok {
			w = v
		}
		if i, ok := index[tag.Emotion]; ok {
			slots[i].weight += w
			continue
		}
		index[tag.Emotion] = len(slots)
		slots = append(slots, weightedSlot{emotion: tag.Emotion, weight: w})
	}
	return slots
}

// layoutSlots allocates the clip proportionally to the slot weights,
// folding away slots that would fall under minDuration as long as at least
// one slot remains.
func layoutSlots(slots []weightedSlot, totalDuration, minDuration, intensity float64, normalized bool) []events.TimelineSegment {
	for len(slots) > 1 && minDuration > 0 {
		total := 0.0
		for _, s := range slots {
			total += s.weight
		}
		shortest, shortestAt := totalDuration, -1
		for i, s := range slots {
			if d := totalDuration * s.weight / total; d < minDuration && d <= shortest {
				shortest, shortestAt = d, i
			}
		}
		if shortestAt < 0 {
			break
		}
		slots = append(slots[:shortestAt], slots[shortestAt+1:]...)
	}

	total, maxWeight := 0.0, 0.0
	for _, s := range slots {
		total += s.weight
		maxWeight = max(maxWeight, s.weight)
	}

	segments := make([]events.TimelineSegment, len(slots))
	start := 0.0
	for i, s := range slots {
		d := totalDuration * s.weight / total
		in := intensity
		if normalized {
			in = s.weight / maxWeight
		}
		segments[i] = events.TimelineSegment{
			Emotion:   s.emotion,
			Start:     start,
			Duration:  d,
			Intensity: in,
		}
		start += d
	}
	last := &segments[len(segments)-1]
	last.Duration = totalDuration - last.Start
	return segments
}

// DurationTimeline allocates clip time per distinct emotion, proportional to
// how often it was tagged times its configured weight. Slot order follows
// first occurrence.
type DurationTimeline struct {
	Default     string
	Intensity   float64
	Weights     map[string]float64
	MinDuration float64
}

// Build implements TimelineBuilder.
func (d *DurationTimeline) Build(tags []events.EmotionTag, totalDuration float64) []events.TimelineSegment {
	if totalDuration <= 0 {
		return nil
	}
	if len(tags) == 0 {
		return defaultSegment(d.Default, d.Intensity, totalDuration)
	}
	return layoutSlots(weightSlots(tags, d.Weights), totalDuration, d.MinDuration, d.Intensity, false)
}

// IntensityTimeline lays segments out like [DurationTimeline] but sets each
// segment's intensity to its weight normalized against the heaviest slot.
type IntensityTimeline struct {
	Default     string
	Intensity   float64 // used for the untagged fallback segment only
	Weights     map[string]float64
	MinDuration float64
}

// Build implements TimelineBuilder.
func (d *IntensityTimeline) Build(tags []events.EmotionTag, totalDuration float64) []events.TimelineSegment {
	if totalDuration <= 0 {
		return nil
	}
	if len(tags) == 0 {
		return defaultSegment(d.Default, d.Intensity, totalDuration)
	}
	return layoutSlots(weightSlots(tags, d.Weights), totalDuration, d.MinDuration, 0, true)
}

// Compile-time interface assertions.
var (
	_ TimelineBuilder = (*PositionTimeline)(nil)
	_ TimelineBuilder = (*DurationTimeline)(nil)
	_ TimelineBuilder = (*IntensityTimeline)(nil)
)
