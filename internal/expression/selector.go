package expression

// Selection modes for choosing a primary emotion from a tagged sentence.
const (
	ModeFirst     = "first"
	ModeFrequency = "frequency"
	ModeMajority  = "majority"
)

// Primary picks the dominant emotion from tags according to mode and reports
// a confidence in the pick. An empty tag list yields the fallback emotion
// with zero confidence.
//
// Modes:
//   - first: the earliest tag wins, full confidence.
//   - frequency: the most frequent tag wins; confidence is its share.
//   - majority: like frequency, but falls back to fallback unless the winner
//     holds a strict majority.
func Primary(emotions []string, mode, fallback string) (string, float64) {
	if len(emotions) == 0 {
		return fallback, 0
	}

	switch mode {
	case ModeFrequency, ModeMajority:
		counts := make(map[string]int, len(emotions))
		best, bestCount := "", 0
		for _, e := range emotions {
			counts[e]++
			// First-seen wins ties.
			if counts[e] > bestCount {
				best, bestCount = e, counts[e]
			}
		}
		share := float64(bestCount) / float64(len(emotions))
		if mode == ModeMajority && bestCount*2 <= len(emotions) {
			return fallback, share
		}
		return best, share
	default: // ModeFirst
		return emotions[0], 1.0
	}
}
