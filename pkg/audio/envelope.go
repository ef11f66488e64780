package audio

import "math"

const (
	// EnvelopeRate is the envelope sample rate in Hz: one value per 20 ms
	// window of audio. The avatar client indexes the envelope by
	// floor(elapsed_seconds * EnvelopeRate).
	EnvelopeRate = 50

	// DefaultEnvelopeGain scales the per-window RMS before clamping to 1.0.
	// Speech RMS rarely exceeds ~0.1, so a gain of 10 maps a loud voice to a
	// fully open mouth.
	DefaultEnvelopeGain = 10.0
)

// Envelope computes the clip's RMS volume envelope at [EnvelopeRate] Hz with
// [DefaultEnvelopeGain].
func Envelope(clip Clip) []float64 {
	return EnvelopeWithGain(clip, DefaultEnvelopeGain)
}

// EnvelopeWithGain computes the volume envelope with a caller-chosen gain.
// Each value is min(1.0, gain·rms(window)) for one 20 ms window; the last
// partial window is rounded down. A non-empty clip shorter than one window
// still yields a single value covering the whole clip.
func EnvelopeWithGain(clip Clip, gain float64) []float64 {
	if len(clip.Samples) == 0 || clip.SampleRate <= 0 {
		return nil
	}

	window := clip.SampleRate / EnvelopeRate
	if window <= 0 {
		window = 1
	}

	n := len(clip.Samples) / window
	if n == 0 {
		// Shorter than one window: one value over everything.
		return []float64{windowRMS(clip.Samples, gain)}
	}

	out := make([]float64, n)
	for i := range n {
		out[i] = windowRMS(clip.Samples[i*window:(i+1)*window], gain)
	}
	return out
}

// windowRMS returns min(1.0, gain·rms) for one window of samples.
func windowRMS(samples []float64, gain float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	return math.Min(1.0, gain*rms)
}
