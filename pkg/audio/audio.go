// Package audio decodes synthesized audio artifacts and derives the 50 Hz
// RMS volume envelope that drives the avatar's mouth parameter.
//
// Decoding is deliberately narrow: it supports exactly the containers the
// built-in TTS adapters produce (WAV and MP3). Anything else fails with a
// decode_failed fault: the envelope is computed server-side precisely so
// the client never needs a decoder, and the same applies to formats the
// server itself cannot read.
package audio

import "fmt"

// Clip is a decoded audio artifact: mono samples normalised to [-1, 1].
type Clip struct {
	// Samples is the mono sample vector.
	Samples []float64

	// SampleRate in Hz.
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// FromPCM16 builds a Clip from 16-bit signed little-endian PCM, down-mixing
// to mono by averaging channels. A trailing odd byte is ignored.
func FromPCM16(pcm []byte, sampleRate, channels int) Clip {
	if channels < 1 {
		channels = 1
	}
	frames := len(pcm) / (2 * channels)
	samples := make([]float64, frames)
	for i := range frames {
		var sum float64
		for ch := range channels {
			idx := (i*channels + ch) * 2
			s := int16(uint16(pcm[idx]) | uint16(pcm[idx+1])<<8)
			sum += float64(s) / 32768.0
		}
		samples[i] = sum / float64(channels)
	}
	return Clip{Samples: samples, SampleRate: sampleRate}
}

// FromInt16 builds a mono Clip from raw int16 samples (the client's
// raw_audio_data payload format).
func FromInt16(samples []int16, sampleRate int) Clip {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768.0
	}
	return Clip{Samples: out, SampleRate: sampleRate}
}

// Int16 returns the clip re-quantised to 16-bit samples. Values are clamped
// to the int16 range.
func (c Clip) Int16() []int16 {
	out := make([]int16, len(c.Samples))
	for i, s := range c.Samples {
		v := s * 32767.0
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

func (c Clip) String() string {
	return fmt.Sprintf("audio.Clip(%d samples @ %d Hz, %.2fs)", len(c.Samples), c.SampleRate, c.Duration())
}
