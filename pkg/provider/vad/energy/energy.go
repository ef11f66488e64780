// Package energy provides a dependency-free VAD engine based on short-term
// RMS energy. It is a pragmatic default for quiet environments; swap in a
// model-based engine through the provider registry when echo or background
// noise defeats a plain energy gate.
package energy

import (
	"fmt"
	"math"

	"github.com/ashverse/animato/pkg/provider/vad"
)

// Compile-time assertion that Engine satisfies vad.Engine.
var _ vad.Engine = (*Engine)(nil)

const (
	defaultSampleRate      = 16000
	defaultSpeechThreshold = 0.02
	defaultMinSpeechMs     = 100
	defaultSilenceHoldMs   = 700
	defaultPreRollMs       = 300

	// frameMs is the internal analysis frame length.
	frameMs = 20
)

// Engine creates energy-gate VAD sessions.
type Engine struct{}

// New returns a ready Engine.
func New() *Engine {
	return &Engine{}
}

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.SampleRate < 0 {
		return nil, fmt.Errorf("energy vad: invalid sample rate %d", cfg.SampleRate)
	}
	if cfg.SpeechThreshold == 0 {
		cfg.SpeechThreshold = defaultSpeechThreshold
	}
	if cfg.SpeechThreshold < 0 || cfg.SpeechThreshold > 1 {
		return nil, fmt.Errorf("energy vad: speech threshold %v out of range (0, 1]", cfg.SpeechThreshold)
	}
	if cfg.MinSpeechMs == 0 {
		cfg.MinSpeechMs = defaultMinSpeechMs
	}
	if cfg.SilenceHoldMs == 0 {
		cfg.SilenceHoldMs = defaultSilenceHoldMs
	}
	if cfg.PreRollMs == 0 {
		cfg.PreRollMs = defaultPreRollMs
	}

	return &session{
		cfg:         cfg,
		frameSize:   cfg.SampleRate * frameMs / 1000,
		minSpeech:   cfg.MinSpeechMs / frameMs,
		silenceHold: cfg.SilenceHoldMs / frameMs,
		preRollSize: cfg.SampleRate * cfg.PreRollMs / 1000,
	}, nil
}

type session struct {
	cfg         vad.Config
	frameSize   int
	minSpeech   int // frames of speech to commit a start
	silenceHold int // frames of silence to end an utterance
	preRollSize int // samples of pre-roll to keep

	closed bool

	pending []int16 // residue shorter than one frame
	preRoll []int16 // rolling buffer while idle

	inSpeech   bool
	speechRun  int // consecutive speech frames while idle
	silenceRun int // consecutive silence frames while in speech
	candidate  []int16
	utterance  []int16 // completed, awaiting TakeUtterance
}

// Process implements vad.Session.
func (s *session) Process(chunk []int16) (vad.Event, error) {
	if s.closed {
		return vad.Event{}, fmt.Errorf("energy vad: session closed")
	}

	s.pending = append(s.pending, chunk...)

	event := vad.Event{Type: vad.Silence}
	if s.inSpeech {
		event.Type = vad.SpeechContinue
	}

	for len(s.pending) >= s.frameSize {
		frame := s.pending[:s.frameSize]
		s.pending = s.pending[s.frameSize:]

		score := rms(frame)
		event.Score = score

		if s.inSpeech {
			s.candidate = append(s.candidate, frame...)
			if score >= s.cfg.SpeechThreshold {
				s.silenceRun = 0
				continue
			}
			s.silenceRun++
			if s.silenceRun >= s.silenceHold {
				s.utterance = s.candidate
				s.candidate = nil
				s.inSpeech = false
				s.silenceRun = 0
				event.Type = vad.SpeechEnd
			}
			continue
		}

		if score >= s.cfg.SpeechThreshold {
			s.speechRun++
			s.candidate = append(s.candidate, frame...)
			if s.speechRun >= s.minSpeech {
				// Commit: splice the pre-roll in front of the onset frames.
				s.candidate = append(append([]int16{}, s.preRoll...), s.candidate...)
				s.preRoll = nil
				s.inSpeech = true
				s.speechRun = 0
				event.Type = vad.SpeechStart
			}
			continue
		}

		// Idle silence: fold any uncommitted onset back into the pre-roll.
		if s.speechRun > 0 {
			s.preRoll = append(s.preRoll, s.candidate...)
			s.candidate = nil
			s.speechRun = 0
		} else {
			s.preRoll = append(s.preRoll, frame...)
		}
		if excess := len(s.preRoll) - s.preRollSize; excess > 0 {
			s.preRoll = s.preRoll[excess:]
		}
	}

	return event, nil
}

// TakeUtterance implements vad.Session.
func (s *session) TakeUtterance() []int16 {
	u := s.utterance
	s.utterance = nil
	return u
}

// Reset implements vad.Session.
func (s *session) Reset() {
	if s.closed {
		return
	}
	s.pending = nil
	s.preRoll = nil
	s.candidate = nil
	s.utterance = nil
	s.inSpeech = false
	s.speechRun = 0
	s.silenceRun = 0
}

// Close implements vad.Session.
func (s *session) Close() error {
	s.Reset()
	s.closed = true
	return nil
}

// rms computes the normalized RMS energy of one frame.
func rms(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		f := float64(v) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(frame)))
}
