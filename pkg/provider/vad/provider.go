// Package vad defines the Engine interface for voice activity detection
// backends.
//
// A VAD engine turns a continuous microphone stream into discrete utterances.
// Each session is a stateful detector for one stream: the caller feeds PCM
// chunks as they arrive, watches for SpeechEnd events, and collects the
// finished utterance (including pre-roll audio from just before speech
// started) with TakeUtterance.
//
// Detection is synchronous by design: Process returns immediately, making it
// suitable for the low-latency path that gates ASR input.
//
// Engines must be safe for concurrent use across sessions. A single Session
// must not be shared between goroutines.
package vad

// Config holds the parameters for a VAD session. Zero values select the
// engine's defaults.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the PCM chunks
	// passed to Process. Defaults to 16000.
	SampleRate int

	// SpeechThreshold is the score above which a frame counts as speech.
	// Range (0.0, 1.0].
	SpeechThreshold float64

	// MinSpeechMs is how much consecutive speech is required before the
	// session commits to a SpeechStart. Filters out clicks and pops.
	MinSpeechMs int

	// SilenceHoldMs is how much trailing silence ends an utterance. Pauses
	// shorter than this stay inside the same utterance.
	SilenceHoldMs int

	// PreRollMs is how much audio from before the detected speech start is
	// prepended to the utterance, so soft onsets are not clipped.
	PreRollMs int
}

// EventType enumerates detection states.
type EventType int

const (
	// Silence indicates no speech in the processed chunk.
	Silence EventType = iota

	// SpeechStart indicates speech has just begun.
	SpeechStart

	// SpeechContinue indicates ongoing speech.
	SpeechContinue

	// SpeechEnd indicates an utterance just completed. The audio is ready
	// for TakeUtterance.
	SpeechEnd
)

// String returns the lowercase name of the event type.
func (t EventType) String() string {
	switch t {
	case Silence:
		return "silence"
	case SpeechStart:
		return "speech_start"
	case SpeechContinue:
		return "speech_continue"
	case SpeechEnd:
		return "speech_end"
	default:
		return "unknown"
	}
}

// Event is the detection result for one processed chunk.
type Event struct {
	// Type is the detection result.
	Type EventType

	// Score is the speech score of the chunk (0.0 to 1.0).
	Score float64
}

// Session is an active detector for a single audio stream.
type Session interface {
	// Process analyses one chunk of 16-bit mono PCM and returns the
	// detection result. Chunks may be any length; the session buffers
	// internally.
	Process(chunk []int16) (Event, error)

	// TakeUtterance returns the accumulated utterance (pre-roll included)
	// and clears it. Returns nil when no completed utterance is pending.
	TakeUtterance() []int16

	// Reset discards all detection state and any buffered audio without
	// closing the session. Use when the stream is interrupted or restarted.
	Reset()

	// Close releases the session. Process and Reset become no-ops after
	// Close; calling Close more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions, implemented by each backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a session with the given configuration. Returns an
	// error if the configuration is invalid or resources cannot be
	// allocated.
	NewSession(cfg Config) (Session, error)
}
