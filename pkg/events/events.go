// Package events defines the typed output events flowing from a session's
// output pipeline to its event bus, and the JSON frames exchanged with the
// client over the transport.
//
// OutputEvent is a discriminated union: exactly one payload pointer is
// non-nil and must match the Type tag. Events are validated at construction
// time via the New* constructors; hand-built events can be checked with
// [OutputEvent.Validate].
package events

import (
	"fmt"

	"github.com/ashverse/animato/pkg/fault"
)

// NoSeq marks an event that does not participate in a turn's sequence
// ordering (transcripts, input-stage errors, unordered controls).
const NoSeq = -1

// Type discriminates the variants of [OutputEvent].
type Type string

const (
	// TypeSentence is a completed sentence of assistant text.
	TypeSentence Type = "sentence"

	// TypeAudioExpression is a synthesized audio clip bundled with its
	// volume envelope and emotion timeline.
	TypeAudioExpression Type = "audio_with_expression"

	// TypeTranscript is the user's recognized speech echoed back.
	TypeTranscript Type = "transcript"

	// TypeControl is a conversation control signal.
	TypeControl Type = "control"

	// TypeError is a user-visible failure.
	TypeError Type = "error"
)

// ControlSignal enumerates the conversation control signals exchanged with
// the client. The string values are part of the client protocol.
type ControlSignal string

const (
	SignalStartMic          ControlSignal = "start-mic"
	SignalStopMic           ControlSignal = "stop-mic"
	SignalInterrupt         ControlSignal = "interrupt"
	SignalInterrupted       ControlSignal = "interrupted"
	SignalNoAudioData       ControlSignal = "no-audio-data"
	SignalMicAudioEnd       ControlSignal = "mic-audio-end"
	SignalConversationStart ControlSignal = "conversation-start"
	SignalConversationEnd   ControlSignal = "conversation-end"
)

// IsValid reports whether s is a recognised control signal.
func (s ControlSignal) IsValid() bool {
	switch s {
	case SignalStartMic, SignalStopMic, SignalInterrupt, SignalInterrupted,
		SignalNoAudioData, SignalMicAudioEnd, SignalConversationStart,
		SignalConversationEnd:
		return true
	}
	return false
}

// EmotionTag is a bracketed emotion marker extracted from assistant text.
type EmotionTag struct {
	// Emotion is the lower-cased label inside the brackets (e.g. "happy").
	Emotion string

	// Position is the rune offset in the original, still-tagged text where
	// the marker appeared.
	Position int
}

// EmotionData is the result of emotion analysis over one sentence.
type EmotionData struct {
	// Emotions preserves every detected emotion in order of appearance,
	// including repeats.
	Emotions []string

	// Primary is the dominant emotion, or "neutral" when none was detected.
	Primary string

	// Confidence is the analyzer's confidence in Primary, in [0, 1].
	Confidence float64
}

// TimelineSegment is one span of an emotion timeline. Segments of a timeline
// are sorted by Start, non-overlapping, and tile [0, total duration].
type TimelineSegment struct {
	Emotion string

	// Start is the segment's offset into the audio, in seconds.
	Start float64

	// Duration is the segment's length in seconds.
	Duration float64

	// Intensity is the expression strength in [0, 1].
	Intensity float64
}

// End returns the segment's end time in seconds.
func (s TimelineSegment) End() float64 { return s.Start + s.Duration }

// SentencePayload carries a completed sentence of assistant text.
type SentencePayload struct {
	Text string
}

// AudioExpressionPayload bundles a synthesized clip with everything the
// avatar needs to play it: base64 audio, the 50 Hz volume envelope for the
// mouth parameter, and the emotion timeline for the face.
type AudioExpressionPayload struct {
	// AudioBase64 is the encoded audio artifact exactly as produced by TTS.
	AudioBase64 string

	// Format is the container/codec tag reported by the TTS adapter
	// (mp3, wav, ogg, webm, flac, aac or mp4).
	Format string

	// Volumes is the RMS volume envelope sampled at 50 Hz, values in [0, 1].
	Volumes []float64

	// Timeline is the emotion timeline covering [0, TotalDuration].
	Timeline []TimelineSegment

	// Transition is the crossfade length in seconds the client applies at
	// timeline segment boundaries. Zero means hard cuts.
	Transition float64

	// TotalDuration is the clip length in seconds.
	TotalDuration float64

	// Text is the clean sentence this clip voices.
	Text string
}

// TranscriptPayload echoes recognized user speech.
type TranscriptPayload struct {
	Text    string
	IsFinal bool
}

// ControlPayload carries a conversation control signal.
type ControlPayload struct {
	Signal ControlSignal
}

// ErrorPayload carries a user-visible failure.
type ErrorPayload struct {
	Kind    fault.Kind
	Message string
}

// OutputEvent is the tagged union emitted by the output pipeline and
// delivered through the event bus. Exactly one payload field is non-nil and
// corresponds to Type. Seq is the turn-local sequence number, or [NoSeq] for
// events outside a turn's ordering.
type OutputEvent struct {
	Type Type
	Seq  int

	Sentence   *SentencePayload
	Audio      *AudioExpressionPayload
	Transcript *TranscriptPayload
	Control    *ControlPayload
	Error      *ErrorPayload
}

// NewSentence builds a sentence event with the given turn sequence number.
func NewSentence(text string, seq int) OutputEvent {
	return OutputEvent{Type: TypeSentence, Seq: seq, Sentence: &SentencePayload{Text: text}}
}

// NewAudioExpression builds an audio_with_expression event. The payload is
// produced by the expression processor; seq is stamped by the output
// pipeline and equals the seq of the sentence the clip voices.
func NewAudioExpression(p AudioExpressionPayload, seq int) OutputEvent {
	return OutputEvent{Type: TypeAudioExpression, Seq: seq, Audio: &p}
}

// NewTranscript builds a transcript event. Transcripts are not part of a
// turn's ordering and carry [NoSeq].
func NewTranscript(text string, isFinal bool) OutputEvent {
	return OutputEvent{Type: TypeTranscript, Seq: NoSeq, Transcript: &TranscriptPayload{Text: text, IsFinal: isFinal}}
}

// NewControl builds a control event with [NoSeq].
func NewControl(signal ControlSignal) OutputEvent {
	return OutputEvent{Type: TypeControl, Seq: NoSeq, Control: &ControlPayload{Signal: signal}}
}

// NewControlSeq builds a control event ordered within a turn.
func NewControlSeq(signal ControlSignal, seq int) OutputEvent {
	return OutputEvent{Type: TypeControl, Seq: seq, Control: &ControlPayload{Signal: signal}}
}

// NewError builds an error event with [NoSeq].
func NewError(kind fault.Kind, message string) OutputEvent {
	return OutputEvent{Type: TypeError, Seq: NoSeq, Error: &ErrorPayload{Kind: kind, Message: message}}
}

// NewErrorSeq builds an error event that references a turn sequence number
// (e.g. a TTS failure for the sentence with that seq).
func NewErrorSeq(kind fault.Kind, message string, seq int) OutputEvent {
	return OutputEvent{Type: TypeError, Seq: seq, Error: &ErrorPayload{Kind: kind, Message: message}}
}

// Validate checks that the event's Type matches exactly one non-nil payload
// and that enum-valued payload fields hold recognised values.
func (e OutputEvent) Validate() error {
	n := 0
	if e.Sentence != nil {
		n++
	}
	if e.Audio != nil {
		n++
	}
	if e.Transcript != nil {
		n++
	}
	if e.Control != nil {
		n++
	}
	if e.Error != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("events: %d payloads set, want exactly 1", n)
	}

	switch e.Type {
	case TypeSentence:
		if e.Sentence == nil {
			return fmt.Errorf("events: type %q without sentence payload", e.Type)
		}
	case TypeAudioExpression:
		if e.Audio == nil {
			return fmt.Errorf("events: type %q without audio payload", e.Type)
		}
	case TypeTranscript:
		if e.Transcript == nil {
			return fmt.Errorf("events: type %q without transcript payload", e.Type)
		}
	case TypeControl:
		if e.Control == nil {
			return fmt.Errorf("events: type %q without control payload", e.Type)
		}
		if !e.Control.Signal.IsValid() {
			return fmt.Errorf("events: unknown control signal %q", e.Control.Signal)
		}
	case TypeError:
		if e.Error == nil {
			return fmt.Errorf("events: type %q without error payload", e.Type)
		}
		if e.Error.Message == "" {
			return fmt.Errorf("events: error event with empty message")
		}
	default:
		return fmt.Errorf("events: unknown event type %q", e.Type)
	}
	return nil
}
