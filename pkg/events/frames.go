package events

// This file defines the JSON frames exchanged with the client. Outbound
// frames are what the output handlers produce; inbound frames are what the
// session manager demultiplexes. Field names follow the avatar client's wire
// format and must not change.

// Inbound frame type discriminators (client → server).
const (
	InTextInput       = "text_input"
	InRawAudioData    = "raw_audio_data"
	InMicAudioEnd     = "mic_audio_end"
	InInterruptSignal = "interrupt_signal"
	InClearHistory    = "clear_history"
	InSetLogLevel     = "set_log_level"
)

// Outbound frame type discriminators (server → client).
const (
	OutConnectionEstablished = "connection-established"
	OutText                  = "text"
	OutAudioExpression       = "audio_with_expression"
	OutTranscript            = "transcript"
	OutControl               = "control"
	OutError                 = "error"
	OutFullText              = "full-text"
)

// InboundFrame is the superset of all client → server frames, discriminated
// by Type. Fields irrelevant to a given type are left at their zero value.
type InboundFrame struct {
	Type string `json:"type"`

	// Text carries the utterance for text_input and the optional partial
	// transcript for interrupt_signal.
	Text string `json:"text,omitempty"`

	// FromName optionally names the speaker on text_input.
	FromName string `json:"from_name,omitempty"`

	// Audio carries 16 kHz mono PCM samples for raw_audio_data.
	Audio []int16 `json:"audio,omitempty"`

	// Level carries the requested log level for set_log_level.
	Level string `json:"level,omitempty"`
}

// ConnectionEstablishedFrame greets a freshly connected client.
type ConnectionEstablishedFrame struct {
	Type    string `json:"type"`
	SID     string `json:"sid"`
	Message string `json:"message"`
}

// TextFrame streams one completed assistant sentence.
type TextFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Seq  int    `json:"seq"`
}

// FullTextFrame carries the complete assistant reply at end of turn.
type FullTextFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ExpressionsData is the emotion timeline block of an
// [AudioExpressionFrame].
type ExpressionsData struct {
	Segments      []ExpressionSegment `json:"segments"`
	TotalDuration float64             `json:"total_duration"`

	// Transition is the crossfade length in seconds the client should apply
	// at segment boundaries. Zero means hard cuts.
	Transition float64 `json:"transition,omitempty"`
}

// ExpressionSegment is the wire form of a [TimelineSegment].
type ExpressionSegment struct {
	Emotion   string  `json:"emotion"`
	Time      float64 `json:"time"`
	Duration  float64 `json:"duration"`
	Intensity float64 `json:"intensity"`
}

// AudioExpressionFrame is the self-contained audio+animation bundle: the
// client plays AudioData and drives its avatar's mouth from Volumes at 50 Hz
// and its expression from Expressions, without ever decoding audio itself.
type AudioExpressionFrame struct {
	Type        string          `json:"type"`
	AudioData   string          `json:"audio_data"`
	Format      string          `json:"format"`
	Volumes     []float64       `json:"volumes"`
	Expressions ExpressionsData `json:"expressions"`
	Text        string          `json:"text"`
	Seq         int             `json:"seq"`
}

// TranscriptFrame echoes recognized user speech.
type TranscriptFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// ControlFrame carries a control signal; the signal travels in the Text
// field for compatibility with the avatar client.
type ControlFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ErrorFrame reports a user-visible failure.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Seq     *int   `json:"seq,omitempty"`
}

// ToAudioExpressionFrame converts an audio_with_expression event payload to
// its wire frame.
func ToAudioExpressionFrame(p AudioExpressionPayload, seq int) AudioExpressionFrame {
	segs := make([]ExpressionSegment, len(p.Timeline))
	for i, s := range p.Timeline {
		segs[i] = ExpressionSegment{
			Emotion:   s.Emotion,
			Time:      s.Start,
			Duration:  s.Duration,
			Intensity: s.Intensity,
		}
	}
	return AudioExpressionFrame{
		Type:      OutAudioExpression,
		AudioData: p.AudioBase64,
		Format:    p.Format,
		Volumes:   p.Volumes,
		Expressions: ExpressionsData{
			Segments:      segs,
			TotalDuration: p.TotalDuration,
			Transition:    p.Transition,
		},
		Text: p.Text,
		Seq:  seq,
	}
}
