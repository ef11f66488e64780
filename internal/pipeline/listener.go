package pipeline

import (
	"fmt"

	"github.com/ashverse/animato/pkg/provider/vad"
)

// Listener is the microphone front-end of a session: it feeds PCM chunks
// through a VAD session and hands back the captured utterance when speech
// ends. Transcription happens downstream in the input chain.
//
// Not safe for concurrent use; one listener serves one session's audio
// stream.
type Listener struct {
	session vad.Session
}

// NewListener wraps a VAD session.
func NewListener(session vad.Session) *Listener {
	return &Listener{session: session}
}

// Feed processes one chunk of 16-bit mono PCM. When the chunk completes an
// utterance, done is true and utterance holds the captured audio; an empty
// utterance with done=true means the detector heard nothing usable.
func (l *Listener) Feed(chunk []int16) (utterance []int16, done bool, err error) {
	ev, err := l.session.Process(chunk)
	if err != nil {
		return nil, false, fmt.Errorf("pipeline: vad process: %w", err)
	}
	if ev.Type != vad.SpeechEnd {
		return nil, false, nil
	}
	return l.session.TakeUtterance(), true, nil
}

// FlushUtterance returns whatever audio the VAD holds, for the explicit
// end-of-mic signal where the client stops capture mid-utterance.
func (l *Listener) FlushUtterance() []int16 {
	return l.session.TakeUtterance()
}

// Reset drops buffered audio and detection state.
func (l *Listener) Reset() {
	l.session.Reset()
}

// Close releases the underlying VAD session.
func (l *Listener) Close() error {
	return l.session.Close()
}
