// Package mock provides test doubles for the vad package interfaces.
//
// Use Engine to verify that sessions are created with the expected Config.
// Use Session to script detection results: each Process call pops the next
// Event from Events, so a test can drive the orchestrator through an exact
// silence / speech / end sequence.
//
// Example:
//
//	sess := &mock.Session{Events: []vad.Event{
//	    {Type: vad.SpeechStart}, {Type: vad.SpeechEnd},
//	}}
//	eng := &mock.Engine{Session: sess}
package mock

import (
	"sync"

	"github.com/ashverse/animato/pkg/provider/vad"
)

// NewSessionCall records a single invocation of Engine.NewSession.
type NewSessionCall struct {
	// Cfg is the Config passed to NewSession.
	Cfg vad.Config
}

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is returned by NewSession. If nil, NewSession returns a new
	// zero-valued Session.
	Session vad.Session

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records every call to NewSession.
	NewSessionCalls []NewSessionCall
}

// NewSession records the call and returns Session, NewSessionErr.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, NewSessionCall{Cfg: cfg})
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = nil
}

// Ensure Engine implements vad.Engine at compile time.
var _ vad.Engine = (*Engine)(nil)

// ProcessCall records a single invocation of Session.Process.
type ProcessCall struct {
	// Chunk is a copy of the PCM passed to Process.
	Chunk []int16
}

// Session is a mock implementation of vad.Session.
type Session struct {
	mu sync.Mutex

	// Events is the scripted sequence of results: call n returns Events[n].
	// Calls past the end return a Silence event.
	Events []vad.Event

	// ProcessErr, if non-nil, is returned by every Process call.
	ProcessErr error

	// Utterance is returned by the next TakeUtterance call, then cleared.
	Utterance []int16

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// ProcessCalls records every call to Process in order.
	ProcessCalls []ProcessCall

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Process records the call and returns the next scripted Event, ProcessErr.
func (s *Session) Process(chunk []int16) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]int16, len(chunk))
	copy(cp, chunk)
	n := len(s.ProcessCalls)
	s.ProcessCalls = append(s.ProcessCalls, ProcessCall{Chunk: cp})
	if s.ProcessErr != nil {
		return vad.Event{}, s.ProcessErr
	}
	if n < len(s.Events) {
		return s.Events[n], nil
	}
	return vad.Event{Type: vad.Silence}, nil
}

// TakeUtterance returns Utterance and clears it.
func (s *Session) TakeUtterance() []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.Utterance
	s.Utterance = nil
	return u
}

// Reset records the call.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCallCount++
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProcessCalls = nil
	s.ResetCallCount = 0
	s.CloseCallCount = 0
}

// Ensure Session implements vad.Session at compile time.
var _ vad.Session = (*Session)(nil)
