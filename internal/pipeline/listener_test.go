package pipeline

import (
	"errors"
	"slices"
	"testing"

	"github.com/ashverse/animato/pkg/provider/vad"
	vadmock "github.com/ashverse/animato/pkg/provider/vad/mock"
)

func TestListener_SilencePassesThrough(t *testing.T) {
	t.Parallel()
	sess := &vadmock.Session{Events: []vad.Event{{Type: vad.Silence}, {Type: vad.SpeechStart}}}
	l := NewListener(sess)

	for range 2 {
		utterance, done, err := l.Feed([]int16{0, 0, 0})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if done || utterance != nil {
			t.Fatalf("no utterance should complete yet, got (%v, %v)", utterance, done)
		}
	}
}

func TestListener_SpeechEndYieldsUtterance(t *testing.T) {
	t.Parallel()
	captured := []int16{16384, -16384, 42}
	sess := &vadmock.Session{
		Events:    []vad.Event{{Type: vad.SpeechEnd, Score: 0.8}},
		Utterance: captured,
	}
	l := NewListener(sess)

	utterance, done, err := l.Feed([]int16{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done || !slices.Equal(utterance, captured) {
		t.Fatalf("expected captured utterance, got (%v, %v)", utterance, done)
	}
}

func TestListener_EmptyUtterance(t *testing.T) {
	t.Parallel()
	sess := &vadmock.Session{Events: []vad.Event{{Type: vad.SpeechEnd}}}
	l := NewListener(sess)

	utterance, done, err := l.Feed([]int16{0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done || len(utterance) != 0 {
		t.Fatalf("empty capture should still close the utterance, got (%v, %v)", utterance, done)
	}
}

func TestListener_ProcessError(t *testing.T) {
	t.Parallel()
	wantErr := errors.New("detector broke")
	l := NewListener(&vadmock.Session{ProcessErr: wantErr})

	_, done, err := l.Feed([]int16{0})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped detector error, got %v", err)
	}
	if done {
		t.Error("a detector error does not complete an utterance")
	}
}

func TestListener_FlushUtterance(t *testing.T) {
	t.Parallel()
	sess := &vadmock.Session{Utterance: []int16{5, 6, 7}}
	l := NewListener(sess)

	if got := l.FlushUtterance(); !slices.Equal(got, []int16{5, 6, 7}) {
		t.Errorf("unexpected flush: %v", got)
	}
	// Second flush finds nothing buffered.
	if got := l.FlushUtterance(); len(got) != 0 {
		t.Errorf("expected empty second flush, got %v", got)
	}
}

func TestListener_ResetAndClose(t *testing.T) {
	t.Parallel()
	sess := &vadmock.Session{}
	l := NewListener(sess)

	l.Reset()
	if sess.ResetCallCount != 1 {
		t.Errorf("expected reset to reach the session, got %d calls", sess.ResetCallCount)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if sess.CloseCallCount != 1 {
		t.Errorf("expected close to reach the session, got %d calls", sess.CloseCallCount)
	}
}
