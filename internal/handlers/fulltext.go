package handlers

import (
	"context"
	"strings"
	"sync"

	"github.com/ashverse/animato/internal/eventbus"
	"github.com/ashverse/animato/pkg/events"
)

// fullText accumulates the sentences of the current turn and sends the
// complete reply as one full-text frame when the turn ends cleanly. An
// interrupted turn discards the buffer without sending, matching what the
// client actually heard.
type fullText struct {
	send SendFunc

	mu    sync.Mutex
	parts []string
}

func newFullText(send SendFunc) *fullText {
	return &fullText{send: send}
}

// register subscribes in the low band so the collector observes sentences and
// controls after the frame translators have already delivered them.
func (f *fullText) register(bus *eventbus.Bus) []*eventbus.Subscription {
	return []*eventbus.Subscription{
		bus.Subscribe(events.TypeSentence, eventbus.PriorityLow, "fulltext-collect",
			func(_ context.Context, ev events.OutputEvent) error {
				f.mu.Lock()
				f.parts = append(f.parts, ev.Sentence.Text)
				f.mu.Unlock()
				return nil
			}),
		bus.Subscribe(events.TypeControl, eventbus.PriorityLow, "fulltext-flush",
			func(_ context.Context, ev events.OutputEvent) error {
				switch ev.Control.Signal {
				case events.SignalConversationEnd:
					return f.flush()
				case events.SignalInterrupted:
					f.reset()
				}
				return nil
			}),
	}
}

func (f *fullText) flush() error {
	f.mu.Lock()
	text := strings.Join(f.parts, " ")
	f.parts = nil
	f.mu.Unlock()

	if text == "" {
		return nil
	}
	return f.send(events.FullTextFrame{Type: events.OutFullText, Text: text})
}

func (f *fullText) reset() {
	f.mu.Lock()
	f.parts = nil
	f.mu.Unlock()
}
