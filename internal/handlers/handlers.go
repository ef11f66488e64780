// Package handlers hosts the built-in event bus subscribers that translate
// output events into client frames. Each handler owns one event type; frames
// leave through the session's send callback in bus priority order, so text
// and errors outrun bulky audio bundles.
package handlers

import (
	"context"

	"github.com/ashverse/animato/internal/eventbus"
	"github.com/ashverse/animato/pkg/events"
)

// SendFunc delivers one outbound frame to the client. A blocking send
// back-pressures the pipeline; implementations must be safe for calls from
// the orchestrator's turn goroutine.
type SendFunc func(frame any) error

// Register subscribes the built-in frame translators plus the full-text
// collector on bus. Send failures surface through the bus as handler faults.
// The returned subscriptions let the session manager tear everything down on
// disconnect.
func Register(bus *eventbus.Bus, send SendFunc) []*eventbus.Subscription {
	subs := []*eventbus.Subscription{
		bus.Subscribe(events.TypeSentence, eventbus.PriorityHigh, "sentence",
			func(_ context.Context, ev events.OutputEvent) error {
				return send(events.TextFrame{Type: events.OutText, Text: ev.Sentence.Text, Seq: ev.Seq})
			}),

		bus.Subscribe(events.TypeAudioExpression, eventbus.PriorityNormal, "audio",
			func(_ context.Context, ev events.OutputEvent) error {
				return send(events.ToAudioExpressionFrame(*ev.Audio, ev.Seq))
			}),

		bus.Subscribe(events.TypeTranscript, eventbus.PriorityHigh, "transcript",
			func(_ context.Context, ev events.OutputEvent) error {
				return send(events.TranscriptFrame{
					Type:    events.OutTranscript,
					Text:    ev.Transcript.Text,
					IsFinal: ev.Transcript.IsFinal,
				})
			}),

		bus.Subscribe(events.TypeControl, eventbus.PriorityNormal, "control",
			func(_ context.Context, ev events.OutputEvent) error {
				return send(events.ControlFrame{Type: events.OutControl, Text: string(ev.Control.Signal)})
			}),

		bus.Subscribe(events.TypeError, eventbus.PriorityHigh, "error",
			func(_ context.Context, ev events.OutputEvent) error {
				frame := events.ErrorFrame{
					Type:    events.OutError,
					Message: ev.Error.Message,
					Kind:    string(ev.Error.Kind),
				}
				if ev.Seq != events.NoSeq {
					seq := ev.Seq
					frame.Seq = &seq
				}
				return send(frame)
			}),
	}

	return append(subs, newFullText(send).register(bus)...)
}

// Unregister removes the given subscriptions from bus.
func Unregister(bus *eventbus.Bus, subs []*eventbus.Subscription) {
	for _, s := range subs {
		bus.Unsubscribe(s)
	}
}
