// Package eventbus provides the in-process pub/sub channel between the
// output pipeline and the delivery handlers.
//
// The bus is synchronous: Emit invokes every matching handler in the calling
// goroutine, ordered by priority band and, within a band, by subscription
// order. A failing handler never stops delivery to the rest; its error is
// collected and reported to the caller as a handler_failed fault.
package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/ashverse/animato/pkg/events"
	"github.com/ashverse/animato/pkg/fault"
)

// Priority orders handlers for one event type. Lower values run first.
type Priority int

const (
	PriorityHigh   Priority = 0
	PriorityNormal Priority = 1
	PriorityLow    Priority = 2
)

// String returns the lowercase name of the priority band.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Handler consumes one event. A non-nil return is treated as a handler
// failure: logged, collected, and isolated from other handlers.
type Handler func(ctx context.Context, ev events.OutputEvent) error

// Subscription identifies one registered handler. Pass it to Unsubscribe.
type Subscription struct {
	id   uint64
	kind events.Type
}

type subscriber struct {
	id       uint64
	name     string
	priority Priority
	seq      uint64 // insertion order, ties within a priority band
	fn       Handler
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for handler failures. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// Bus routes events to subscribed handlers. Safe for concurrent use;
// handlers themselves run sequentially per Emit call.
type Bus struct {
	logger *slog.Logger

	mu      sync.RWMutex
	subs    map[events.Type][]*subscriber
	nextID  uint64
	nextSeq uint64
}

// New returns an empty, ready-to-use [Bus].
func New(opts ...Option) *Bus {
	b := &Bus{
		logger: slog.Default(),
		subs:   make(map[events.Type][]*subscriber),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Subscribe registers fn for events of the given type. name appears in
// failure logs. The returned Subscription can be passed to Unsubscribe.
func (b *Bus) Subscribe(kind events.Type, priority Priority, name string, fn Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.nextSeq++
	sub := &subscriber{
		id:       b.nextID,
		name:     name,
		priority: priority,
		seq:      b.nextSeq,
		fn:       fn,
	}

	list := append(b.subs[kind], sub)
	// Keep the list in dispatch order so Emit is a plain scan.
	slices.SortStableFunc(list, func(a, c *subscriber) int {
		if a.priority != c.priority {
			return int(a.priority) - int(c.priority)
		}
		return int(a.seq) - int(c.seq)
	})
	b.subs[kind] = list

	return &Subscription{id: sub.id, kind: kind}
}

// Unsubscribe removes a previously registered handler. Unknown or already
// removed subscriptions are ignored.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.kind]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Emit delivers ev to every handler subscribed to its type, in priority then
// subscription order. Every handler runs even when earlier ones fail; the
// collected failures are returned joined under a handler_failed fault. A nil
// return means full delivery.
func (b *Bus) Emit(ctx context.Context, ev events.OutputEvent) error {
	b.mu.RLock()
	list := slices.Clone(b.subs[ev.Type])
	b.mu.RUnlock()

	var errs []error
	for _, s := range list {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := safeInvoke(ctx, s, ev); err != nil {
			b.logger.Error("event handler failed",
				"handler", s.name,
				"event_type", ev.Type,
				"seq", ev.Seq,
				"err", err,
			)
			errs = append(errs, fault.Wrap(fault.HandlerFailed, "handler "+s.name, err))
		}
	}
	return errors.Join(errs...)
}

// safeInvoke runs one handler, converting a panic into an error so a broken
// handler cannot take down the pipeline goroutine.
func safeInvoke(ctx context.Context, s *subscriber, ev events.OutputEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fault.Newf(fault.HandlerFailed, "handler %s panicked: %v", s.name, r)
		}
	}()
	return s.fn(ctx, ev)
}

// SubscriberCount returns the number of handlers registered for kind.
func (b *Bus) SubscriberCount(kind events.Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

// Clear removes every subscription. Used at session teardown.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[events.Type][]*subscriber)
}
