// Package conversation implements the per-session orchestrator: the state
// machine that turns user input into an agent reply, the turn lifecycle with
// cancellation and timeout, barge-in handling, and the in-memory chat log.
package conversation

import (
	"time"

	"github.com/ashverse/animato/pkg/provider/llm"
)

// DefaultMaxHistory bounds the chat log when no limit is configured.
const DefaultMaxHistory = 48

// History is the session's in-memory chat log. When the log outgrows its
// limit, the two oldest messages are evicted together so the user/assistant
// pairing survives.
//
// Not safe for concurrent use; the orchestrator is the only mutator.
type History struct {
	max  int
	msgs []llm.Message
}

// NewHistory builds an empty log. max <= 0 selects [DefaultMaxHistory].
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultMaxHistory
	}
	return &History{max: max}
}

// Add appends one message, evicting the oldest pair when over the limit.
func (h *History) Add(role llm.Role, text string) {
	h.msgs = append(h.msgs, llm.Message{Role: role, Content: text, Timestamp: time.Now()})
	for len(h.msgs) > h.max {
		drop := min(2, len(h.msgs))
		h.msgs = append(h.msgs[:0], h.msgs[drop:]...)
	}
}

// Messages returns a copy of the log in chronological order.
func (h *History) Messages() []llm.Message {
	out := make([]llm.Message, len(h.msgs))
	copy(out, h.msgs)
	return out
}

// Len reports the number of stored messages.
func (h *History) Len() int { return len(h.msgs) }

// Clear empties the log.
func (h *History) Clear() { h.msgs = h.msgs[:0] }
