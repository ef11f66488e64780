package conversation

import (
	"fmt"
	"testing"

	"github.com/ashverse/animato/pkg/provider/llm"
)

func TestHistory_AddAndSnapshot(t *testing.T) {
	t.Parallel()
	h := NewHistory(10)
	h.Add(llm.RoleUser, "hello")
	h.Add(llm.RoleAssistant, "hi there")

	msgs := h.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != llm.RoleUser || msgs[0].Content != "hello" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Role != llm.RoleAssistant || msgs[1].Content != "hi there" {
		t.Errorf("unexpected second message: %+v", msgs[1])
	}
	if msgs[0].Timestamp.IsZero() {
		t.Error("messages must carry timestamps")
	}

	// The snapshot is a copy; mutating it must not reach the log.
	msgs[0].Content = "mutated"
	if h.Messages()[0].Content != "hello" {
		t.Error("snapshot mutation leaked into the log")
	}
}

func TestHistory_EvictsOldestPair(t *testing.T) {
	t.Parallel()
	h := NewHistory(4)
	for i := range 3 {
		h.Add(llm.RoleUser, fmt.Sprintf("q%d", i))
		h.Add(llm.RoleAssistant, fmt.Sprintf("a%d", i))
	}

	msgs := h.Messages()
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages after eviction, got %d", len(msgs))
	}
	if msgs[0].Content != "q1" {
		t.Errorf("oldest pair must go first, log starts with %q", msgs[0].Content)
	}
	if msgs[0].Role != llm.RoleUser {
		t.Errorf("pairwise eviction must keep the user/assistant rhythm, got %v", msgs[0].Role)
	}
}

func TestHistory_DefaultLimit(t *testing.T) {
	t.Parallel()
	h := NewHistory(0)
	for i := range DefaultMaxHistory + 10 {
		h.Add(llm.RoleUser, fmt.Sprintf("m%d", i))
	}
	if h.Len() > DefaultMaxHistory {
		t.Errorf("log grew to %d, limit is %d", h.Len(), DefaultMaxHistory)
	}
}

func TestHistory_Clear(t *testing.T) {
	t.Parallel()
	h := NewHistory(10)
	h.Add(llm.RoleUser, "hello")
	h.Clear()
	if h.Len() != 0 {
		t.Errorf("expected empty log, got %d messages", h.Len())
	}
}
