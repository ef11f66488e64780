// Package llm defines the Provider interface for conversational agent backends.
//
// An LLM provider wraps a chat-completion service behind a streaming call: the
// orchestrator hands it the full message history (persona prompt first) and
// consumes the reply as incremental text chunks. Chunk boundaries carry no
// meaning; sentence assembly happens downstream.
//
// Implementations must be safe for concurrent use. A Stream is owned by one
// goroutine and is not.
package llm

import (
	"context"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation history.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// Stream delivers one agent reply as incremental text chunks.
type Stream interface {
	// Recv returns the next non-empty text chunk. It returns io.EOF when the
	// reply is complete, ctx errors when the turn was cancelled, and an
	// llm_unavailable fault when the backend failed mid-stream.
	Recv() (string, error)

	// Close releases the stream. Safe to call more than once and after Recv
	// returned an error.
	Close() error
}

// Provider is the abstraction over any conversational agent backend.
type Provider interface {
	// ChatStream starts one completion over the given history. messages must
	// not be empty; a system message, if any, comes first. Failures to start
	// the stream are reported as llm_unavailable faults.
	ChatStream(ctx context.Context, messages []Message) (Stream, error)
}
