// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to feed a controlled reply without a live
// backend and to verify the message history the orchestrator sends.
//
// Example:
//
//	p := &mock.Provider{Chunks: []string{"Hello ", "there!"}}
//	stream, _ := p.ChatStream(ctx, history)
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/ashverse/animato/pkg/provider/llm"
)

// ChatStreamCall records a single invocation of Provider.ChatStream.
type ChatStreamCall struct {
	// Ctx is the context passed to ChatStream.
	Ctx context.Context
	// Messages is a copy of the history passed to ChatStream.
	Messages []llm.Message
}

// Provider is a mock implementation of llm.Provider.
// The zero value yields an empty reply. Set Err fields to inject failures.
type Provider struct {
	mu sync.Mutex

	// Chunks is the sequence of text fragments the stream emits before io.EOF.
	Chunks []string

	// StartErr, if non-nil, is returned as the error from ChatStream.
	StartErr error

	// RecvErr, if non-nil, is returned by Recv after all Chunks were
	// delivered, instead of io.EOF.
	RecvErr error

	// Calls records every invocation of ChatStream in order.
	Calls []ChatStreamCall
}

// ChatStream records the call and returns a stream over Chunks.
func (p *Provider) ChatStream(ctx context.Context, messages []llm.Message) (llm.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := make([]llm.Message, len(messages))
	copy(msgs, messages)
	p.Calls = append(p.Calls, ChatStreamCall{Ctx: ctx, Messages: msgs})
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	chunks := make([]string, len(p.Chunks))
	copy(chunks, p.Chunks)
	return &Stream{ctx: ctx, chunks: chunks, recvErr: p.RecvErr}, nil
}

// CallCount returns the number of ChatStream calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Stream is the llm.Stream returned by Provider.ChatStream.
type Stream struct {
	mu      sync.Mutex
	ctx     context.Context
	chunks  []string
	next    int
	recvErr error

	// Gate, if non-nil, is received from before every Recv returns a chunk.
	// Close or feed it to step the stream from a test.
	Gate chan struct{}

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Recv implements llm.Stream.
func (s *Stream) Recv() (string, error) {
	s.mu.Lock()
	gate := s.Gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		case <-gate:
		}
	}
	if err := s.ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.chunks) {
		if s.recvErr != nil {
			return "", s.recvErr
		}
		return "", io.EOF
	}
	chunk := s.chunks[s.next]
	s.next++
	return chunk, nil
}

// Close implements llm.Stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return nil
}

// Ensure the mocks satisfy their interfaces at compile time.
var (
	_ llm.Provider = (*Provider)(nil)
	_ llm.Stream   = (*Stream)(nil)
)
