// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the completion-service boundary. It defines the client
// interface the pipeline stages program against and a streaming response
// type; openai.go provides the production implementation.
//
// Completion calls are never retried against the same model here; the
// router's fallback chain supplies the next model to try instead.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// FinishReason is the provider's terminal signal for a streamed completion.
type FinishReason string

const (
	// FinishStop means generation completed normally.
	FinishStop FinishReason = "stop"

	// FinishLength means the provider cut output at its length limit. The
	// caller must surface this as a visible truncation warning.
	FinishLength FinishReason = "length"
)

// StructuredRequest asks for a schema-shaped JSON object response.
type StructuredRequest struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
}

// StreamRequest asks for an incremental free-text response.
type StreamRequest struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
}

// Client is implemented by completion-service clients and by test mocks.
type Client interface {
	// Structured returns the raw JSON object produced by the model. The
	// caller decodes and validates it against its own payload type.
	Structured(ctx context.Context, req StructuredRequest) (json.RawMessage, error)

	// Stream starts a streaming completion. The caller must drain
	// Stream.Deltas and then check Wait.
	Stream(ctx context.Context, req StreamRequest) (*Stream, error)
}

// Stream carries an in-flight streamed completion: a channel of text deltas
// followed, once the channel closes, by a finish reason or error.
type Stream struct {
	// Deltas yields incremental report text. Closed when the stream ends.
	Deltas <-chan string

	deltas chan string
	done   chan struct{}
	finish FinishReason
	err    error
}

// NewStream returns a stream whose producer feeds deltas via Push and
// terminates it via Close. Used by client implementations and test mocks.
func NewStream() *Stream {
	ch := make(chan string, 16)
	return &Stream{Deltas: ch, deltas: ch, done: make(chan struct{})}
}

// Push sends one delta to the consumer.
func (s *Stream) Push(delta string) {
	s.deltas <- delta
}

// Close terminates the stream with the given finish reason or error.
func (s *Stream) Close(reason FinishReason, err error) {
	s.finish = reason
	s.err = err
	close(s.deltas)
	close(s.done)
}

// Wait blocks until the stream has been closed and returns its outcome.
// Call only after draining Deltas.
func (s *Stream) Wait() (FinishReason, error) {
	<-s.done
	return s.finish, s.err
}

// Collect drains a stream into a single string, forwarding each delta to
// onDelta when non-nil. It returns the full text and the finish reason.
func Collect(s *Stream, onDelta func(string)) (string, FinishReason, error) {
	var buf []byte
	for d := range s.Deltas {
		buf = append(buf, d...)
		if onDelta != nil {
			onDelta(d)
		}
	}
	reason, err := s.Wait()
	if err != nil {
		return "", reason, err
	}
	return string(buf), reason, nil
}

// Decode unmarshals a structured response into v, wrapping failures with
// enough context to identify the offending payload.
func Decode(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding structured response: %w", err)
	}
	return nil
}
