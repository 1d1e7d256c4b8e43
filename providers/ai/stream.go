package ai

import (
	"iter"
	"strings"
	"sync"
)

// StreamEventType identifies the kind of delta carried by a StreamEvent.
type StreamEventType string

const (
	// StreamEventContent indicates a text content delta.
	StreamEventContent StreamEventType = "content"
	// StreamEventUsage carries token usage metadata (typically the final event).
	StreamEventUsage StreamEventType = "usage"
	// StreamEventDone signals that the stream has finished normally.
	StreamEventDone StreamEventType = "done"
)

// StreamEvent represents a single delta yielded during response streaming.
// Each event carries exactly one type of payload, identified by Type.
type StreamEvent struct {
	Type         StreamEventType `json:"type"`
	Content      string          `json:"content,omitempty"`       // Text delta (Type == StreamEventContent)
	Usage        *Usage          `json:"usage,omitempty"`         // Token usage (Type == StreamEventUsage)
	FinishReason string          `json:"finish_reason,omitempty"` // Present on StreamEventDone
}

// ChatStream is a finite, non-restartable lazy sequence of streaming deltas
// with automatic accumulation into a final ChatResponse. It supports
// range-based iteration for real-time token forwarding and a convenience
// Collect() method for callers who want the complete response.
//
// Callers must either consume the stream (iterating Iter() to completion or
// calling Collect()) or call Close(). The underlying provider holds open
// resources (an HTTP response body) that are released when the iterator
// completes, when the caller breaks out of the loop, or when Close is called.
// Close is idempotent and safe on every exit path.
type ChatStream struct {
	iterator  iter.Seq2[StreamEvent, error]
	closeOnce sync.Once
	closeFn   func()
}

// NewChatStream creates a ChatStream from a raw streaming iterator.
// The iterator is expected to yield StreamEvent values (with nil error) for
// normal deltas, and may yield a non-nil error to signal a mid-stream failure.
// closeFn releases the underlying transport resources; it may be nil and is
// invoked at most once, whether through Close or iterator teardown.
func NewChatStream(iterator iter.Seq2[StreamEvent, error], closeFn func()) *ChatStream {
	return &ChatStream{iterator: iterator, closeFn: closeFn}
}

// NewSingleEventStream wraps a completed ChatResponse as a short stream: one
// content event (when content is present), one usage event (when reported),
// then a done event. Used as the fallback when a provider does not implement
// [StreamProvider].
func NewSingleEventStream(response *ChatResponse) *ChatStream {
	iteratorFunc := func(yield func(StreamEvent, error) bool) {
		if response.Content != "" {
			if !yield(StreamEvent{Type: StreamEventContent, Content: response.Content}, nil) {
				return
			}
		}

		if response.Usage != nil {
			if !yield(StreamEvent{Type: StreamEventUsage, Usage: response.Usage}, nil) {
				return
			}
		}

		yield(StreamEvent{Type: StreamEventDone, FinishReason: response.FinishReason}, nil)
	}

	return NewChatStream(iteratorFunc, nil)
}

// Iter returns the underlying iterator for use with range-over-func loops.
//
// Example:
//
//	defer stream.Close()
//	for event, err := range stream.Iter() {
//	    if err != nil { handle error }
//	    fmt.Print(event.Content)
//	}
func (stream *ChatStream) Iter() iter.Seq2[StreamEvent, error] {
	return stream.iterator
}

// Close releases the underlying transport resources. It is safe to call
// multiple times and after the stream has been fully consumed. A stream that
// is closed mid-iteration terminates on the next read.
func (stream *ChatStream) Close() {
	stream.closeOnce.Do(func() {
		if stream.closeFn != nil {
			stream.closeFn()
		}
	})
}

// Collect consumes the entire stream and returns the accumulated ChatResponse.
// Any mid-stream error terminates collection and returns the partial response
// accumulated so far together with the error. The stream is closed on return.
func (stream *ChatStream) Collect() (*ChatResponse, error) {
	defer stream.Close()

	accumulated := &ChatResponse{}
	var content strings.Builder

	for event, err := range stream.iterator {
		if err != nil {
			accumulated.Content = content.String()
			return accumulated, err
		}

		switch event.Type {
		case StreamEventContent:
			content.WriteString(event.Content)
		case StreamEventUsage:
			if event.Usage != nil {
				accumulated.Usage = event.Usage
			}
		case StreamEventDone:
			accumulated.FinishReason = event.FinishReason
		}
	}

	accumulated.Content = content.String()
	return accumulated, nil
}
