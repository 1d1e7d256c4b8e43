package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okalas/relay/providers/ai"
)

// writeSSE writes an Anthropic SSE event (event line plus data line) and flushes.
func writeSSE(writer http.ResponseWriter, eventType, data string) {
	fmt.Fprintf(writer, "event: %s\ndata: %s\n\n", eventType, data)
	if flusher, ok := writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

// TestStreamMessage_EventLifecycle verifies the full message lifecycle:
// deltas are streamed, token counts are merged from message_start and
// message_delta, and message_stop terminates the stream.
func TestStreamMessage_EventLifecycle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writer.WriteHeader(http.StatusOK)

		writeSSE(writer, "message_start", `{"type":"message_start","message":{"id":"msg_01","usage":{"input_tokens":10,"output_tokens":0}}}`)
		writeSSE(writer, "content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`)
		writeSSE(writer, "ping", `{"type":"ping"}`)
		writeSSE(writer, "content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`)
		writeSSE(writer, "content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" world"}}`)
		writeSSE(writer, "content_block_stop", `{"type":"content_block_stop","index":0}`)
		writeSSE(writer, "message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":2}}`)
		writeSSE(writer, "message_stop", `{"type":"message_stop"}`)
	}))
	defer server.Close()

	provider := New()
	provider.WithBaseURL(server.URL)
	provider.WithAPIKey("test-key")

	stream, err := provider.StreamMessage(context.Background(), ai.ChatRequest{
		Model:    "claude-sonnet-4",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}

	response, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}

	if response.Content != "Hello world" {
		t.Errorf("expected content 'Hello world', got %q", response.Content)
	}
	if response.FinishReason != "end_turn" {
		t.Errorf("expected finish reason 'end_turn', got %q", response.FinishReason)
	}
	if response.Usage == nil {
		t.Fatal("expected usage to be reported")
	}
	if response.Usage.PromptTokens != 10 || response.Usage.CompletionTokens != 2 || response.Usage.TotalTokens != 12 {
		t.Errorf("expected usage 10/2/12, got %#v", response.Usage)
	}
}

// TestStreamMessage_MalformedEventIsSkipped verifies an unparseable event is
// dropped without terminating the stream.
func TestStreamMessage_MalformedEventIsSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writer.WriteHeader(http.StatusOK)

		writeSSE(writer, "content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":"before"}}`)
		writeSSE(writer, "content_block_delta", `%%% not json %%%`)
		writeSSE(writer, "content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":" after"}}`)
		writeSSE(writer, "message_stop", `{"type":"message_stop"}`)
	}))
	defer server.Close()

	provider := New()
	provider.WithBaseURL(server.URL)
	provider.WithAPIKey("test-key")

	stream, err := provider.StreamMessage(context.Background(), ai.ChatRequest{
		Model:    "claude-sonnet-4",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}

	response, err := stream.Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if response.Content != "before after" {
		t.Errorf("expected malformed event to be skipped, got %q", response.Content)
	}
}

// TestStreamMessage_ErrorEvent verifies a mid-stream error event surfaces as a
// terminal *ai.ProviderError after the deltas that preceded it.
func TestStreamMessage_ErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writer.WriteHeader(http.StatusOK)

		writeSSE(writer, "content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":"partial"}}`)
		writeSSE(writer, "error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	}))
	defer server.Close()

	provider := New()
	provider.WithBaseURL(server.URL)
	provider.WithAPIKey("test-key")

	stream, err := provider.StreamMessage(context.Background(), ai.ChatRequest{
		Model:    "claude-sonnet-4",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("StreamMessage returned error: %v", err)
	}
	defer stream.Close()

	var content string
	var streamErr error
	for event, iterErr := range stream.Iter() {
		if iterErr != nil {
			streamErr = iterErr
			break
		}
		if event.Type == ai.StreamEventContent {
			content += event.Content
		}
	}

	if content != "partial" {
		t.Errorf("expected partial content before the error, got %q", content)
	}
	if streamErr == nil {
		t.Fatal("expected a terminal error from the error event")
	}
}

// TestStreamMessage_MissingAPIKey verifies the stream fails fast without a key.
func TestStreamMessage_MissingAPIKey(t *testing.T) {
	provider := New()
	provider.WithAPIKey("")

	_, err := provider.StreamMessage(context.Background(), ai.ChatRequest{
		Model:    "claude-sonnet-4",
		Messages: []ai.Message{{Role: ai.RoleUser, Content: "Hi"}},
	})
	if err == nil {
		t.Fatal("expected error when API key is not set")
	}
}
