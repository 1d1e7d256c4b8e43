package openai

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/okalas/relay/internal/utils"
	"github.com/okalas/relay/providers/ai"
	"github.com/okalas/relay/providers/observability"
)

// StreamMessage implements [ai.StreamProvider] for the Chat Completions API.
// It sends a streaming request (stream=true) and returns an [ai.ChatStream]
// that yields incremental text deltas as SSE chunks arrive.
//
// Pre-stream errors (missing API key, non-2xx HTTP response, network failure)
// are returned immediately. Mid-stream failures are yielded through the
// iterator after any deltas already read. Malformed chunks are skipped rather
// than aborting the stream.
func (p *OpenAIProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	span := observability.SpanFromContext(ctx)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, p.name),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Bool("llm.streaming", true),
		)
	}

	// Guard against missing credentials before making a network call.
	if p.apiKey == "" {
		return nil, fmt.Errorf("%s: API key is not set", p.name)
	}

	httpResponse, err := utils.DoPostStream(ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey, requestFromGeneric(request, true))
	if err != nil {
		return nil, p.wrapError(err)
	}

	// Single shared release path: the iterator's defer, an early break, and
	// ChatStream.Close all funnel into the same body close.
	closeBody := sync.OnceFunc(func() { utils.CloseWithLog(httpResponse.Body) })

	sseScanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer closeBody()

		// finishReason is captured from the terminating choice chunk and
		// reported on the final done event.
		finishReason := ""

		for {
			// Respect context cancellation between SSE reads.
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ctx.Err())
				return
			}

			payload, sseErr := sseScanner.Next()
			if sseErr == io.EOF {
				yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: finishReason}, nil)
				return
			}
			if sseErr != nil {
				yield(ai.StreamEvent{}, p.wrapError(fmt.Errorf("SSE read error: %w", sseErr)))
				return
			}

			var chunk chatCompletionStreamChunk
			if parseErr := utils.UnmarshalLenient(payload, &chunk); parseErr != nil {
				// Malformed chunk: drop it and keep reading.
				continue
			}

			// Usage arrives in a dedicated final chunk with no choices.
			if chunk.Usage != nil {
				if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: usageToGeneric(chunk.Usage)}, nil) {
					return
				}
			}

			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				finishReason = *choice.FinishReason
			}

			if choice.Delta.Content != nil && *choice.Delta.Content != "" {
				if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: *choice.Delta.Content}, nil) {
					return
				}
			}
		}
	}

	return ai.NewChatStream(iteratorFunc, closeBody), nil
}
