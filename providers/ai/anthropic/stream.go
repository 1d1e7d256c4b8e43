package anthropic

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/okalas/relay/internal/utils"
	"github.com/okalas/relay/providers/ai"
	"github.com/okalas/relay/providers/observability"
)

// StreamMessage implements [ai.StreamProvider] for Anthropic's Messages API.
// It sends a streaming request (stream=true) and returns an [ai.ChatStream]
// that yields incremental text deltas as SSE events arrive.
//
// Pre-stream errors (missing API key, non-2xx HTTP response, network failure)
// are returned immediately as a non-nil error. Mid-stream errors (an Anthropic
// "error" event, transport failure) are yielded through the iterator after any
// deltas already read. Malformed or unrecognized events are skipped.
func (p *AnthropicProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	span := observability.SpanFromContext(ctx)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, "anthropic"),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Bool("llm.streaming", true),
		)
	}

	// Guard against missing credentials before making a network call.
	if p.apiKey == "" {
		return nil, fmt.Errorf("anthropic: API key is not set")
	}

	// Pass empty apiKey so DoPostStream does not inject a Bearer token;
	// Anthropic authenticates via x-api-key (set inside buildHeaders).
	httpResponse, err := utils.DoPostStream(ctx, p.client, p.baseURL+messagesEndpoint, "", requestToAnthropic(request, true), p.buildHeaders()...)
	if err != nil {
		return nil, p.wrapError(err)
	}

	closeBody := sync.OnceFunc(func() { utils.CloseWithLog(httpResponse.Body) })

	sseScanner := utils.NewSSEScanner(httpResponse.Body)

	iteratorFunc := func(yield func(ai.StreamEvent, error) bool) {
		defer closeBody()

		// Token counts are spread across multiple events (message_start for
		// input tokens, message_delta for output tokens) so they are
		// accumulated and emitted together in a single usage event.
		inputTokens := 0
		outputTokens := 0

		// finishReason is captured from message_delta and reported when
		// message_stop triggers the done event.
		finishReason := ""

		for {
			// Respect context cancellation between SSE reads.
			if ctx.Err() != nil {
				yield(ai.StreamEvent{}, ctx.Err())
				return
			}

			payload, sseErr := sseScanner.Next()
			if sseErr == io.EOF {
				// Stream ended without message_stop; report what we have.
				yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: finishReason}, nil)
				return
			}
			if sseErr != nil {
				yield(ai.StreamEvent{}, p.wrapError(fmt.Errorf("SSE read error: %w", sseErr)))
				return
			}

			var event streamEvent
			if parseErr := utils.UnmarshalLenient(payload, &event); parseErr != nil {
				// Malformed event: drop it and keep reading.
				continue
			}

			switch event.Type {

			case "message_start":
				if event.Message != nil {
					inputTokens = event.Message.Usage.InputTokens
				}

			case "content_block_delta":
				if event.Delta != nil && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
					if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: event.Delta.Text}, nil) {
						return
					}
				}

			case "message_delta":
				if event.Delta != nil && event.Delta.StopReason != "" {
					finishReason = event.Delta.StopReason
				}
				if event.Usage != nil {
					outputTokens = event.Usage.OutputTokens
				}

			case "message_stop":
				usage := &ai.Usage{
					PromptTokens:     inputTokens,
					CompletionTokens: outputTokens,
					TotalTokens:      inputTokens + outputTokens,
				}
				if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: usage}, nil) {
					return
				}
				yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: finishReason}, nil)
				return

			case "error":
				message := "stream error"
				if event.Error != nil {
					message = fmt.Sprintf("%s: %s", event.Error.Type, event.Error.Message)
				}
				yield(ai.StreamEvent{}, ai.NewProviderError("anthropic", 0, message, p.apiKey))
				return

			default:
				// ping, content_block_start, content_block_stop: nothing to forward.
			}
		}
	}

	return ai.NewChatStream(iteratorFunc, closeBody), nil
}
