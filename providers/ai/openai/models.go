package openai

import "github.com/okalas/relay/providers/ai"

/*
	CHAT COMPLETIONS API - INPUT
*/

// chatCompletionRequest represents the /v1/chat/completions request format.
type chatCompletionRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	Temperature   *float64       `json:"temperature,omitempty"`
	MaxTokens     *int           `json:"max_tokens,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// streamOptions configures streaming behavior in the request.
type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// requestFromGeneric converts an ai.ChatRequest into the chat completions wire
// format. The system prompt is materialized as the leading system message,
// since this API carries system context inside the turn list.
func requestFromGeneric(request ai.ChatRequest, stream bool) chatCompletionRequest {
	messages := make([]chatMessage, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: string(ai.RoleSystem), Content: request.SystemPrompt})
	}
	for _, message := range request.Messages {
		messages = append(messages, chatMessage{Role: string(message.Role), Content: message.Content})
	}

	wireRequest := chatCompletionRequest{
		Model:    request.Model,
		Messages: messages,
		Stream:   stream,
	}

	if cfg := request.GenerationConfig; cfg != nil {
		if cfg.Temperature > 0 {
			temperature := cfg.Temperature
			wireRequest.Temperature = &temperature
		}
		if cfg.MaxTokens > 0 {
			maxTokens := cfg.MaxTokens
			wireRequest.MaxTokens = &maxTokens
		}
	}

	if stream {
		// Ask for the final usage chunk so token accounting survives streaming.
		wireRequest.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	return wireRequest
}

/*
	CHAT COMPLETIONS API - OUTPUT
*/

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"` // "chat.completion"
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
}

type chatChoice struct {
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// responseToGeneric maps the wire response to the generic ai.ChatResponse.
func responseToGeneric(response *chatCompletionResponse) *ai.ChatResponse {
	generic := &ai.ChatResponse{
		ID:      response.ID,
		Model:   response.Model,
		Created: response.Created,
	}

	if len(response.Choices) > 0 {
		generic.Content = response.Choices[0].Message.Content
		generic.FinishReason = response.Choices[0].FinishReason
	}

	if response.Usage != nil {
		generic.Usage = usageToGeneric(response.Usage)
	}

	return generic
}

func usageToGeneric(usage *chatUsage) *ai.Usage {
	return &ai.Usage{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}
}

/*
	CHAT COMPLETIONS STREAMING API - RESPONSE TYPES

	These types model the SSE chunks returned when stream=true. Each chunk
	carries incremental deltas for content and, when stream_options includes
	include_usage, a final usage chunk with an empty choices list.
*/

// chatCompletionStreamChunk represents a single SSE chunk from the streaming
// chat completions endpoint.
type chatCompletionStreamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"` // "chat.completion.chunk"
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []streamChoice `json:"choices"`
	Usage   *chatUsage     `json:"usage,omitempty"`
}

// streamChoice represents a single choice in a streaming chunk. Unlike the
// non-streaming chatChoice, it uses Delta instead of Message.
type streamChoice struct {
	Index        int         `json:"index"`
	Delta        streamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"` // Nullable; nil until the final chunk for this choice
}

// streamDelta carries the incremental content for a streaming chunk.
type streamDelta struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"` // Nullable to distinguish empty string from absent
}
