package anthropic

import "github.com/okalas/relay/providers/ai"

/*
	MESSAGES API - INPUT
*/

// defaultMaxTokens is applied when the caller does not bound the response;
// Anthropic rejects requests without max_tokens.
const defaultMaxTokens = 4096

type messagesRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"` // user or assistant only; system is hoisted
	Content string `json:"content"`
}

// requestToAnthropic converts an ai.ChatRequest into the Messages API wire
// format. The system prompt is hoisted into the dedicated system field and
// any stray system-role turns are excluded from the message list, which
// Anthropic restricts to user/assistant alternation.
func requestToAnthropic(request ai.ChatRequest, stream bool) messagesRequest {
	messages := make([]anthropicMessage, 0, len(request.Messages))
	for _, message := range request.Messages {
		if message.Role == ai.RoleSystem {
			continue
		}
		messages = append(messages, anthropicMessage{Role: string(message.Role), Content: message.Content})
	}

	wireRequest := messagesRequest{
		Model:     request.Model,
		System:    request.SystemPrompt,
		Messages:  messages,
		MaxTokens: defaultMaxTokens,
		Stream:    stream,
	}

	if cfg := request.GenerationConfig; cfg != nil {
		if cfg.Temperature > 0 {
			temperature := cfg.Temperature
			wireRequest.Temperature = &temperature
		}
		if cfg.MaxTokens > 0 {
			wireRequest.MaxTokens = cfg.MaxTokens
		}
	}

	return wireRequest
}

/*
	MESSAGES API - OUTPUT
*/

type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"` // "message"
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"` // "text"
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// responseToGeneric maps the wire response to the generic ai.ChatResponse,
// concatenating text blocks into a single content string.
func responseToGeneric(response *messagesResponse) *ai.ChatResponse {
	content := ""
	for _, block := range response.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &ai.ChatResponse{
		ID:           response.ID,
		Model:        response.Model,
		Content:      content,
		FinishReason: response.StopReason,
		Usage: &ai.Usage{
			PromptTokens:     response.Usage.InputTokens,
			CompletionTokens: response.Usage.OutputTokens,
			TotalTokens:      response.Usage.InputTokens + response.Usage.OutputTokens,
		},
	}
}

/*
	MESSAGES STREAMING API - EVENT TYPES

	Anthropic SSE lifecycle:

	  message_start → content_block_start → content_block_delta(s) →
	  content_block_stop → message_delta → message_stop

	Input tokens arrive on message_start, output tokens and the stop reason
	on message_delta. Ping events keep the connection alive and are skipped.
*/

type streamEvent struct {
	Type string `json:"type"`

	// message_start
	Message *struct {
		Usage anthropicUsage `json:"usage"`
	} `json:"message,omitempty"`

	// content_block_delta
	Delta *struct {
		Type       string `json:"type"` // "text_delta"
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"` // present on message_delta
	} `json:"delta,omitempty"`

	// message_delta
	Usage *anthropicUsage `json:"usage,omitempty"`

	// error
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
