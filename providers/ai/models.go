package ai

/*
	##### PROVIDER INPUT #####
*/

// ChatRequest represents a request to send a conversation to a provider.
// Messages carries the conversation turns except the system prompt, which is
// kept in its own field so providers that separate system context from turn
// history (Anthropic) can hoist it, while OpenAI-compatible providers
// materialize it as a leading system message.
type ChatRequest struct {
	Model            string            `json:"model,omitempty"`
	Messages         []Message         `json:"messages"`
	SystemPrompt     string            `json:"system_prompt,omitempty"`
	GenerationConfig *GenerationConfig `json:"generation_config,omitempty"`
}

// Message represents a single message in a conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// GenerationConfig holds the sampling parameters forwarded to the provider.
type GenerationConfig struct {
	Temperature float64 `json:"temperature,omitempty"` // Sampling temperature [0..2]. Higher => more random.
	MaxTokens   int     `json:"max_tokens,omitempty"`  // Maximum tokens for the response.
}

/*
	##### PROVIDER OUTPUT #####
*/

// Usage reports token consumption as accounted by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatResponse represents the completed response from a chat exchange.
type ChatResponse struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Created      int64  `json:"created"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

/*
	##### ENUMS #####
*/

// MessageRole represents the role of a message; compatible with string.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"    // System instructions/configuration
	RoleUser      MessageRole = "user"      // End-user message
	RoleAssistant MessageRole = "assistant" // Model response
)

// Valid reports whether role is one of the three recognized conversation roles.
func (role MessageRole) Valid() bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}
