// Package groq provides the Groq provider adapter. Groq serves an
// OpenAI-compatible Chat Completions API, so the adapter is the openai
// package's wire implementation pointed at Groq's endpoint and credentials.
package groq

import (
	"os"

	"github.com/okalas/relay/providers/ai/openai"
)

const (
	// defaultBaseURL is Groq's OpenAI-compatible API root.
	defaultBaseURL = "https://api.groq.com/openai/v1"

	// DefaultModel is the model used when a session does not specify one.
	DefaultModel = "llama-3.3-70b-versatile"
)

// New returns a Groq adapter initialized from environment variables.
// It reads GROQ_API_KEY for authentication and GROQ_API_BASE_URL for the
// endpoint base (defaulting to https://api.groq.com/openai/v1 when unset).
func New() *openai.OpenAIProvider {
	baseURL := os.Getenv("GROQ_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return openai.NewCompatible("groq", baseURL, os.Getenv("GROQ_API_KEY"))
}
