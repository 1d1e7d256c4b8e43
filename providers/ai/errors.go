package ai

import (
	"fmt"
	"strings"
)

// ProviderError reports an upstream provider failure: auth errors, rate
// limits, malformed requests, or transport problems that carried an HTTP
// status. Status is zero when the failure happened before a response was
// received.
type ProviderError struct {
	Provider string // provider identifier ("openai", "anthropic", "groq")
	Status   int    // HTTP status code, 0 if none
	Message  string // upstream error text, credential-scrubbed
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

// NewProviderError builds a ProviderError, scrubbing any occurrence of the
// given credential from the upstream message so API keys never leak into
// responses or logs.
func NewProviderError(provider string, status int, message, credential string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Status:   status,
		Message:  ScrubCredential(message, credential),
	}
}

// ScrubCredential replaces every occurrence of credential in text with a
// redaction marker. Returns text unchanged when credential is empty.
func ScrubCredential(text, credential string) string {
	if credential == "" {
		return text
	}
	return strings.ReplaceAll(text, credential, "[redacted]")
}
