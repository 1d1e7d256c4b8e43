package ai

import (
	"context"
	"net/http"
)

// Provider is the core interface every LLM provider adapter must satisfy.
// It covers authentication, endpoint configuration and synchronous message
// dispatch. Use [StreamProvider] in addition when the provider supports
// streaming.
type Provider interface {
	// Name returns the provider identifier ("openai", "anthropic", "groq").
	Name() string

	// SendMessage sends a chat request to the provider and returns the
	// completed response. Returns an error if the provider call fails,
	// the context is cancelled, or the response cannot be decoded.
	// Upstream failures are reported as a *ProviderError.
	SendMessage(ctx context.Context, request ChatRequest) (*ChatResponse, error)

	// WithAPIKey sets the API key used for authenticating requests.
	WithAPIKey(apiKey string) Provider

	// WithBaseURL overrides the default base URL for API requests.
	WithBaseURL(baseURL string) Provider

	// WithHttpClient sets the HTTP client used for outbound requests.
	WithHttpClient(httpClient *http.Client) Provider
}

// StreamProvider is implemented by providers that support streaming (SSE)
// responses. Callers detect support via type assertion:
// provider.(StreamProvider). When absent, callers fall back to SendMessage
// wrapped in a single-event stream.
type StreamProvider interface {
	Provider

	// StreamMessage sends a chat request and returns a ChatStream that yields
	// incremental text deltas as they arrive from the API. Pre-stream errors
	// (auth, bad request, network) are returned as a normal error. Mid-stream
	// errors are yielded through the iterator after any deltas already read.
	StreamMessage(ctx context.Context, request ChatRequest) (*ChatStream, error)
}
