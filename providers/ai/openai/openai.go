// Package openai implements the [ai.Provider] and [ai.StreamProvider]
// interfaces for OpenAI's Chat Completions API. The same wire format is used
// by several other vendors; [NewCompatible] builds an adapter pointed at any
// OpenAI-compatible endpoint under its own provider name (the groq package
// uses this).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/okalas/relay/internal/utils"
	"github.com/okalas/relay/providers/ai"
	"github.com/okalas/relay/providers/observability"
)

const (
	defaultBaseURL          = "https://api.openai.com/v1"
	chatCompletionsEndpoint = "/chat/completions"
)

// OpenAIProvider implements [ai.Provider] for the Chat Completions API.
// Use [New] for api.openai.com or [NewCompatible] for compatible vendors.
type OpenAIProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
}

// New returns an OpenAIProvider initialized from environment variables.
// It reads OPENAI_API_KEY for authentication and OPENAI_API_BASE_URL for the
// endpoint base (defaulting to https://api.openai.com/v1 when unset).
func New() *OpenAIProvider {
	baseURL := os.Getenv("OPENAI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &OpenAIProvider{
		name:    "openai",
		apiKey:  os.Getenv("OPENAI_API_KEY"),
		baseURL: baseURL,
		client:  utils.NewClient(),
	}
}

// NewCompatible returns an adapter speaking the Chat Completions wire format
// against a different vendor's endpoint, reported under the given provider
// name in errors and logs.
func NewCompatible(name, baseURL, apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		name:    name,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  utils.NewClient(),
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// WithAPIKey sets the API key for the provider.
func (p *OpenAIProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the base URL for API requests.
func (p *OpenAIProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHttpClient sets a custom HTTP client.
func (p *OpenAIProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// SendMessage implements [ai.Provider] by sending a synchronous chat request
// and mapping the response to the generic [ai.ChatResponse] format.
func (p *OpenAIProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	span := observability.SpanFromContext(ctx)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, p.name),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
		)
		defer span.AddEvent(observability.EventLLMRequestEnd)
	}

	// Guard against missing credentials before making a network call.
	if p.apiKey == "" {
		return nil, fmt.Errorf("%s: API key is not set", p.name)
	}

	_, resp, err := utils.DoPostSync[chatCompletionResponse](ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.apiKey, requestFromGeneric(request, false))
	if err != nil {
		return nil, p.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, ai.NewProviderError(p.name, 0, "no choices in response", p.apiKey)
	}

	return responseToGeneric(resp), nil
}

// wrapError converts transport and status errors into a *ai.ProviderError,
// scrubbing the API key from any upstream message text.
func (p *OpenAIProvider) wrapError(err error) error {
	var statusErr *utils.HTTPStatusError
	if errors.As(err, &statusErr) {
		return ai.NewProviderError(p.name, statusErr.StatusCode, statusErr.Body, p.apiKey)
	}
	return ai.NewProviderError(p.name, 0, err.Error(), p.apiKey)
}
