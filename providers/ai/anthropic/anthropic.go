// Package anthropic implements [ai.Provider] and [ai.StreamProvider] for
// Anthropic's Messages API. Unlike the OpenAI-compatible providers, Anthropic
// keeps the system prompt out of the turn list (a dedicated system field),
// authenticates with an x-api-key header rather than a Bearer token, and
// requires max_tokens on every request.
package anthropic

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
	// defaultBaseURL is the canonical base URL for Anthropic's Messages API.
	defaultBaseURL = "https://api.anthropic.com/v1"

	// messagesEndpoint is the path for the Messages API endpoint.
	messagesEndpoint = "/messages"

	// anthropicVersion is the required anthropic-version header value.
	// Anthropic uses this to version-lock response formats independently of the URL.
	anthropicVersion = "2023-06-01"
)

// AnthropicProvider implements [ai.Provider] for Anthropic's Messages API.
// Use [New] to construct a ready-to-use instance.
type AnthropicProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New returns an [AnthropicProvider] initialized from environment variables.
// It reads ANTHROPIC_API_KEY for authentication and ANTHROPIC_API_BASE_URL for
// the endpoint base (defaulting to https://api.anthropic.com/v1 when unset).
func New() *AnthropicProvider {
	baseURL := os.Getenv("ANTHROPIC_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &AnthropicProvider{
		apiKey:  os.Getenv("ANTHROPIC_API_KEY"),
		baseURL: baseURL,
		client:  utils.NewClient(),
	}
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// WithAPIKey sets the API key used for authenticating requests and returns the
// provider so calls can be chained. It overrides the value read from ANTHROPIC_API_KEY.
func (p *AnthropicProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL overrides the API base URL and returns the provider so calls can
// be chained. Use this when targeting a proxy or local testing endpoint.
func (p *AnthropicProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHttpClient replaces the default [http.Client] used for API calls and
// returns the provider so calls can be chained.
func (p *AnthropicProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// buildHeaders constructs the HTTP headers required for every Anthropic
// request. x-api-key carries the credential (Anthropic does not use Bearer
// tokens) and anthropic-version pins the wire format.
func (p *AnthropicProvider) buildHeaders() []utils.HeaderOption {
	return []utils.HeaderOption{
		{Key: "x-api-key", Value: p.apiKey},
		{Key: "anthropic-version", Value: anthropicVersion},
	}
}

// SendMessage implements [ai.Provider] by sending a synchronous chat request
// to Anthropic's Messages API and returning the full response mapped to the
// generic [ai.ChatResponse] format.
func (p *AnthropicProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	span := observability.SpanFromContext(ctx)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, "anthropic"),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
		)
		defer span.AddEvent(observability.EventLLMRequestEnd)
	}

	// Guard against missing credentials before making a network call.
	if p.apiKey == "" {
		return nil, fmt.Errorf("anthropic: API key is not set")
	}

	// Pass empty apiKey so DoPostSync does not inject a Bearer token;
	// Anthropic authenticates via x-api-key (set inside buildHeaders).
	_, resp, err := utils.DoPostSync[messagesResponse](ctx, p.client, p.baseURL+messagesEndpoint, "", requestToAnthropic(request, false), p.buildHeaders()...)
	if err != nil {
		return nil, p.wrapError(err)
	}

	return responseToGeneric(resp), nil
}

// wrapError converts transport and status errors into a *ai.ProviderError,
// scrubbing the API key from any upstream message text.
func (p *AnthropicProvider) wrapError(err error) error {
	var statusErr *utils.HTTPStatusError
	if errors.As(err, &statusErr) {
		return ai.NewProviderError("anthropic", statusErr.StatusCode, statusErr.Body, p.apiKey)
	}
	return ai.NewProviderError("anthropic", 0, err.Error(), p.apiKey)
}
