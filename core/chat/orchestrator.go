package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/okalas/relay/core/session"
	"github.com/okalas/relay/providers/ai"
	"github.com/okalas/relay/providers/observability"
)

// SendOptions describes one inbound chat exchange. An empty SessionID creates
// a new session; Overrides, when present, are applied to the session settings
// before the exchange.
type SendOptions struct {
	SessionID string
	UserID    string
	Message   string
	Overrides *session.SettingsUpdate
}

// SendResult is the outcome of a completed non-streaming exchange.
type SendResult struct {
	Text               string `json:"text"`
	SessionID          string `json:"session_id"`
	MessageID          string `json:"message_id"`
	TokensUsed         int    `json:"tokens_used"`
	SessionTotalTokens int    `json:"session_total_tokens"`
}

// Orchestrator drives the full request lifecycle: session resolution, user
// turn append, model routing, provider call, and assistant turn append. A
// failed or cancelled exchange leaves the session with at most the user
// message; a partial assistant response is never persisted.
type Orchestrator struct {
	store    *session.Store
	registry *Registry
	observer observability.Observer
}

// NewOrchestrator wires an orchestrator over the given store and registry.
// observer may be nil.
func NewOrchestrator(store *session.Store, registry *Registry, observer observability.Observer) *Orchestrator {
	return &Orchestrator{store: store, registry: registry, observer: observer}
}

// Send runs a complete non-streaming exchange and returns the aggregated
// result. Concurrent sends against the same session are serialized; different
// sessions proceed independently.
func (o *Orchestrator) Send(ctx context.Context, opts SendOptions) (*SendResult, error) {
	sess := o.store.GetOrCreate(opts.SessionID, opts.UserID)

	if err := sess.AcquireTurn(ctx); err != nil {
		return nil, err
	}
	defer sess.ReleaseTurn()

	registration, request, err := o.prepare(sess, opts)
	if err != nil {
		return nil, err
	}

	response, err := registration.Provider.SendMessage(ctx, request)
	if err != nil {
		o.logExchange(ctx, sess.ID, registration.ID, request.Model, err)
		return nil, err
	}
	o.logExchange(ctx, sess.ID, registration.ID, request.Model, nil)

	return o.complete(sess, response.Content, response.Usage)
}

// Exchange is a live streaming exchange. Iterate Events to forward deltas;
// the assistant turn is committed to the session only when the stream
// finishes normally. Callers must consume Events to completion or call Close.
type Exchange struct {
	SessionID string

	stream      *ai.ChatStream
	releaseOnce sync.Once
	release     func()
	finish      func(text string, usage *ai.Usage) (*SendResult, error)

	// Result holds the committed outcome after Events finishes normally.
	Result *SendResult
}

// Stream runs the same pipeline as Send but returns the deltas as they are
// produced. The session turn lock is held until the exchange ends on any
// path, keeping concurrent exchanges against one session serialized.
func (o *Orchestrator) Stream(ctx context.Context, opts SendOptions) (*Exchange, error) {
	sess := o.store.GetOrCreate(opts.SessionID, opts.UserID)

	if err := sess.AcquireTurn(ctx); err != nil {
		return nil, err
	}

	registration, request, err := o.prepare(sess, opts)
	if err != nil {
		sess.ReleaseTurn()
		return nil, err
	}

	stream, err := o.openStream(ctx, registration, request)
	if err != nil {
		sess.ReleaseTurn()
		o.logExchange(ctx, sess.ID, registration.ID, request.Model, err)
		return nil, err
	}

	return &Exchange{
		SessionID: sess.ID,
		stream:    stream,
		release:   sess.ReleaseTurn,
		finish: func(text string, usage *ai.Usage) (*SendResult, error) {
			o.logExchange(ctx, sess.ID, registration.ID, request.Model, nil)
			return o.complete(sess, text, usage)
		},
	}, nil
}

// openStream uses the provider's native streaming when available and falls
// back to a single-event stream over SendMessage otherwise.
func (o *Orchestrator) openStream(ctx context.Context, registration *Registration, request ai.ChatRequest) (*ai.ChatStream, error) {
	if streamer, ok := registration.Provider.(ai.StreamProvider); ok {
		return streamer.StreamMessage(ctx, request)
	}

	response, err := registration.Provider.SendMessage(ctx, request)
	if err != nil {
		return nil, err
	}
	return ai.NewSingleEventStream(response), nil
}

// Events yields the text deltas of the exchange. When the provider stream
// ends normally the assistant message is appended and Result populated; a
// mid-stream error is yielded after the deltas already read and nothing is
// persisted beyond the user turn.
func (e *Exchange) Events(yield func(chunk string, err error) bool) {
	defer e.Close()

	var content strings.Builder
	var usage *ai.Usage

	for event, err := range e.stream.Iter() {
		if err != nil {
			yield("", err)
			return
		}

		switch event.Type {
		case ai.StreamEventContent:
			content.WriteString(event.Content)
			if !yield(event.Content, nil) {
				return
			}
		case ai.StreamEventUsage:
			usage = event.Usage
		case ai.StreamEventDone:
			result, err := e.finish(content.String(), usage)
			if err != nil {
				yield("", err)
				return
			}
			e.Result = result
			return
		}
	}
}

// Close abandons the exchange: the provider stream is torn down and the
// session turn lock released. Idempotent; called automatically when Events
// returns.
func (e *Exchange) Close() {
	e.stream.Close()
	e.releaseOnce.Do(e.release)
}

// prepare applies per-request overrides, appends the user turn, and builds
// the routed provider request.
func (o *Orchestrator) prepare(sess *session.Session, opts SendOptions) (*Registration, ai.ChatRequest, error) {
	if opts.Overrides != nil {
		if err := sess.ApplySettings(*opts.Overrides); err != nil {
			return nil, ai.ChatRequest{}, err
		}
	}

	if _, err := sess.AddMessage(ai.RoleUser, opts.Message, 0); err != nil {
		return nil, ai.ChatRequest{}, err
	}

	settings := sess.Settings()

	registration, err := o.registry.Resolve(settings.Model)
	if err != nil {
		return nil, ai.ChatRequest{}, err
	}

	model := settings.Model
	if model == "" {
		model = registration.DefaultModel
	}

	systemPrompt, turns := splitHistory(sess, settings.SystemPrompt)

	request := ai.ChatRequest{
		Model:        model,
		Messages:     turns,
		SystemPrompt: systemPrompt,
		GenerationConfig: &ai.GenerationConfig{
			Temperature: settings.Temperature,
			MaxTokens:   settings.MaxTokens,
		},
	}

	return registration, request, nil
}

// complete commits the assistant turn and builds the result. The exchange's
// full token cost is recorded on the assistant message so session totals
// reflect cumulative usage.
func (o *Orchestrator) complete(sess *session.Session, text string, usage *ai.Usage) (*SendResult, error) {
	tokens := 0
	if usage != nil {
		tokens = usage.TotalTokens
	}

	assistant, err := sess.AddMessage(ai.RoleAssistant, text, tokens)
	if err != nil {
		return nil, fmt.Errorf("appending assistant message: %w", err)
	}

	return &SendResult{
		Text:               text,
		SessionID:          sess.ID,
		MessageID:          assistant.ID,
		TokensUsed:         tokens,
		SessionTotalTokens: sess.TotalTokens(),
	}, nil
}

// splitHistory separates the session history into the hoisted system prompt
// and the user/assistant turns. The current session system prompt takes
// precedence; system turns with distinct content are appended after it, so
// providers that keep system context out of the turn list (Anthropic) still
// see every instruction exactly once.
func splitHistory(sess *session.Session, systemPrompt string) (string, []ai.Message) {
	var systemParts []string
	if systemPrompt != "" {
		systemParts = append(systemParts, systemPrompt)
	}

	var turns []ai.Message
	for _, message := range sess.Messages() {
		if message.Role == ai.RoleSystem {
			if message.Content != systemPrompt {
				systemParts = append(systemParts, message.Content)
			}
			continue
		}
		turns = append(turns, ai.Message{Role: message.Role, Content: message.Content})
	}

	return strings.Join(systemParts, "\n\n"), turns
}

func (o *Orchestrator) logExchange(ctx context.Context, sessionID, provider, model string, err error) {
	observer := o.observer
	if observer == nil {
		observer = observability.ObserverFromContext(ctx)
	}
	if observer == nil {
		return
	}

	attrs := []observability.Attribute{
		observability.String(observability.AttrSessionID, sessionID),
		observability.String(observability.AttrLLMProvider, provider),
		observability.String(observability.AttrLLMModel, model),
	}
	if err != nil {
		observer.Error(observability.EventLLMRequestEnd, append(attrs, observability.Error(err))...)
		return
	}
	observer.Info(observability.EventLLMRequestEnd, attrs...)
}
