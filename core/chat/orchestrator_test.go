package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okalas/relay/core/session"
	"github.com/okalas/relay/providers/ai"
)

// fakeProvider is a scriptable ai.Provider / ai.StreamProvider for
// orchestrator tests.
type fakeProvider struct {
	name     string
	response *ai.ChatResponse
	err      error

	// streamChunks are yielded as content events; streamErr, when set, is
	// yielded after them instead of a done event.
	streamChunks []string
	streamErr    error
	usage        *ai.Usage

	// active tracks concurrent in-flight SendMessage calls.
	active   atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
	requests struct {
		sync.Mutex
		all []ai.ChatRequest
	}
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	current := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if current <= seen || f.maxSeen.CompareAndSwap(seen, current) {
			break
		}
	}

	f.requests.Lock()
	f.requests.all = append(f.requests.all, request)
	f.requests.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.err != nil {
		return nil, f.err
	}
	if f.response != nil {
		return f.response, nil
	}
	return &ai.ChatResponse{Content: "ok", Usage: &ai.Usage{TotalTokens: 10}}, nil
}

func (f *fakeProvider) StreamMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatStream, error) {
	f.requests.Lock()
	f.requests.all = append(f.requests.all, request)
	f.requests.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	chunks := f.streamChunks
	streamErr := f.streamErr
	usage := f.usage

	return ai.NewChatStream(func(yield func(ai.StreamEvent, error) bool) {
		for _, chunk := range chunks {
			if !yield(ai.StreamEvent{Type: ai.StreamEventContent, Content: chunk}, nil) {
				return
			}
		}
		if streamErr != nil {
			yield(ai.StreamEvent{}, streamErr)
			return
		}
		if usage != nil {
			if !yield(ai.StreamEvent{Type: ai.StreamEventUsage, Usage: usage}, nil) {
				return
			}
		}
		yield(ai.StreamEvent{Type: ai.StreamEventDone, FinishReason: "stop"}, nil)
	}, nil), nil
}

func (f *fakeProvider) WithAPIKey(string) ai.Provider          { return f }
func (f *fakeProvider) WithBaseURL(string) ai.Provider         { return f }
func (f *fakeProvider) WithHttpClient(*http.Client) ai.Provider { return f }

func testOrchestrator(t *testing.T, provider *fakeProvider) (*Orchestrator, *session.Store) {
	t.Helper()

	store := session.NewStore(session.Settings{
		Model:       "gpt-4",
		Temperature: 0.7,
		MaxTokens:   1024,
		MaxHistory:  20,
	})

	registry, err := NewRegistry([]*Registration{{
		ID:           "openai",
		Provider:     provider,
		Models:       []string{"gpt-4"},
		Prefixes:     []string{"gpt-"},
		DefaultModel: "gpt-4",
	}}, "openai")
	require.NoError(t, err)

	return NewOrchestrator(store, registry, nil), store
}

func TestSend_AppendsBothTurns(t *testing.T) {
	provider := &fakeProvider{
		name:     "openai",
		response: &ai.ChatResponse{Content: "Hi there!", Usage: &ai.Usage{TotalTokens: 12}},
	}
	orchestrator, store := testOrchestrator(t, provider)

	result, err := orchestrator.Send(context.Background(), SendOptions{Message: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "Hi there!", result.Text)
	assert.Equal(t, 12, result.TokensUsed)
	assert.Equal(t, 12, result.SessionTotalTokens)
	assert.NotEmpty(t, result.SessionID)
	assert.NotEmpty(t, result.MessageID)

	sess, ok := store.Get(result.SessionID)
	require.True(t, ok)
	messages := sess.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, ai.RoleUser, messages[0].Role)
	assert.Equal(t, ai.RoleAssistant, messages[1].Role)
	assert.Equal(t, "Hi there!", messages[1].Content)
}

func TestSend_ProviderFailureLeavesOnlyUserTurn(t *testing.T) {
	provider := &fakeProvider{
		name: "openai",
		err:  &ai.ProviderError{Provider: "openai", Status: 429, Message: "rate limited"},
	}
	orchestrator, store := testOrchestrator(t, provider)

	sess := store.GetOrCreate("abc", "")
	_, err := orchestrator.Send(context.Background(), SendOptions{SessionID: "abc", Message: "hello"})

	var providerErr *ai.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, 429, providerErr.Status)

	messages := sess.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, ai.RoleUser, messages[0].Role)
}

func TestSend_HoistsSystemPromptOutOfTurns(t *testing.T) {
	provider := &fakeProvider{name: "openai"}
	orchestrator, store := testOrchestrator(t, provider)

	prompt := "You are terse."
	sess, err := store.Create("abc", "", session.SettingsUpdate{SystemPrompt: &prompt})
	require.NoError(t, err)
	_, err = orchestrator.Send(context.Background(), SendOptions{SessionID: "abc", Message: "hello"})
	require.NoError(t, err)

	provider.requests.Lock()
	defer provider.requests.Unlock()
	require.Len(t, provider.requests.all, 1)
	request := provider.requests.all[0]

	assert.Equal(t, "You are terse.", request.SystemPrompt)
	for _, message := range request.Messages {
		assert.NotEqual(t, ai.RoleSystem, message.Role)
	}
	require.Len(t, sess.Messages(), 3) // system seed + user + assistant
}

func TestSend_ConcurrentSameSessionNotInterleaved(t *testing.T) {
	provider := &fakeProvider{name: "openai", delay: 5 * time.Millisecond}
	orchestrator, store := testOrchestrator(t, provider)

	const sends = 8
	var wg sync.WaitGroup
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := orchestrator.Send(context.Background(), SendOptions{SessionID: "shared", Message: "ping"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// The turn lock admits one exchange at a time.
	assert.Equal(t, int32(1), provider.maxSeen.Load())

	// Each exchange commits a user/assistant pair before the next starts.
	sess, ok := store.Get("shared")
	require.True(t, ok)
	messages := sess.Messages()
	require.Len(t, messages, sends*2)
	for i, message := range messages {
		if i%2 == 0 {
			assert.Equal(t, ai.RoleUser, message.Role, "message %d", i)
		} else {
			assert.Equal(t, ai.RoleAssistant, message.Role, "message %d", i)
		}
	}
}

func TestSend_AppliesOverrides(t *testing.T) {
	provider := &fakeProvider{name: "openai"}
	orchestrator, store := testOrchestrator(t, provider)

	temperature := 1.5
	_, err := orchestrator.Send(context.Background(), SendOptions{
		SessionID: "abc",
		Message:   "hello",
		Overrides: &session.SettingsUpdate{Temperature: &temperature},
	})
	require.NoError(t, err)

	sess, ok := store.Get("abc")
	require.True(t, ok)
	assert.Equal(t, 1.5, sess.Settings().Temperature)

	provider.requests.Lock()
	defer provider.requests.Unlock()
	require.NotNil(t, provider.requests.all[0].GenerationConfig)
	assert.Equal(t, 1.5, provider.requests.all[0].GenerationConfig.Temperature)
}

func TestStream_CommitsAssistantTurnOnCompletion(t *testing.T) {
	provider := &fakeProvider{
		name:         "openai",
		streamChunks: []string{"Hel", "lo ", "there"},
		usage:        &ai.Usage{TotalTokens: 9},
	}
	orchestrator, store := testOrchestrator(t, provider)

	exchange, err := orchestrator.Stream(context.Background(), SendOptions{SessionID: "abc", Message: "hi"})
	require.NoError(t, err)

	var chunks []string
	exchange.Events(func(chunk string, err error) bool {
		require.NoError(t, err)
		chunks = append(chunks, chunk)
		return true
	})

	assert.Equal(t, []string{"Hel", "lo ", "there"}, chunks)
	require.NotNil(t, exchange.Result)
	assert.Equal(t, "Hello there", exchange.Result.Text)
	assert.Equal(t, 9, exchange.Result.TokensUsed)

	sess, ok := store.Get("abc")
	require.True(t, ok)
	messages := sess.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "Hello there", messages[1].Content)
}

func TestStream_MidStreamFailureYieldsChunksAndNoAssistantTurn(t *testing.T) {
	provider := &fakeProvider{
		name:         "openai",
		streamChunks: []string{"one", "two"},
		streamErr:    errors.New("connection reset"),
	}
	orchestrator, store := testOrchestrator(t, provider)

	exchange, err := orchestrator.Stream(context.Background(), SendOptions{SessionID: "abc", Message: "hi"})
	require.NoError(t, err)

	var chunks []string
	var streamErr error
	exchange.Events(func(chunk string, err error) bool {
		if err != nil {
			streamErr = err
			return false
		}
		chunks = append(chunks, chunk)
		return true
	})

	assert.Equal(t, []string{"one", "two"}, chunks)
	require.Error(t, streamErr)
	assert.Nil(t, exchange.Result)

	sess, ok := store.Get("abc")
	require.True(t, ok)
	messages := sess.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, ai.RoleUser, messages[0].Role)
}

func TestStream_ReleasesTurnLockOnEveryPath(t *testing.T) {
	provider := &fakeProvider{
		name:         "openai",
		streamChunks: []string{"partial"},
		streamErr:    errors.New("boom"),
	}
	orchestrator, store := testOrchestrator(t, provider)

	exchange, err := orchestrator.Stream(context.Background(), SendOptions{SessionID: "abc", Message: "hi"})
	require.NoError(t, err)
	exchange.Events(func(string, error) bool { return true })

	// A failed exchange must not wedge the session.
	sess, ok := store.Get("abc")
	require.True(t, ok)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, sess.AcquireTurn(ctx))
	sess.ReleaseTurn()
}

func TestSend_UnknownSessionIsCreated(t *testing.T) {
	provider := &fakeProvider{name: "openai"}
	orchestrator, store := testOrchestrator(t, provider)

	result, err := orchestrator.Send(context.Background(), SendOptions{SessionID: "brand-new", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "brand-new", result.SessionID)
	assert.Equal(t, 1, store.Count())
}
