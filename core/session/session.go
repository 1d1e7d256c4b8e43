// Package session holds the conversational state of the service: the message
// and session model, the history trimmer, and a concurrent in-memory store
// with expiry sweeping.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okalas/relay/providers/ai"
)

var (
	// ErrSessionNotFound is returned by operations that require an existing session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidRole is returned when a message role is outside the recognized set.
	ErrInvalidRole = errors.New("invalid message role")
)

// Message is a single conversation turn. Once appended to a session it is
// never mutated; trimming may only discard it wholesale.
type Message struct {
	ID         string         `json:"id"`
	Role       ai.MessageRole `json:"role"`
	Content    string         `json:"content"`
	TokensUsed int            `json:"tokens_used,omitempty"` // 0 means unknown
	CreatedAt  time.Time      `json:"created_at"`
}

// Session is one conversation: ordered message history plus the generation
// settings applied to every exchange. All mutating methods are safe for
// concurrent use; turn-level ordering across a full provider exchange is the
// caller's job via AcquireTurn/ReleaseTurn.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id,omitempty"`
	Model        string    `json:"model"`
	Temperature  float64   `json:"temperature"`
	MaxTokens    int       `json:"max_tokens"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	MaxHistory   int       `json:"max_history"`
	CreatedAt    time.Time `json:"created_at"`

	mu           sync.Mutex
	messages     []Message
	lastActivity time.Time

	// turn serializes full exchanges (append user turn, call provider,
	// append assistant turn) against this session. Buffered with capacity 1
	// so acquisition can respect context cancellation.
	turn chan struct{}
}

// Settings are the configurable generation parameters of a session.
type Settings struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	MaxHistory   int
}

// SettingsUpdate is a partial settings change; nil fields are left untouched.
type SettingsUpdate struct {
	SystemPrompt *string  `json:"system_prompt,omitempty"`
	Model        *string  `json:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	MaxHistory   *int     `json:"max_history,omitempty"`
}

// Validate rejects values outside the settings invariants: temperature stays
// in [0, 2] and the history bound stays positive.
func (update SettingsUpdate) Validate() error {
	if update.Temperature != nil && (*update.Temperature < 0 || *update.Temperature > 2) {
		return fmt.Errorf("temperature %v out of range [0, 2]", *update.Temperature)
	}
	if update.MaxHistory != nil && *update.MaxHistory <= 0 {
		return fmt.Errorf("max_history %d must be positive", *update.MaxHistory)
	}
	return nil
}

// newSession builds a session with the given settings, seeding the history
// with the system prompt when one is configured.
func newSession(id, userID string, settings Settings, now time.Time) *Session {
	if id == "" {
		id = uuid.NewString()
	}

	s := &Session{
		ID:           id,
		UserID:       userID,
		Model:        settings.Model,
		Temperature:  settings.Temperature,
		MaxTokens:    settings.MaxTokens,
		SystemPrompt: settings.SystemPrompt,
		MaxHistory:   settings.MaxHistory,
		CreatedAt:    now,
		lastActivity: now,
		turn:         make(chan struct{}, 1),
	}

	if settings.SystemPrompt != "" {
		s.messages = append(s.messages, Message{
			ID:        uuid.NewString(),
			Role:      ai.RoleSystem,
			Content:   settings.SystemPrompt,
			CreatedAt: now,
		})
	}

	return s
}

// AddMessage validates the role, appends a new message with a fresh id and
// timestamp, refreshes activity, and trims the history. It returns the
// appended message.
func (s *Session) AddMessage(role ai.MessageRole, content string, tokens int) (Message, error) {
	if !role.Valid() {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	now := time.Now()
	message := Message{
		ID:         uuid.NewString(),
		Role:       role,
		Content:    content,
		TokensUsed: tokens,
		CreatedAt:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, message)
	s.lastActivity = now
	s.trimLocked()

	return message, nil
}

// trimLocked enforces the history bound: every system message is kept, and
// only the most recent MaxHistory non-system messages survive. Callers must
// hold s.mu.
func (s *Session) trimLocked() {
	if s.MaxHistory <= 0 || len(s.messages) <= s.MaxHistory {
		return
	}

	nonSystem := 0
	for _, message := range s.messages {
		if message.Role != ai.RoleSystem {
			nonSystem++
		}
	}
	if nonSystem <= s.MaxHistory {
		return
	}

	evict := nonSystem - s.MaxHistory
	kept := make([]Message, 0, len(s.messages)-evict)
	for _, message := range s.messages {
		if message.Role != ai.RoleSystem && evict > 0 {
			evict--
			continue
		}
		kept = append(kept, message)
	}
	s.messages = kept
}

// Messages returns a copy of the current history.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// MessagesForProvider converts the history into the provider wire model,
// stripping ids, timestamps, and token counts.
func (s *Session) MessagesForProvider() []ai.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ai.Message, 0, len(s.messages))
	for _, message := range s.messages {
		out = append(out, ai.Message{Role: message.Role, Content: message.Content})
	}
	return out
}

// MessageCount returns the current history length.
func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// TotalTokens sums the known token counts across the retained history.
func (s *Session) TotalTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, message := range s.messages {
		total += message.TokensUsed
	}
	return total
}

// LastActivity returns the time of the most recent session use.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Touch refreshes the activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// ApplySettings applies a partial settings update. Temperature must stay
// within [0, 2].
func (s *Session) ApplySettings(update SettingsUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if update.SystemPrompt != nil {
		s.SystemPrompt = *update.SystemPrompt
	}
	if update.Model != nil {
		s.Model = *update.Model
	}
	if update.Temperature != nil {
		s.Temperature = *update.Temperature
	}
	if update.MaxTokens != nil {
		s.MaxTokens = *update.MaxTokens
	}
	if update.MaxHistory != nil {
		s.MaxHistory = *update.MaxHistory
		s.trimLocked()
	}
	s.lastActivity = time.Now()

	return nil
}

// Settings returns a consistent snapshot of the generation settings.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Settings{
		Model:        s.Model,
		Temperature:  s.Temperature,
		MaxTokens:    s.MaxTokens,
		SystemPrompt: s.SystemPrompt,
		MaxHistory:   s.MaxHistory,
	}
}

// AcquireTurn blocks until the session's turn lock is free or ctx is done.
// Exchanges against the same session are serialized by holding the lock for
// the full provider round trip.
func (s *Session) AcquireTurn(ctx context.Context) error {
	select {
	case s.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReleaseTurn releases the turn lock taken by AcquireTurn.
func (s *Session) ReleaseTurn() {
	select {
	case <-s.turn:
	default:
	}
}
