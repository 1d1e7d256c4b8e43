package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okalas/relay/core/chat"
	"github.com/okalas/relay/core/session"
	"github.com/okalas/relay/providers/ai"
	"github.com/okalas/relay/providers/observability"
)

// envelope is the uniform non-streaming response shape.
type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// Extra fields are flattened into the response alongside the envelope.
	Extra map[string]any `json:"-"`
}

func (s *Server) writeJSON(writer http.ResponseWriter, status int, env envelope) {
	payload := map[string]any{"success": env.Success}
	if env.Message != "" {
		payload["message"] = env.Message
	}
	if env.Error != "" {
		payload["error"] = env.Error
	}
	if env.SessionID != "" {
		payload["session_id"] = env.SessionID
	}
	for key, value := range env.Extra {
		payload[key] = value
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(payload); err != nil && s.observer != nil {
		s.observer.Warn("failed to encode response", observability.Error(err))
	}
}

func (s *Server) writeError(writer http.ResponseWriter, status int, message, sessionID string) {
	s.writeJSON(writer, status, envelope{Success: false, Error: message, SessionID: sessionID})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var configErr *chat.ConfigurationError
	var providerErr *ai.ProviderError

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidRole), errors.Is(err, chat.ErrUnsupportedModel):
		return http.StatusBadRequest
	case errors.As(err, &configErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &providerErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
