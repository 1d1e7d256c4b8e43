package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okalas/relay/core/chat"
	"github.com/okalas/relay/core/session"
	"github.com/okalas/relay/internal/attachment"
)

func (s *Server) handleHealth(writer http.ResponseWriter, request *http.Request) {
	s.writeJSON(writer, http.StatusOK, envelope{Success: true, Message: "relay is running"})
}

type createSessionRequest struct {
	UserID string `json:"user_id,omitempty"`
	session.SettingsUpdate
}

func (s *Server) handleSessionCreate(writer http.ResponseWriter, request *http.Request) {
	var body createSessionRequest
	if err := decodeJSON(request, &body); err != nil {
		s.writeError(writer, http.StatusBadRequest, err.Error(), "")
		return
	}

	sess, err := s.store.Create("", body.UserID, body.SettingsUpdate)
	if err != nil {
		s.writeError(writer, http.StatusBadRequest, err.Error(), "")
		return
	}
	s.writeJSON(writer, http.StatusOK, envelope{
		Success:   true,
		Message:   "session created",
		SessionID: sess.ID,
	})
}

type messageRequest struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Message   string `json:"message"`
	Model     string `json:"model,omitempty"`
}

// parseMessageRequest accepts either a JSON body or a multipart form with an
// optional file attachment. Attachments are extracted to text and folded into
// the message.
func (s *Server) parseMessageRequest(request *http.Request) (messageRequest, error) {
	contentType := request.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := request.ParseMultipartForm(attachment.MaxSize); err != nil {
			return messageRequest{}, fmt.Errorf("parsing multipart form: %w", err)
		}

		body := messageRequest{
			SessionID: request.FormValue("session_id"),
			UserID:    request.FormValue("user_id"),
			Message:   request.FormValue("message"),
			Model:     request.FormValue("model"),
		}

		file, header, err := request.FormFile("file")
		if err == nil {
			defer file.Close()
			extracted, extractErr := attachment.Extract(file, header.Filename, header.Header.Get("Content-Type"))
			if extractErr != nil {
				return messageRequest{}, extractErr
			}
			body.Message = attachment.Annotate(body.Message, header.Filename, extracted)
		} else if err != http.ErrMissingFile {
			return messageRequest{}, fmt.Errorf("reading attachment: %w", err)
		}

		return body, nil
	}

	var body messageRequest
	if err := decodeJSON(request, &body); err != nil {
		return messageRequest{}, err
	}
	return body, nil
}

func (body messageRequest) sendOptions() chat.SendOptions {
	opts := chat.SendOptions{
		SessionID: body.SessionID,
		UserID:    body.UserID,
		Message:   body.Message,
	}
	if body.Model != "" {
		model := body.Model
		opts.Overrides = &session.SettingsUpdate{Model: &model}
	}
	return opts
}

func (s *Server) handleMessage(writer http.ResponseWriter, request *http.Request) {
	body, err := s.parseMessageRequest(request)
	if err != nil {
		s.writeError(writer, http.StatusBadRequest, err.Error(), "")
		return
	}
	if body.Message == "" {
		s.writeError(writer, http.StatusBadRequest, "message is required", body.SessionID)
		return
	}

	result, err := s.orchestrator.Send(request.Context(), body.sendOptions())
	if err != nil {
		s.writeError(writer, statusFor(err), err.Error(), body.SessionID)
		return
	}

	s.writeJSON(writer, http.StatusOK, envelope{
		Success:   true,
		Message:   result.Text,
		SessionID: result.SessionID,
		Extra: map[string]any{
			"message_id":           result.MessageID,
			"tokens_used":          result.TokensUsed,
			"session_total_tokens": result.SessionTotalTokens,
		},
	})
}

func (s *Server) handleHistory(writer http.ResponseWriter, request *http.Request) {
	sessionID := request.PathValue("session_id")
	sess, ok := s.store.Get(sessionID)
	if !ok {
		s.writeError(writer, http.StatusNotFound, session.ErrSessionNotFound.Error(), sessionID)
		return
	}

	type historyMessage struct {
		ID         string    `json:"id"`
		Role       string    `json:"role"`
		Content    string    `json:"content"`
		TokensUsed int       `json:"tokens_used,omitempty"`
		CreatedAt  time.Time `json:"created_at"`
	}

	messages := sess.Messages()
	history := make([]historyMessage, 0, len(messages))
	for _, message := range messages {
		history = append(history, historyMessage{
			ID:         message.ID,
			Role:       string(message.Role),
			Content:    message.Content,
			TokensUsed: message.TokensUsed,
			CreatedAt:  message.CreatedAt,
		})
	}

	s.writeJSON(writer, http.StatusOK, envelope{
		Success:   true,
		SessionID: sessionID,
		Extra:     map[string]any{"messages": history},
	})
}

func (s *Server) handleSettings(writer http.ResponseWriter, request *http.Request) {
	sessionID := request.PathValue("session_id")
	sess, ok := s.store.Get(sessionID)
	if !ok {
		s.writeError(writer, http.StatusNotFound, session.ErrSessionNotFound.Error(), sessionID)
		return
	}

	var update session.SettingsUpdate
	if err := decodeJSON(request, &update); err != nil {
		s.writeError(writer, http.StatusBadRequest, err.Error(), sessionID)
		return
	}

	if err := sess.ApplySettings(update); err != nil {
		s.writeError(writer, http.StatusBadRequest, err.Error(), sessionID)
		return
	}

	s.writeJSON(writer, http.StatusOK, envelope{
		Success:   true,
		Message:   "settings updated",
		SessionID: sessionID,
	})
}

func (s *Server) handleSessionDelete(writer http.ResponseWriter, request *http.Request) {
	sessionID := request.PathValue("session_id")
	if !s.store.Delete(sessionID) {
		s.writeError(writer, http.StatusNotFound, session.ErrSessionNotFound.Error(), sessionID)
		return
	}
	s.writeJSON(writer, http.StatusOK, envelope{
		Success:   true,
		Message:   "session deleted",
		SessionID: sessionID,
	})
}

func (s *Server) handleModels(writer http.ResponseWriter, request *http.Request) {
	type providerInfo struct {
		ID           string   `json:"id"`
		Models       []string `json:"models"`
		DefaultModel string   `json:"default_model,omitempty"`
		Configured   bool     `json:"configured"`
	}

	var providers []providerInfo
	for _, registration := range s.registry.Registrations() {
		providers = append(providers, providerInfo{
			ID:           registration.ID,
			Models:       registration.Models,
			DefaultModel: registration.DefaultModel,
			Configured:   registration.Unconfigured == "",
		})
	}

	s.writeJSON(writer, http.StatusOK, envelope{
		Success: true,
		Extra: map[string]any{
			"models":    s.registry.Models(),
			"providers": providers,
		},
	})
}

func (s *Server) handleSessionInfo(writer http.ResponseWriter, request *http.Request) {
	sessionID := request.PathValue("session_id")
	sess, ok := s.store.Get(sessionID)
	if !ok {
		s.writeError(writer, http.StatusNotFound, session.ErrSessionNotFound.Error(), sessionID)
		return
	}

	settings := sess.Settings()
	s.writeJSON(writer, http.StatusOK, envelope{
		Success:   true,
		SessionID: sessionID,
		Extra: map[string]any{
			"user_id":       sess.UserID,
			"model":         settings.Model,
			"temperature":   settings.Temperature,
			"max_tokens":    settings.MaxTokens,
			"max_history":   settings.MaxHistory,
			"system_prompt": settings.SystemPrompt,
			"message_count": sess.MessageCount(),
			"total_tokens":  sess.TotalTokens(),
			"created_at":    sess.CreatedAt,
			"last_activity": sess.LastActivity(),
		},
	})
}

func (s *Server) handleStats(writer http.ResponseWriter, request *http.Request) {
	totalMessages := 0
	totalTokens := 0
	for _, sess := range s.store.All() {
		totalMessages += sess.MessageCount()
		totalTokens += sess.TotalTokens()
	}

	s.writeJSON(writer, http.StatusOK, envelope{
		Success: true,
		Extra: map[string]any{
			"active_sessions": s.store.Count(),
			"total_messages":  totalMessages,
			"total_tokens":    totalTokens,
			"models":          len(s.registry.Models()),
		},
	})
}

func decodeJSON(request *http.Request, target any) error {
	decoder := json.NewDecoder(request.Body)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
