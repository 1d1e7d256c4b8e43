package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/okalas/relay/core/chat"
	"github.com/okalas/relay/core/session"
	"github.com/okalas/relay/providers/observability"
)

// wsInbound is a client frame on the chat socket.
type wsInbound struct {
	Message string `json:"message"`
	Model   string `json:"model,omitempty"`
}

// wsFrame is a server frame: a typing notice, a content chunk, or the
// completed response. Errors use the bare {"error": ...} shape.
type wsFrame struct {
	Type         string `json:"type,omitempty"`
	Chunk        string `json:"chunk,omitempty"`
	FullResponse string `json:"full_response,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// handleWebSocket runs the bidirectional chat channel for one session. Each
// inbound message triggers a streamed exchange; frames go out in the order
// typing → chunk* → complete. The session lives across messages until the
// client disconnects.
func (s *Server) handleWebSocket(writer http.ResponseWriter, request *http.Request) {
	sessionID := request.PathValue("session_id")

	conn, err := s.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		if s.observer != nil {
			s.observer.Warn("websocket upgrade failed", observability.Error(err))
		}
		return
	}
	defer conn.Close()

	// Bind the socket to its session up front so the first exchange does not
	// pay the creation cost.
	sess := s.store.GetOrCreate(sessionID, "")
	sessionID = sess.ID

	for {
		var inbound wsInbound
		if err := conn.ReadJSON(&inbound); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && s.observer != nil {
				s.observer.Debug("websocket read ended",
					observability.String(observability.AttrSessionID, sessionID),
					observability.Error(err))
			}
			return
		}

		if inbound.Message == "" {
			if writeErr := conn.WriteJSON(wsFrame{Error: "message is required"}); writeErr != nil {
				return
			}
			continue
		}

		if !s.runSocketExchange(conn, request, sessionID, inbound) {
			return
		}
	}
}

// runSocketExchange streams one exchange to the socket. It reports false when
// the connection is no longer writable.
func (s *Server) runSocketExchange(conn *websocket.Conn, request *http.Request, sessionID string, inbound wsInbound) bool {
	opts := chat.SendOptions{SessionID: sessionID, Message: inbound.Message}
	if inbound.Model != "" {
		model := inbound.Model
		opts.Overrides = &session.SettingsUpdate{Model: &model}
	}

	if err := conn.WriteJSON(wsFrame{Type: "typing"}); err != nil {
		return false
	}

	exchange, err := s.orchestrator.Stream(request.Context(), opts)
	if err != nil {
		return conn.WriteJSON(wsFrame{Error: err.Error()}) == nil
	}
	defer exchange.Close()

	writable := true
	exchange.Events(func(chunk string, err error) bool {
		if err != nil {
			writable = conn.WriteJSON(wsFrame{Error: err.Error()}) == nil
			return false
		}
		if writeErr := conn.WriteJSON(wsFrame{Type: "chunk", Chunk: chunk}); writeErr != nil {
			writable = false
			return false
		}
		return true
	})

	if !writable {
		return false
	}

	if exchange.Result != nil {
		if err := conn.WriteJSON(wsFrame{
			Type:         "complete",
			FullResponse: exchange.Result.Text,
			SessionID:    exchange.Result.SessionID,
		}); err != nil {
			return false
		}
	}
	return true
}
