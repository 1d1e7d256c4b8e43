package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okalas/relay/providers/observability"
)

// handleStream serves a chat exchange over SSE. Each text delta is framed as
// `data: {"chunk": ...}` and a clean finish is signalled with
// `data: {"done": true}`. A mid-stream failure emits `data: {"error": ...}`
// after the chunks already sent.
func (s *Server) handleStream(writer http.ResponseWriter, request *http.Request) {
	body, err := s.parseMessageRequest(request)
	if err != nil {
		s.writeError(writer, http.StatusBadRequest, err.Error(), "")
		return
	}
	if body.Message == "" {
		s.writeError(writer, http.StatusBadRequest, "message is required", body.SessionID)
		return
	}

	exchange, err := s.orchestrator.Stream(request.Context(), body.sendOptions())
	if err != nil {
		s.writeError(writer, statusFor(err), err.Error(), body.SessionID)
		return
	}
	defer exchange.Close()

	flusher, ok := writer.(http.Flusher)
	if !ok {
		s.writeError(writer, http.StatusInternalServerError, "streaming unsupported", exchange.SessionID)
		return
	}

	writer.Header().Set("Content-Type", "text/event-stream")
	writer.Header().Set("Cache-Control", "no-cache")
	writer.Header().Set("Connection", "keep-alive")
	writer.Header().Set("X-Session-ID", exchange.SessionID)
	writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	writeFrame := func(payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			if s.observer != nil {
				s.observer.Warn("failed to encode stream frame", observability.Error(err))
			}
			return
		}
		fmt.Fprintf(writer, "data: %s\n\n", data)
		flusher.Flush()
	}

	failed := false
	exchange.Events(func(chunk string, err error) bool {
		if err != nil {
			failed = true
			writeFrame(map[string]any{"error": err.Error()})
			return false
		}
		writeFrame(map[string]any{"chunk": chunk})
		return true
	})

	if !failed {
		done := map[string]any{"done": true, "session_id": exchange.SessionID}
		if exchange.Result != nil {
			done["tokens_used"] = exchange.Result.TokensUsed
		}
		writeFrame(done)
	}
}
