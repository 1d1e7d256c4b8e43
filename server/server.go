// Package server exposes the chat service over HTTP: a JSON REST surface, an
// SSE streaming endpoint, and a WebSocket channel per session.
package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/okalas/relay/core/chat"
	"github.com/okalas/relay/core/session"
	"github.com/okalas/relay/providers/observability"
)

// Server holds the HTTP surface over the chat orchestrator.
type Server struct {
	orchestrator *chat.Orchestrator
	store        *session.Store
	registry     *chat.Registry
	observer     observability.Observer
	upgrader     websocket.Upgrader
}

// New wires a Server over the given components. observer may be nil.
func New(orchestrator *chat.Orchestrator, store *session.Store, registry *chat.Registry, observer observability.Observer) *Server {
	return &Server{
		orchestrator: orchestrator,
		store:        store,
		registry:     registry,
		observer:     observer,
		upgrader: websocket.Upgrader{
			// The REST surface is CORS-open; the socket follows suit.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the routed HTTP handler with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("POST /api/chat/session/create", s.handleSessionCreate)
	mux.HandleFunc("POST /api/chat/message", s.handleMessage)
	mux.HandleFunc("POST /api/chat/stream", s.handleStream)
	mux.HandleFunc("GET /api/chat/history/{session_id}", s.handleHistory)
	mux.HandleFunc("PUT /api/chat/session/{session_id}/settings", s.handleSettings)
	mux.HandleFunc("DELETE /api/chat/session/{session_id}", s.handleSessionDelete)
	mux.HandleFunc("GET /api/chat/models", s.handleModels)
	mux.HandleFunc("GET /api/chat/session/{session_id}/info", s.handleSessionInfo)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /ws/chat/{session_id}", s.handleWebSocket)

	return corsMiddleware(s.observeMiddleware(mux))
}

// observeMiddleware attaches the server's observer to every request context
// so downstream components can log without explicit plumbing.
func (s *Server) observeMiddleware(next http.Handler) http.Handler {
	if s.observer == nil {
		return next
	}
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		ctx := observability.ContextWithObserver(request.Context(), s.observer)
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}

// corsMiddleware applies a permissive CORS policy to every route.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Access-Control-Allow-Origin", "*")
		writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if request.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(writer, request)
	})
}
