// Package server exposes the orchestration driver over HTTP. The turn
// endpoint streams the combined prose/marker sequence as chunked plain text;
// request problems detected before streaming begins are answered with a
// normal JSON error body instead.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/launchforge/launchforge/errs"
	"github.com/launchforge/launchforge/message"
	"github.com/launchforge/launchforge/orchestrator"
	"github.com/launchforge/launchforge/pkg/logging"
)

// Server handles the HTTP API.
type Server struct {
	driver *orchestrator.Driver
	log    *slog.Logger
}

// New builds a Server over the given driver.
func New(driver *orchestrator.Driver) *Server {
	return &Server{
		driver: driver,
		log:    logging.WithComponent("server"),
	}
}

// Handler returns the routed, trace-instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/turn", s.handleTurn)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return otelhttp.NewHandler(mux, "launchforge")
}

// turnRequest is the JSON body of POST /api/v1/turn.
type turnRequest struct {
	ProjectID      string          `json:"project_id"`
	ConversationID string          `json:"conversation_id"`
	Message        string          `json:"message"`
	History        []historyMessage `json:"history,omitempty"`
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var body turnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req := &orchestrator.TurnRequest{
		ProjectID:      body.ProjectID,
		ConversationID: body.ConversationID,
		Message:        body.Message,
	}
	for _, h := range body.History {
		req.History = append(req.History, message.New(message.Role(h.Role), h.Content))
	}

	out, err := s.driver.Turn(r.Context(), req)
	if err != nil {
		if errors.Is(err, errs.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("turn setup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start turn")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	for chunk := range out {
		if _, err := w.Write([]byte(chunk)); err != nil {
			// Client went away; the request context cancellation unwinds
			// the turn, so just drain.
			s.log.Debug("client write failed", "error", err)
			for range out {
			}
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
