package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/care-assistant/internal/api"
	"github.com/ashureev/care-assistant/internal/domain"
	"github.com/ashureev/care-assistant/internal/identity"
	"github.com/ashureev/care-assistant/internal/session"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// SessionView is the body of GET /api/sessions/{id}.
type SessionView struct {
	SessionID string              `json:"session_id"`
	State     StateSummary        `json:"state"`
	Messages  []domain.Message    `json:"messages"`
	Trace     []domain.TraceEntry `json:"trace"`
}

// Handler exposes the conversation service over HTTP.
type Handler struct {
	agent          *Service
	rateLimiter    *RateLimiter
	maxBody        int64
	allowedOrigins []string
}

// NewHandler creates a handler around svc. limiter may be nil to disable
// throttling. allowedOrigins gates cross-origin websocket upgrades; "*"
// admits any origin.
func NewHandler(svc *Service, limiter *RateLimiter, maxBody int64, allowedOrigins []string) *Handler {
	if maxBody <= 0 {
		maxBody = defaultMaxRequestBodySize
	}
	if limiter == nil {
		limiter = NewRateLimiter(0, 0)
	}
	return &Handler{
		agent:          svc,
		rateLimiter:    limiter,
		maxBody:        maxBody,
		allowedOrigins: allowedOrigins,
	}
}

// RegisterRoutes registers the chat, session and graph routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Get("/graph", h.HandleGraph)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetSession)
			r.Delete("/", h.HandleDeleteSession)
			r.Get("/history", h.HandleHistory)
		})
	})
	r.Get("/ws/chat", h.HandleWebSocket)
}

// Close stops background work owned by the handler.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
}

// HandleChat handles POST /api/chat requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if !h.rateLimiter.Allow(identity.ClientKeyFromContext(r.Context())) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := identity.SanitizeSessionID(req.SessionID)
	if sessionID == "" {
		sessionID = identity.SessionIDFromContext(r.Context())
	}

	slog.Info("Chat request",
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"session_id", sessionID,
		"message_length", len(req.Message),
	)

	result, err := h.agent.HandleTurn(r.Context(), sessionID, req.Message)
	if err != nil {
		writeTurnError(w, err)
		return
	}

	w.Header().Set(identity.SessionHeaderName, result.SessionID)
	api.JSON(w, http.StatusOK, result)
}

func writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		api.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		api.Error(w, http.StatusGatewayTimeout, "turn timed out")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		slog.Debug("Chat request cancelled by client")
	default:
		slog.Error("Chat turn failed", "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to process message")
	}
}

// HandleGetSession handles GET /api/sessions/{id}.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := h.agent.Session(id)
	if errors.Is(err, session.ErrNotFound) {
		api.Error(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		api.Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	api.JSON(w, http.StatusOK, SessionView{
		SessionID: id,
		State:     Summarize(state),
		Messages:  state.Messages,
		Trace:     state.ExecutionLog,
	})
}

// HandleDeleteSession handles DELETE /api/sessions/{id}.
func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existed, err := h.agent.EndSession(r.Context(), id)
	if err != nil {
		slog.Error("Failed to end session", "session_id", id, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	if !existed {
		api.Error(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHistory handles GET /api/sessions/{id}/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	turns, err := h.agent.History(r.Context(), id)
	if err != nil {
		slog.Error("Failed to load history", "session_id", id, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if turns == nil {
		turns = []*domain.TurnRecord{}
	}
	api.JSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"turns":      turns,
	})
}

// HandleGraph handles GET /api/graph.
func (h *Handler) HandleGraph(w http.ResponseWriter, _ *http.Request) {
	api.JSON(w, http.StatusOK, map[string]string{
		"format":  "mermaid",
		"diagram": Mermaid(),
	})
}
