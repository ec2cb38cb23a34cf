package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/ashureev/care-assistant/internal/identity"
)

// wsEvent is a server-to-client frame on /ws/chat.
type wsEvent struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Result  *TurnResult `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
	Session string      `json:"session_id,omitempty"`
}

// HandleWebSocket handles GET /ws/chat. Each text frame is one turn; progress
// hints are pushed before the final reply. A client that goes away abandons
// the turn in flight.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("WebSocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("WebSocket close failed", "error", closeErr)
		}
	}()

	client := identity.ClientKeyFromContext(ctx)
	sessionID := identity.SessionIDFromContext(ctx)
	var writeMu sync.Mutex
	send := func(ev wsEvent) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return writeJSON(ctx, ws, ev)
	}

	frames := make(chan []byte)
	go readFrames(ctx, cancel, ws, frames, client)

	for data := range frames {
		var req ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			req.Message = string(data)
		}
		if sid := identity.SanitizeSessionID(req.SessionID); sid != "" {
			sessionID = sid
		}

		if !h.rateLimiter.Allow(client) {
			if err := send(wsEvent{Type: "error", Error: "rate limit exceeded", Session: sessionID}); err != nil {
				return
			}
			continue
		}

		result, err := h.agent.HandleTurn(ctx, sessionID, req.Message, WithProgress(func(msg string) {
			if err := send(wsEvent{Type: "progress", Message: msg}); err != nil {
				slog.Debug("WebSocket progress write failed", "error", err)
			}
		}))
		if err != nil {
			if ctx.Err() != nil {
				slog.Debug("WebSocket turn abandoned", "session_id", sessionID, "error", err)
				return
			}
			if err := send(wsEvent{Type: "error", Error: err.Error(), Session: sessionID}); err != nil {
				return
			}
			continue
		}
		sessionID = result.SessionID
		if err := send(wsEvent{Type: "message", Result: result, Session: sessionID}); err != nil {
			slog.Warn("WebSocket write failed", "error", err, "session_id", sessionID)
			return
		}
	}
}

// readFrames feeds incoming frames to frames until the connection fails, then
// cancels the connection context so a running turn is abandoned.
func readFrames(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, frames chan<- []byte, client string) {
	defer close(frames)
	defer cancel()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "client", client)
			} else if !errors.Is(err, context.Canceled) {
				slog.Warn("WebSocket read error", "error", err, "client", client)
			}
			return
		}
		select {
		case frames <- data:
		case <-ctx.Done():
			return
		}
	}
}

// checkOrigin accepts requests without an Origin header, same-host pages and
// the configured origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
