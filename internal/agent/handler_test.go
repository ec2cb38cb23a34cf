package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/ashureev/care-assistant/internal/identity"
	"github.com/ashureev/care-assistant/internal/session"
)

func newTestRouter(t *testing.T, m *fakeModel, limiter *RateLimiter, maxBody int64) http.Handler {
	t.Helper()
	r, _ := newTestRouterWithOrigins(t, m, limiter, maxBody, nil)
	return r
}

func newTestRouterWithOrigins(t *testing.T, m *fakeModel, limiter *RateLimiter, maxBody int64, origins []string) (http.Handler, *session.Store) {
	t.Helper()
	svc, store := newTestService(t, m, &memArchive{})
	h := NewHandler(svc, limiter, maxBody, origins)
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	r.Use(identity.Middleware)
	h.RegisterRoutes(r)
	return r, store
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
}

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeTurn(t *testing.T, w *httptest.ResponseRecorder) TurnResult {
	t.Helper()
	var res TurnResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode turn: %v", err)
	}
	return res
}

func TestHandleChatStartsSession(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, &fakeModel{}, nil, 0)
	w := postChat(t, h, `{"message":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	sid := w.Header().Get(identity.SessionHeaderName)
	res := decodeTurn(t, w)
	if res.SessionID == "" || res.SessionID != sid {
		t.Fatalf("session header %q does not match body %q", sid, res.SessionID)
	}
	if res.Reply != greetingText {
		t.Fatalf("unexpected reply %q", res.Reply)
	}

	// Continue the same session through the header.
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"still there?"}`))
	req.Header.Set(identity.SessionHeaderName, sid)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := decodeTurn(t, w); got.SessionID != sid || got.State.MessageCount != 4 {
		t.Fatalf("session not continued: %+v", got)
	}
}

func TestHandleChatValidation(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, &fakeModel{}, nil, 64)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty message", `{"message":"  "}`, http.StatusBadRequest},
		{"malformed", `{"message":`, http.StatusBadRequest},
		{"too large", `{"message":"` + strings.Repeat("x", 200) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := postChat(t, h, tt.body); w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, &fakeModel{}, NewRateLimiter(1, time.Minute), 0)
	if w := postChat(t, h, `{"message":"hi"}`); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	if w := postChat(t, h, `{"message":"hi"}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestSessionEndpoints(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, &fakeModel{}, nil, 0)
	sid := decodeTurn(t, postChat(t, h, `{"message":"hello"}`)).SessionID

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sid, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get session: %d", w.Code)
	}
	var view SessionView
	if err := json.NewDecoder(w.Body).Decode(&view); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if len(view.Messages) != 2 || len(view.Trace) == 0 {
		t.Fatalf("unexpected session view: %+v", view)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sid+"/history", nil))
	var history struct {
		Turns []json.RawMessage `json:"turns"`
	}
	if err := json.NewDecoder(w.Body).Decode(&history); err != nil || len(history.Turns) != 1 {
		t.Fatalf("history: %v %d", err, len(history.Turns))
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+sid, nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", w.Code)
	}

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w = httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(method, "/api/sessions/"+sid, nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s after delete: %d", method, w.Code)
		}
	}
}

func TestHandleGraph(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, &fakeModel{}, nil, 0)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/graph", nil))

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["format"] != "mermaid" || !strings.HasPrefix(body["diagram"], "flowchart TD") {
		t.Fatalf("unexpected graph: %v", body)
	}
}

func readEvent(ctx context.Context, t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev wsEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

func TestWebSocketStreamsProgressThenReply(t *testing.T) {
	t.Parallel()

	m := &fakeModel{
		name:      nameExtraction{Name: "Michael", Confidence: "high"},
		selection: "claims_status",
		reply:     "You have no pending claims.",
	}
	srv := httptest.NewServer(newTestRouter(t, m, nil, 0))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	send := func(text string) {
		t.Helper()
		if err := conn.Write(ctx, websocket.MessageText, []byte(`{"message":"`+text+`"}`)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	send("hi")
	if ev := readEvent(ctx, t, conn); ev.Type != "message" || ev.Result.Reply != greetingText {
		t.Fatalf("unexpected greeting event: %+v", ev)
	}

	send("Michael")
	if ev := readEvent(ctx, t, conn); ev.Type != "message" || ev.Result.State.UserID != "user_002" {
		t.Fatalf("unexpected welcome event: %+v", ev)
	}

	send("Any claims?")
	if ev := readEvent(ctx, t, conn); ev.Type != "progress" || ev.Message != "Let me look up your claims history..." {
		t.Fatalf("expected progress first, got %+v", ev)
	}
	if ev := readEvent(ctx, t, conn); ev.Type != "message" || ev.Result.Reply != "You have no pending claims." {
		t.Fatalf("unexpected reply event: %+v", ev)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouterWithOrigins(t, &fakeModel{}, nil, 0, []string{"https://care.example"})
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, wsURL(srv), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://evil.example"}},
	})
	if err == nil {
		conn.Close(websocket.StatusNormalClosure, "")
		t.Fatal("expected dial from a foreign origin to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}

	conn, _, err = websocket.Dial(ctx, wsURL(srv), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://care.example"}},
	})
	if err != nil {
		t.Fatalf("dial from configured origin: %v", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func TestWebSocketDisconnectAbandonsTurn(t *testing.T) {
	t.Parallel()

	m := &fakeModel{
		name:      nameExtraction{Name: "Michael", Confidence: "high"},
		selection: "claims_status",
	}
	r, store := newTestRouterWithOrigins(t, m, nil, 0, nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	send := func(text string) {
		t.Helper()
		if err := conn.Write(ctx, websocket.MessageText, []byte(`{"message":"`+text+`"}`)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	send("hi")
	greeting := readEvent(ctx, t, conn)
	sessionID := greeting.Session
	if sessionID == "" {
		t.Fatalf("greeting carried no session id: %+v", greeting)
	}
	send("Michael")
	_ = readEvent(ctx, t, conn)
	before, err := store.Get(sessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	m.set(func(m *fakeModel) { m.blockGenerate = true })
	send("Any claims?")
	if ev := readEvent(ctx, t, conn); ev.Type != "progress" {
		t.Fatalf("expected progress, got %+v", ev)
	}
	conn.CloseNow()

	acquireCtx, acquireCancel := context.WithTimeout(ctx, 2*time.Second)
	defer acquireCancel()
	release, err := store.Acquire(acquireCtx, sessionID)
	if err != nil {
		t.Fatalf("turn still holds the session after disconnect: %v", err)
	}
	release()

	after, err := store.Get(sessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(after.Messages) != len(before.Messages) {
		t.Fatalf("abandoned turn was persisted: %d messages, want %d", len(after.Messages), len(before.Messages))
	}
}
