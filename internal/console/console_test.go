package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/care-assistant/internal/agent"
	"github.com/ashureev/care-assistant/internal/domain"
)

type scriptedReader struct {
	lines []string
}

func (r *scriptedReader) ReadLine() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

// fakeTurner echoes input and keeps a single session.
type fakeTurner struct {
	state   *domain.ConversationState
	ended   []string
	created int
}

func (f *fakeTurner) HandleTurn(_ context.Context, sessionID, text string, opts ...agent.TurnOption) (*agent.TurnResult, error) {
	if sessionID == "" || f.state == nil {
		f.created++
		f.state = &domain.ConversationState{}
		sessionID = "session-" + string(rune('0'+f.created))
	}
	start := len(f.state.ExecutionLog)
	f.state.Messages = append(f.state.Messages, domain.UserMessage(text), domain.AssistantMessage("echo: "+text))
	f.state.ExecutionLog = append(f.state.ExecutionLog, domain.TraceEntry{
		Step:      "generate_response",
		Timestamp: time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
		Action:    "Generated response for " + text,
	})
	return &agent.TurnResult{
		SessionID:    sessionID,
		Reply:        "echo: " + text,
		ExecutionLog: f.state.ExecutionLog,
		TurnLogStart: start,
		State:        agent.Summarize(f.state),
	}, nil
}

func (f *fakeTurner) Session(string) (*domain.ConversationState, error) {
	return f.state, nil
}

func (f *fakeTurner) EndSession(_ context.Context, id string) (bool, error) {
	f.ended = append(f.ended, id)
	f.state = nil
	return true, nil
}

func run(t *testing.T, turner *fakeTurner, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	c := New(turner, &scriptedReader{lines: lines}, &out)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func TestConsoleChatAndTrace(t *testing.T) {
	out := run(t, &fakeTurner{}, "hello", "again", "trace", "trace full", "quit", "never read")

	if !strings.Contains(out, "echo: hello") || !strings.Contains(out, "echo: again") {
		t.Fatalf("replies missing:\n%s", out)
	}
	if strings.Count(out, "Generated response for again") != 2 {
		t.Fatalf("expected last turn in both traces:\n%s", out)
	}
	if strings.Count(out, "Generated response for hello") != 1 {
		t.Fatalf("expected first turn only in full trace:\n%s", out)
	}
	if strings.Contains(out, "never read") {
		t.Fatal("input after quit was processed")
	}
}

func TestConsoleStateAndClear(t *testing.T) {
	turner := &fakeTurner{}
	out := run(t, turner, "state", "hi", "state", "clear", "state")

	if strings.Count(out, "No conversation yet.") != 2 {
		t.Fatalf("expected empty state before and after clear:\n%s", out)
	}
	if !strings.Contains(out, `"message_count": 2`) {
		t.Fatalf("state not printed:\n%s", out)
	}
	if len(turner.ended) != 1 || turner.ended[0] != "session-1" {
		t.Fatalf("clear did not end the session: %v", turner.ended)
	}
}

func TestConsoleTraceBeforeAnyTurn(t *testing.T) {
	out := run(t, &fakeTurner{}, "trace")
	if !strings.Contains(out, "No turns yet.") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if !strings.HasSuffix(out, "Goodbye!\n") {
		t.Fatalf("EOF should say goodbye:\n%s", out)
	}
}

func TestConsoleRendersReplies(t *testing.T) {
	var out bytes.Buffer
	c := New(&fakeTurner{}, &scriptedReader{lines: []string{"hi"}}, &out,
		WithRenderer(func(s string) string { return "<<" + s + ">>\n" }))
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "<<echo: hi>>") {
		t.Fatalf("renderer not used:\n%s", out.String())
	}
}
