// Package console implements the interactive terminal chat.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ashureev/care-assistant/internal/agent"
	"github.com/ashureev/care-assistant/internal/domain"
)

// Turner processes turns and exposes session state.
type Turner interface {
	HandleTurn(ctx context.Context, sessionID, text string, opts ...agent.TurnOption) (*agent.TurnResult, error)
	Session(id string) (*domain.ConversationState, error)
	EndSession(ctx context.Context, id string) (bool, error)
}

// LineReader yields one line of user input. io.EOF ends the session.
type LineReader interface {
	ReadLine() (string, error)
}

// Console is a read-eval-print loop over a Turner.
type Console struct {
	turns     Turner
	in        LineReader
	out       io.Writer
	render    func(string) string
	sessionID string
	last      *agent.TurnResult
}

// Option configures a Console.
type Option func(*Console)

// WithRenderer sets how assistant replies are rendered.
func WithRenderer(render func(string) string) Option {
	return func(c *Console) { c.render = render }
}

// New creates a console reading from in and writing to out.
func New(turns Turner, in LineReader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		turns:  turns,
		in:     in,
		out:    out,
		render: func(s string) string { return s + "\n" },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const helpText = `Commands:
  trace       show the execution log of the last turn
  trace full  show the whole execution log
  state       show the conversation state
  clear       start a new conversation
  quit        exit
`

// Run reads lines until EOF, quit or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, "❤️ CARE Assistant. Type 'help' for commands.")
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := c.in.ReadLine()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		case "help":
			fmt.Fprint(c.out, helpText)
		case "trace":
			c.printTrace(false)
		case "trace full":
			c.printTrace(true)
		case "state":
			c.printState()
		case "clear":
			c.clear(ctx)
		default:
			if err := c.turn(ctx, line); err != nil {
				return err
			}
		}
	}
}

func (c *Console) turn(ctx context.Context, text string) error {
	res, err := c.turns.HandleTurn(ctx, c.sessionID, text, agent.WithProgress(func(msg string) {
		fmt.Fprintf(c.out, "⏳ %s\n", msg)
	}))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return nil
	}
	c.sessionID = res.SessionID
	c.last = res
	fmt.Fprint(c.out, c.render(res.Reply))
	return nil
}

func (c *Console) clear(ctx context.Context) {
	if c.sessionID != "" {
		if _, err := c.turns.EndSession(ctx, c.sessionID); err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
	}
	c.sessionID = ""
	c.last = nil
	fmt.Fprintln(c.out, "Conversation cleared.")
}

func (c *Console) printTrace(full bool) {
	if c.last == nil {
		fmt.Fprintln(c.out, "No turns yet.")
		return
	}
	entries := c.last.TurnTrace()
	if full {
		state, err := c.turns.Session(c.sessionID)
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			return
		}
		entries = state.ExecutionLog
	}
	for _, e := range entries {
		fmt.Fprintf(c.out, "[%s] %s: %s", e.Timestamp.Format("15:04:05"), e.Step, e.Action)
		if len(e.Details) > 0 {
			if raw, err := json.Marshal(e.Details); err == nil {
				fmt.Fprintf(c.out, " %s", raw)
			}
		}
		fmt.Fprintln(c.out)
	}
}

func (c *Console) printState() {
	if c.sessionID == "" {
		fmt.Fprintln(c.out, "No conversation yet.")
		return
	}
	state, err := c.turns.Session(c.sessionID)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	raw, err := json.MarshalIndent(agent.Summarize(state), "", "  ")
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "%s\n", raw)
}
