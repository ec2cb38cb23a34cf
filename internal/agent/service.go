package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/care-assistant/internal/domain"
	"github.com/ashureev/care-assistant/internal/session"
)

var (
	// ErrEmptyMessage is returned when a turn carries no text.
	ErrEmptyMessage = errors.New("message is required")

	errEmptyReply = errors.New("model returned an empty reply")
)

const archiveTimeout = 5 * time.Second

// SessionStore is the per-session state the service reads and writes.
type SessionStore interface {
	Create() string
	Get(id string) (*domain.ConversationState, error)
	Update(id string, state *domain.ConversationState) error
	Delete(id string) bool
	Acquire(ctx context.Context, id string) (func(), error)
}

// Archive records completed turns outside process memory.
type Archive interface {
	RecordTurn(ctx context.Context, turn *domain.TurnRecord) error
	ListTurns(ctx context.Context, sessionID string) ([]*domain.TurnRecord, error)
	DeleteSession(ctx context.Context, sessionID string) (int64, error)
}

// StateSummary is the caller-facing view of a conversation.
type StateSummary struct {
	UserID        string                       `json:"user_id,omitempty"`
	UserProfile   *domain.UserProfile          `json:"user_profile,omitempty"`
	ToolResults   map[string]domain.ToolResult `json:"tool_results,omitempty"`
	FirstGreeting bool                         `json:"first_greeting"`
	MessageCount  int                          `json:"message_count"`
}

// Summarize builds a StateSummary from s.
func Summarize(s *domain.ConversationState) StateSummary {
	return StateSummary{
		UserID:        s.UserID,
		UserProfile:   s.UserProfile,
		ToolResults:   s.ToolResults,
		FirstGreeting: s.FirstGreeting,
		MessageCount:  len(s.Messages),
	}
}

// TurnResult is returned for every processed turn.
type TurnResult struct {
	SessionID    string              `json:"session_id"`
	Reply        string              `json:"response"`
	ExecutionLog []domain.TraceEntry `json:"trace"`
	TurnLogStart int                 `json:"turn_log_start"`
	State        StateSummary        `json:"state"`
	Progress     []string            `json:"progress_messages"`
}

// TurnTrace returns only the log entries written during this turn.
func (r *TurnResult) TurnTrace() []domain.TraceEntry {
	if r.TurnLogStart > len(r.ExecutionLog) {
		return nil
	}
	return r.ExecutionLog[r.TurnLogStart:]
}

type turnOptions struct {
	onProgress func(string)
}

// TurnOption configures a single HandleTurn call.
type TurnOption func(*turnOptions)

// WithProgress streams progress hints to fn as tools are about to run.
func WithProgress(fn func(string)) TurnOption {
	return func(o *turnOptions) { o.onProgress = fn }
}

// Service is the turn-processing entry point.
type Service struct {
	engine      *Engine
	sessions    SessionStore
	archive     Archive
	turnTimeout time.Duration
}

// NewService wires an engine to a session store. archive may be nil.
func NewService(engine *Engine, sessions SessionStore, archive Archive, turnTimeout time.Duration) *Service {
	return &Service{
		engine:      engine,
		sessions:    sessions,
		archive:     archive,
		turnTimeout: turnTimeout,
	}
}

// HandleTurn processes one user message. An empty or unknown sessionID
// starts a new session. State is persisted only when the whole turn
// completes; a cancelled turn leaves the stored session untouched.
func (s *Service) HandleTurn(ctx context.Context, sessionID, text string, opts ...TurnOption) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	var o turnOptions
	for _, opt := range opts {
		opt(&o)
	}

	id, release, err := s.begin(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	state, err := s.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	notFirst := false
	domain.Update{
		Messages:      []domain.Message{domain.UserMessage(text)},
		FirstGreeting: &notFirst,
	}.Apply(state)
	turnStart := len(state.ExecutionLog)

	if s.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, s.turnTimeout, errTurnTimeout)
		defer cancel()
	}

	run, err := s.engine.Run(ctx, state, o.onProgress)
	if err != nil {
		slog.Warn("Turn abandoned", "session_id", id, "error", err)
		return nil, fmt.Errorf("turn abandoned: %w", err)
	}

	if err := s.sessions.Update(id, run.State); err != nil {
		// Deleted while the turn ran; the reply is still valid.
		slog.Warn("Session vanished before turn was saved", "session_id", id, "error", err)
	}

	reply := ""
	if m, ok := run.State.LastMessage(domain.RoleAssistant); ok {
		reply = m.Content
	}

	result := &TurnResult{
		SessionID:    id,
		Reply:        reply,
		ExecutionLog: run.State.ExecutionLog,
		TurnLogStart: turnStart,
		State:        Summarize(run.State),
		Progress:     run.Progress,
	}
	if result.Progress == nil {
		result.Progress = []string{}
	}

	s.record(ctx, result, text)
	return result, nil
}

func (s *Service) begin(ctx context.Context, sessionID string) (string, func(), error) {
	if sessionID != "" {
		release, err := s.sessions.Acquire(ctx, sessionID)
		if err == nil {
			return sessionID, release, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return "", nil, err
		}
		slog.Info("Unknown session, starting a new one", "session_id", sessionID)
	}

	id := s.sessions.Create()
	release, err := s.sessions.Acquire(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return id, release, nil
}

func (s *Service) record(ctx context.Context, r *TurnResult, userText string) {
	if s.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	var used []string
	for _, entry := range r.TurnTrace() {
		if tool, ok := entry.Details["tool"].(string); ok && entry.Action == "Tool completed" {
			used = append(used, tool)
		}
	}

	turn := &domain.TurnRecord{
		SessionID: r.SessionID,
		UserID:    r.State.UserID,
		UserText:  userText,
		Reply:     r.Reply,
		Tools:     used,
		Trace:     r.TurnTrace(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.archive.RecordTurn(ctx, turn); err != nil {
		slog.Warn("Failed to archive turn", "session_id", r.SessionID, "error", err)
	}
}

// Session returns a copy of the session's current state.
func (s *Service) Session(id string) (*domain.ConversationState, error) {
	return s.sessions.Get(id)
}

// EndSession removes the session and its archived turns.
func (s *Service) EndSession(ctx context.Context, id string) (bool, error) {
	existed := s.sessions.Delete(id)
	if s.archive != nil {
		n, err := s.archive.DeleteSession(ctx, id)
		if err != nil {
			return existed, fmt.Errorf("delete archived turns: %w", err)
		}
		existed = existed || n > 0
	}
	return existed, nil
}

// History returns archived turns for a session, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]*domain.TurnRecord, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.ListTurns(ctx, id)
}
