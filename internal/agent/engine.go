package agent

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/care-assistant/internal/domain"
)

// Phase is a state of the per-turn state machine.
type Phase int

const (
	PhaseIdentify Phase = iota
	PhaseOrchestrate
	PhaseGenerate
	PhaseDone
)

// Step names recorded in the execution log.
const (
	StepIdentify    = "identify_user"
	StepOrchestrate = "orchestrate_tools"
	StepGenerate    = "generate_response"
)

func (p Phase) String() string {
	switch p {
	case PhaseIdentify:
		return StepIdentify
	case PhaseOrchestrate:
		return StepOrchestrate
	case PhaseGenerate:
		return StepGenerate
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// next returns the phase that follows p once p's step has been applied.
func next(p Phase, s *domain.ConversationState) Phase {
	switch p {
	case PhaseIdentify:
		if s.FirstGreeting || !s.Identified() {
			return PhaseDone
		}
		return PhaseOrchestrate
	case PhaseOrchestrate:
		return PhaseGenerate
	default:
		return PhaseDone
	}
}

// stepFunc runs one step against the current state. Progress hints are
// reported through emit as they happen.
type stepFunc func(ctx context.Context, s *domain.ConversationState, emit func(string)) (domain.Update, error)

// Engine runs the Identify, Orchestrate-Tools and Generate-Response steps.
type Engine struct {
	model     Model
	directory Directory
	toolbox   Toolbox
	now       func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineClock overrides the time source used for trace timestamps.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine with its collaborators injected.
func NewEngine(model Model, directory Directory, toolbox Toolbox, opts ...EngineOption) *Engine {
	e := &Engine{
		model:     model,
		directory: directory,
		toolbox:   toolbox,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunResult is the outcome of one engine run.
type RunResult struct {
	State    *domain.ConversationState
	Progress []string
}

// errTurnTimeout is the cancellation cause of a turn that used up its own
// time budget. Steps degrade to their fallbacks instead of abandoning.
var errTurnTimeout = errors.New("turn timed out")

// abandoned reports whether the caller gave up on the turn.
func abandoned(ctx context.Context) bool {
	return ctx.Err() != nil && !errors.Is(context.Cause(ctx), errTurnTimeout)
}

// Run executes one turn against a copy of in. Only abandonment by the caller
// is returned as an error; model and tool failures, including running out of
// turn time, become log entries.
func (e *Engine) Run(ctx context.Context, in *domain.ConversationState, onProgress func(string)) (*RunResult, error) {
	state := in.Clone()
	res := &RunResult{State: state}
	emit := func(msg string) {
		res.Progress = append(res.Progress, msg)
		if onProgress != nil {
			onProgress(msg)
		}
	}

	for phase := PhaseIdentify; phase != PhaseDone; phase = next(phase, state) {
		if abandoned(ctx) {
			return nil, ctx.Err()
		}
		update, err := e.step(phase)(ctx, state, emit)
		if err != nil {
			return nil, err
		}
		update.Apply(state)
	}
	return res, nil
}

func (e *Engine) step(p Phase) stepFunc {
	switch p {
	case PhaseIdentify:
		return e.identify
	case PhaseOrchestrate:
		return e.orchestrate
	default:
		return e.generate
	}
}

func (e *Engine) trace(step, action string, details map[string]any) domain.TraceEntry {
	return domain.TraceEntry{
		Step:      step,
		Timestamp: e.now().UTC(),
		Action:    action,
		Details:   details,
	}
}
