package agent

import (
	"context"
	"log/slog"
	"maps"

	"github.com/ashureev/care-assistant/internal/domain"
	"github.com/ashureev/care-assistant/internal/tools"
)

// orchestrate asks the model which tools apply to the latest question and
// runs them in the order chosen.
func (e *Engine) orchestrate(ctx context.Context, s *domain.ConversationState, emit func(string)) (domain.Update, error) {
	question, ok := s.LastMessage(domain.RoleUser)
	if len(s.Messages) == 0 || !ok {
		return domain.Update{
			Trace: []domain.TraceEntry{e.trace(StepOrchestrate, "No question to route", nil)},
		}, nil
	}

	prompt := selectionPrompt(e.toolbox.Specs(), question.Content)
	answer, err := e.model.Complete(ctx, []domain.Message{domain.UserMessage(prompt)})
	if err != nil {
		if abandoned(ctx) {
			return domain.Update{}, ctx.Err()
		}
		slog.Warn("Tool selection failed", "error", err)
		return domain.Update{
			Trace: []domain.TraceEntry{e.trace(StepOrchestrate, "Tool selection failed, continuing without tools", map[string]any{
				"error": err.Error(),
			})},
		}, nil
	}

	selected := ParseToolSelection(answer, e.toolbox.Names())
	trace := []domain.TraceEntry{e.trace(StepOrchestrate, "Selected tools", map[string]any{
		"tools":     selected,
		"raw_reply": answer,
	})}
	if len(selected) == 0 {
		return domain.Update{Trace: trace}, nil
	}

	results := maps.Clone(s.ToolResults)
	if results == nil {
		results = make(map[string]domain.ToolResult, len(selected))
	}
	for _, name := range selected {
		if spec, ok := lookupSpec(e.toolbox.Specs(), name); ok {
			emit(spec.Progress)
		}

		res, err := e.toolbox.Invoke(ctx, name, tools.Args{
			UserID:      s.UserID,
			Query:       question.Content,
			ServiceType: tools.DefaultServiceType,
		})
		if err != nil {
			if abandoned(ctx) {
				return domain.Update{}, ctx.Err()
			}
			slog.Warn("Tool invocation failed", "tool", name, "error", err)
			trace = append(trace, e.trace(StepOrchestrate, "Tool failed", map[string]any{
				"tool":  name,
				"error": err.Error(),
			}))
			continue
		}

		results[name] = res
		trace = append(trace, e.trace(StepOrchestrate, "Tool completed", map[string]any{
			"tool":    name,
			"status":  string(res.ToolStatus()),
			"message": res.ToolMessage(),
		}))
	}

	return domain.Update{ToolResults: results, Trace: trace}, nil
}

func lookupSpec(specs []tools.Spec, name string) (tools.Spec, bool) {
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return tools.Spec{}, false
}
