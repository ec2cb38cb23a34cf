package agent

import (
	"context"
	"log/slog"

	"github.com/ashureev/care-assistant/internal/domain"
)

// generate produces the assistant reply from the profile, tool results and
// conversation history. Model failures fall back to a fixed apology.
func (e *Engine) generate(ctx context.Context, s *domain.ConversationState, _ func(string)) (domain.Update, error) {
	messages := make([]domain.Message, 0, len(s.Messages)+1)
	messages = append(messages, domain.Message{
		Role:    domain.RoleSystem,
		Content: systemPrompt(s.UserProfile, s.ToolResults, e.toolbox.Names()),
	})
	messages = append(messages, s.Messages...)

	reply, err := e.model.Complete(ctx, messages)
	if err == nil && reply == "" {
		err = errEmptyReply
	}
	if err != nil {
		if abandoned(ctx) {
			return domain.Update{}, ctx.Err()
		}
		slog.Error("Response generation failed", "user_id", s.UserID, "error", err)
		return domain.Update{
			Messages: []domain.Message{domain.AssistantMessage(fallbackText)},
			Trace: []domain.TraceEntry{e.trace(StepGenerate, "Generation failed, sent fallback", map[string]any{
				"error": err.Error(),
			})},
		}, nil
	}

	return domain.Update{
		Messages: []domain.Message{domain.AssistantMessage(reply)},
		Trace: []domain.TraceEntry{e.trace(StepGenerate, "Generated response", map[string]any{
			"tool_results": len(s.ToolResults),
			"length":       len(reply),
		})},
	}, nil
}
