package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ashureev/care-assistant/internal/domain"
)

type nameExtraction struct {
	Name       string `json:"name" description:"The person's name as written in the message, or an empty string if none"`
	Confidence string `json:"confidence" enum:"high,low" description:"high when a name is clearly present, otherwise low"`
}

func nameRequest(content string) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, Content: content, Kind: domain.KindNameRequest}
}

// identify resolves the member from the conversation or asks for a name.
func (e *Engine) identify(ctx context.Context, s *domain.ConversationState, _ func(string)) (domain.Update, error) {
	if s.Identified() {
		return domain.Update{
			Trace: []domain.TraceEntry{e.trace(StepIdentify, "User already identified", map[string]any{"user_id": s.UserID})},
		}, nil
	}

	if len(s.Messages) == 0 {
		return e.greet("No messages yet, sent greeting"), nil
	}
	last, ok := s.LastMessage(domain.RoleAssistant)
	if !ok || last.Kind != domain.KindNameRequest {
		return e.greet("Asked for the user's name"), nil
	}

	userMsg, ok := s.LastMessage(domain.RoleUser)
	if !ok || strings.TrimSpace(userMsg.Content) == "" {
		return e.reprompt("No user reply to extract a name from", nil), nil
	}

	var got nameExtraction
	if err := e.model.Extract(ctx, extractionPrompt(userMsg.Content), &got); err != nil {
		if abandoned(ctx) {
			return domain.Update{}, ctx.Err()
		}
		slog.Warn("Name extraction failed", "error", err)
		return e.reprompt("Name extraction failed", map[string]any{"error": err.Error()}), nil
	}

	name := strings.TrimSpace(got.Name)
	if name == "" || !strings.EqualFold(got.Confidence, "high") {
		return e.reprompt("Name not confidently extracted", map[string]any{
			"name":       name,
			"confidence": got.Confidence,
		}), nil
	}

	profile, ok := e.directory.UserByName(name)
	if !ok {
		return domain.Update{
			Messages: []domain.Message{nameRequest(notFoundText(name))},
			Trace: []domain.TraceEntry{e.trace(StepIdentify, "User not found", map[string]any{
				"extracted_name": name,
			})},
		}, nil
	}

	first := true
	return domain.Update{
		Messages:      []domain.Message{domain.AssistantMessage(welcomeText(profile))},
		UserID:        &profile.UserID,
		UserProfile:   profile,
		FirstGreeting: &first,
		Trace: []domain.TraceEntry{e.trace(StepIdentify, "User identified", map[string]any{
			"extracted_name": name,
			"user_id":        profile.UserID,
			"name":           profile.Name,
		})},
	}, nil
}

func (e *Engine) greet(action string) domain.Update {
	return domain.Update{
		Messages: []domain.Message{nameRequest(greetingText)},
		Trace:    []domain.TraceEntry{e.trace(StepIdentify, action, nil)},
	}
}

func (e *Engine) reprompt(action string, details map[string]any) domain.Update {
	return domain.Update{
		Messages: []domain.Message{nameRequest(repromptText)},
		Trace:    []domain.TraceEntry{e.trace(StepIdentify, action, details)},
	}
}
