package agent

import (
	"context"

	"github.com/ashureev/care-assistant/internal/domain"
	"github.com/ashureev/care-assistant/internal/tools"
)

// Model is the language model capability the engine depends on.
type Model interface {
	// Complete returns a free-text reply to messages.
	Complete(ctx context.Context, messages []domain.Message) (string, error)
	// Extract fills out, a pointer to a struct, from prompt using structured output.
	Extract(ctx context.Context, prompt string, out any) error
}

// Directory resolves members by name.
type Directory interface {
	UserByName(name string) (*domain.UserProfile, bool)
}

// Toolbox lists and runs the lookup tools.
type Toolbox interface {
	Specs() []tools.Spec
	Names() []string
	Invoke(ctx context.Context, name string, args tools.Args) (domain.ToolResult, error)
}
