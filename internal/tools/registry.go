// Package tools implements the lookup operations the assistant can run
// against the member dataset.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/care-assistant/internal/domain"
)

// Tool names.
const (
	CoverageLookup = "coverage_lookup"
	BenefitVerify  = "benefit_verify"
	ClaimsStatus   = "claims_status"
)

// DefaultServiceType is used for benefit_verify when no service is given.
// The selector path never extracts a service from the question, so this
// generic value is what the assistant sends.
const DefaultServiceType = "general medical"

// ErrUnknownTool is returned when invoking a name that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Dataset is the read-only data the tools query.
type Dataset interface {
	UserByID(userID string) (*domain.UserProfile, bool)
	UserWithPlan(userID string) (*domain.UserWithPlan, bool)
	ClaimsForUser(userID string) []domain.Claim
}

// Spec describes a registered tool.
type Spec struct {
	Name        string
	Description string
	Progress    string
}

// Args are the structured arguments a tool call carries.
type Args struct {
	UserID       string
	Query        string
	ServiceType  string
	StatusFilter string
}

var specs = []Spec{
	{
		Name:        CoverageLookup,
		Description: "Get insurance plan details, deductibles, coverage limits, member since date",
		Progress:    "Let me check your coverage details...",
	},
	{
		Name:        BenefitVerify,
		Description: "Check if specific medical services are covered (e.g., physical therapy, surgery, prescriptions)",
		Progress:    "Now let me verify what benefits are covered...",
	},
	{
		Name:        ClaimsStatus,
		Description: "View claims history, pending claims, approved/denied claims",
		Progress:    "Let me look up your claims history...",
	},
}

// Registry dispatches tool calls by name.
type Registry struct {
	data Dataset
}

// NewRegistry creates a registry over the given dataset.
func NewRegistry(data Dataset) *Registry {
	return &Registry{data: data}
}

// Specs returns the registered tools in a stable order.
func (r *Registry) Specs() []Spec {
	return append([]Spec(nil), specs...)
}

// Names returns the registered tool names in a stable order.
func (r *Registry) Names() []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

// Lookup returns the spec for name.
func (r *Registry) Lookup(name string) (Spec, bool) {
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// Invoke runs the named tool. Missing members or services are reported as
// error-status results; only unknown tool names and cancellation are errors.
func (r *Registry) Invoke(ctx context.Context, name string, args Args) (domain.ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch name {
	case CoverageLookup:
		return r.Coverage(args.UserID, args.Query), nil
	case BenefitVerify:
		service := args.ServiceType
		if service == "" {
			service = DefaultServiceType
		}
		return r.Benefit(args.UserID, service), nil
	case ClaimsStatus:
		filter := args.StatusFilter
		if filter == "" {
			filter = "all"
		}
		return r.Claims(args.UserID, filter), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

func userNotFound(userID string) domain.Outcome {
	return domain.Outcome{
		Status:  domain.ToolError,
		Message: fmt.Sprintf("User %s not found in system", userID),
	}
}
