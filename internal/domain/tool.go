package domain

// ToolStatus is the outcome tag carried by every tool result.
type ToolStatus string

const (
	ToolSuccess ToolStatus = "success"
	ToolError   ToolStatus = "error"
)

// ToolResult is the structured value a tool returns.
type ToolResult interface {
	ToolStatus() ToolStatus
	ToolMessage() string
}

// Outcome carries the status and message common to all tool results.
type Outcome struct {
	Status  ToolStatus `json:"status"`
	Message string     `json:"message"`
}

// ToolStatus implements ToolResult.
func (o Outcome) ToolStatus() ToolStatus { return o.Status }

// ToolMessage implements ToolResult.
func (o Outcome) ToolMessage() string { return o.Message }

// Failed reports whether the tool returned an error-status result.
func (o Outcome) Failed() bool { return o.Status == ToolError }
