package llm

import "github.com/sashabaranov/go-openai/jsonschema"

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest contains the parameters for an LLM completion request.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens int
	// Temperature is sent as-is, zero included; nil leaves the provider default.
	Temperature *float64
	JSONMode    bool
	// Schema constrains the output to a JSON document when set.
	Schema     *jsonschema.Definition
	SchemaName string
}

// CompletionResponse contains the result of an LLM completion request.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}
