package domain

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageKind tags assistant messages that later steps need to recognise.
type MessageKind string

const (
	// KindNameRequest marks an assistant message that asks the user for their name.
	KindNameRequest MessageKind = "name_request"
)

// Message is a role-tagged piece of conversation text. Messages are never
// mutated after they are appended to a conversation.
type Message struct {
	Role    Role        `json:"role"`
	Content string      `json:"content"`
	Kind    MessageKind `json:"kind,omitempty"`
}

// UserMessage returns a message authored by the user.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns a message authored by the assistant.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
