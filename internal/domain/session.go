package domain

import "maps"

// ConversationState is the record threaded through every step of a turn.
type ConversationState struct {
	Messages      []Message             `json:"messages"`
	UserID        string                `json:"user_id,omitempty"`
	UserProfile   *UserProfile          `json:"user_profile,omitempty"`
	ToolResults   map[string]ToolResult `json:"tool_results,omitempty"`
	FirstGreeting bool                  `json:"first_greeting"`
	ExecutionLog  []TraceEntry          `json:"execution_log"`
}

// Identified reports whether the conversation has a resolved member.
func (s *ConversationState) Identified() bool {
	return s.UserID != ""
}

// LastMessage returns the most recent message with the given role.
func (s *ConversationState) LastMessage(role Role) (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == role {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// Clone returns a copy that shares no mutable containers with s.
// Profiles and tool results are treated as immutable values.
func (s *ConversationState) Clone() *ConversationState {
	c := &ConversationState{
		Messages:      append([]Message(nil), s.Messages...),
		UserID:        s.UserID,
		FirstGreeting: s.FirstGreeting,
		ExecutionLog:  append([]TraceEntry(nil), s.ExecutionLog...),
	}
	if s.UserProfile != nil {
		p := *s.UserProfile
		c.UserProfile = &p
	}
	if s.ToolResults != nil {
		c.ToolResults = maps.Clone(s.ToolResults)
	}
	return c
}

// Update is the partial state a step returns. Messages and Trace are
// appended to the state; every other non-nil field replaces the stored value.
type Update struct {
	Messages      []Message
	UserID        *string
	UserProfile   *UserProfile
	ToolResults   map[string]ToolResult
	FirstGreeting *bool
	Trace         []TraceEntry
}

// Apply merges u into s.
func (u Update) Apply(s *ConversationState) {
	s.Messages = append(s.Messages, u.Messages...)
	s.ExecutionLog = append(s.ExecutionLog, u.Trace...)

	// An identified conversation never loses its member.
	if u.UserID != nil && *u.UserID != "" {
		s.UserID = *u.UserID
	}
	if u.UserProfile != nil {
		p := *u.UserProfile
		s.UserProfile = &p
	}
	if u.ToolResults != nil {
		s.ToolResults = maps.Clone(u.ToolResults)
	}
	if u.FirstGreeting != nil {
		s.FirstGreeting = *u.FirstGreeting
	}
}
