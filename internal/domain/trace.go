package domain

import "time"

// TraceEntry is one line of a conversation's execution log.
type TraceEntry struct {
	Step      string         `json:"step"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
}
