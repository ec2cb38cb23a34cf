package domain

import "time"

// TurnRecord is an archived, completed turn of a session.
type TurnRecord struct {
	SessionID string       `json:"session_id"`
	Seq       int64        `json:"seq"`
	UserID    string       `json:"user_id,omitempty"`
	UserText  string       `json:"user_text"`
	Reply     string       `json:"reply"`
	Tools     []string     `json:"tools"`
	Trace     []TraceEntry `json:"trace"`
	CreatedAt time.Time    `json:"created_at"`
}
