// Package store persists completed conversation turns.
package store

import (
	"context"
	"time"

	"github.com/ashureev/care-assistant/internal/domain"
)

// Repository defines the interface for archiving conversation turns.
type Repository interface {
	// RecordTurn appends a turn to its session, assigning the next Seq.
	RecordTurn(ctx context.Context, turn *domain.TurnRecord) error

	// ListTurns returns a session's turns ordered by Seq.
	ListTurns(ctx context.Context, sessionID string) ([]*domain.TurnRecord, error)

	// DeleteSession removes every turn of a session.
	DeleteSession(ctx context.Context, sessionID string) (int64, error)

	// PruneBefore removes turns created before cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
