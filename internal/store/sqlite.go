package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/care-assistant/internal/domain"
	_ "modernc.org/sqlite"
)

const (
	maxRetries = 3
	baseDelay  = 100 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes writers so Seq assignment does not race
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS turns (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		user_id TEXT,
		user_text TEXT NOT NULL,
		reply TEXT NOT NULL,
		tools_json TEXT NOT NULL,
		trace_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// RecordTurn appends turn to its session and sets turn.Seq.
func (s *SQLiteStore) RecordTurn(ctx context.Context, turn *domain.TurnRecord) error {
	tools := turn.Tools
	if tools == nil {
		tools = []string{}
	}
	toolsJSON, err := json.Marshal(tools)
	if err != nil {
		return fmt.Errorf("encode tools: %w", err)
	}
	trace := turn.Trace
	if trace == nil {
		trace = []domain.TraceEntry{}
	}
	traceJSON, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return withRetry(ctx, "record turn", turn.SessionID, func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var seq int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?`, turn.SessionID,
		).Scan(&seq); err != nil {
			return fmt.Errorf("next seq: %w", err)
		}

		var userID interface{}
		if turn.UserID != "" {
			userID = turn.UserID
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO turns (session_id, seq, user_id, user_text, reply, tools_json, trace_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			turn.SessionID, seq, userID, turn.UserText, turn.Reply,
			string(toolsJSON), string(traceJSON), createdAt.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		turn.Seq = seq
		turn.CreatedAt = createdAt
		return nil
	})
}

// ListTurns returns a session's turns ordered by Seq.
func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID string) ([]*domain.TurnRecord, error) {
	query := `
		SELECT session_id, seq, user_id, user_text, reply, tools_json, trace_json, created_at
		FROM turns WHERE session_id = ? ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close turn rows", "error", closeErr)
		}
	}()

	var turns []*domain.TurnRecord
	for rows.Next() {
		var turn domain.TurnRecord
		var userID sql.NullString
		var toolsJSON, traceJSON string
		var createdAt int64

		if err := rows.Scan(
			&turn.SessionID, &turn.Seq, &userID, &turn.UserText, &turn.Reply,
			&toolsJSON, &traceJSON, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		if err := json.Unmarshal([]byte(toolsJSON), &turn.Tools); err != nil {
			return nil, fmt.Errorf("decode tools for %s/%d: %w", turn.SessionID, turn.Seq, err)
		}
		if err := json.Unmarshal([]byte(traceJSON), &turn.Trace); err != nil {
			return nil, fmt.Errorf("decode trace for %s/%d: %w", turn.SessionID, turn.Seq, err)
		}
		turn.UserID = userID.String
		turn.CreatedAt = time.Unix(0, createdAt).UTC()
		turns = append(turns, &turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

// DeleteSession removes every turn of a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := withRetry(ctx, "delete session", sessionID, func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		res, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, sessionID)
		if err != nil {
			return fmt.Errorf("delete turns: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// PruneBefore removes turns created before cutoff.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune turns: %w", err)
	}
	return res.RowsAffected()
}

// withRetry runs fn, retrying SQLite lock conflicts with exponential backoff.
func withRetry(ctx context.Context, op, sessionID string, fn func() error) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
		slog.Debug("SQLite busy, retrying",
			"op", op,
			"session_id", sessionID,
			"attempt", i+1,
			"delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s for %s: %w", op, sessionID, err)
}
