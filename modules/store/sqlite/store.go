// Package sqlite persists tool-call tracking records per session so that
// TTL state survives between pruning passes run by separate processes. It
// uses modernc.org/sqlite (pure Go, no CGO) in WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/ctxprune/internal/cron"
	"github.com/flemzord/ctxprune/internal/ttl"
)

// Compile-time interface guard.
var _ cron.RecordStore = (*Store)(nil)

// ErrEmptySession is returned when an operation is given an empty session id.
var ErrEmptySession = errors.New("sqlite: session id is required")

// Store is a SQLite-backed store of ttl.ToolCall records keyed by session.
// It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Save replaces the stored records of sessionID with calls.
func (s *Store) Save(ctx context.Context, sessionID string, calls []ttl.ToolCall) error {
	if sessionID == "" {
		return ErrEmptySession
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tool_calls WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("sqlite: clear session %s: %w", sessionID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tool_calls
		(session_id, tool_call_id, tool_name, called_at_ns, message_index, pruned)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range calls {
		if _, err := stmt.ExecContext(ctx, sessionID, c.ID, c.ToolName, c.CalledAt.UnixNano(), c.MessageIndex, c.Pruned); err != nil {
			return fmt.Errorf("sqlite: insert tool call %s: %w", c.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO sessions (session_id) VALUES (?)
		ON CONFLICT(session_id) DO UPDATE SET updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')`, sessionID); err != nil {
		return fmt.Errorf("sqlite: touch session %s: %w", sessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit save: %w", err)
	}
	return nil
}

// Load returns the stored records of sessionID ordered by call time. An
// unknown session yields no records and no error.
func (s *Store) Load(ctx context.Context, sessionID string) ([]ttl.ToolCall, error) {
	if sessionID == "" {
		return nil, ErrEmptySession
	}

	rows, err := s.db.QueryContext(ctx, `SELECT tool_call_id, tool_name, called_at_ns, message_index, pruned
		FROM tool_calls WHERE session_id = ?
		ORDER BY called_at_ns, tool_call_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load session %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	var calls []ttl.ToolCall
	for rows.Next() {
		var (
			c  ttl.ToolCall
			ns int64
		)
		if err := rows.Scan(&c.ID, &c.ToolName, &ns, &c.MessageIndex, &c.Pruned); err != nil {
			return nil, fmt.Errorf("sqlite: scan tool call: %w", err)
		}
		c.CalledAt = time.Unix(0, ns).UTC()
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// DeletePruned removes pruned records whose call time is before olderThan,
// across all sessions, and reports how many were deleted.
func (s *Store) DeletePruned(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM tool_calls WHERE pruned = 1 AND called_at_ns < ?", olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete pruned: %w", err)
	}
	return res.RowsAffected()
}

// Sessions lists known session ids, most recently saved first.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT session_id FROM sessions ORDER BY updated_at DESC, session_id")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteSession removes a session and all of its records.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySession
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tool_calls WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("sqlite: delete tool calls: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("sqlite: delete session: %w", err)
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
