package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT    PRIMARY KEY,
		updated_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,

	`CREATE TABLE IF NOT EXISTS tool_calls (
		session_id    TEXT    NOT NULL,
		tool_call_id  TEXT    NOT NULL,
		tool_name     TEXT    NOT NULL DEFAULT '',
		called_at_ns  INTEGER NOT NULL,
		message_index INTEGER NOT NULL,
		pruned        INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (session_id, tool_call_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tool_calls_pruned ON tool_calls(pruned, called_at_ns)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(ctx context.Context, db *sql.DB) error {
	// Ensure schema_version table exists first.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
