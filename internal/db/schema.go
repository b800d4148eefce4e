package db

import (
	"context"
	"database/sql"
	"fmt"
)

// The statements are valid on both Postgres and SQLite. Timestamps are unix
// milliseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS todos (
		id TEXT PRIMARY KEY,
		fields TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_todos (
		user_id TEXT NOT NULL REFERENCES users(id),
		todo_id TEXT NOT NULL REFERENCES todos(id),
		position BIGINT NOT NULL,
		PRIMARY KEY (user_id, todo_id)
	)`,
	`DROP INDEX IF EXISTS idx_user_todos_position`,
	// Two creates racing for the same slot: the loser gets a unique
	// violation and retries.
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_user_todos_position ON user_todos (user_id, position)`,
	`CREATE TABLE IF NOT EXISTS activity_log (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		user_id TEXT NOT NULL,
		todo_id TEXT,
		occurred_at BIGINT NOT NULL
	)`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Truncate removes all rows. Only tests call it.
func Truncate(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"activity_log", "user_todos", "todos", "users"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}
