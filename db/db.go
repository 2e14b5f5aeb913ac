// Package db provides the local SQLite connection and idempotent schema
// migration, plus data access helpers for registered users. Comment
// persistence lives with the pipeline in the chat package.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure-Go sqlite driver registered as 'sqlite'
)

// Open opens (or creates) the SQLite database at path. The connection pool
// is capped at one connection: SQLite is a single-writer store and this is
// a single-process app.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	database.SetMaxOpenConns(1)
	return database, nil
}

// Migrate applies idempotent schema changes for all required tables and
// indices.
func Migrate(ctx context.Context, database *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			login TEXT NOT NULL,
			display_name TEXT NOT NULL,
			profile_image_url TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			video_id TEXT NOT NULL,
			streamer_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			user_color TEXT,
			comment_time INTEGER NOT NULL,
			message TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_video_time ON comments(video_id, comment_time)`,
	}
	for _, s := range stmts {
		if _, err := database.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
