package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// User is a registered streamer. The table is the source of truth; any
// in-memory list is a derived cache refreshed from here.
type User struct {
	ID              string
	Login           string
	DisplayName     string
	ProfileImageURL string
}

// UpsertUser inserts or replaces a user keyed by id.
func UpsertUser(ctx context.Context, database *sql.DB, u User) error {
	if u.ID == "" {
		return fmt.Errorf("user id empty")
	}
	_, err := database.ExecContext(ctx, `INSERT INTO users (id, login, display_name, profile_image_url) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET login=excluded.login, display_name=excluded.display_name, profile_image_url=excluded.profile_image_url`,
		u.ID, u.Login, u.DisplayName, u.ProfileImageURL)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return nil
}

// ListUsers returns all registered users ordered by login.
func ListUsers(ctx context.Context, database *sql.DB) ([]User, error) {
	rows, err := database.QueryContext(ctx, `SELECT id, login, display_name, COALESCE(profile_image_url, '') FROM users ORDER BY login`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err))
		}
	}()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Login, &u.DisplayName, &u.ProfileImageURL); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteUser removes a user by id. Deleting an unknown id is not an error.
func DeleteUser(ctx context.Context, database *sql.DB, id string) error {
	if _, err := database.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}
