package chat

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// InsertComments bulk-appends canonical records for a video. The write is
// append-only: re-downloading the same video produces duplicate rows (known
// ambiguity in the source system, deliberately not resolved here).
// comment_time is stored as unix milliseconds so ordering is total across
// sub-second precisions.
func InsertComments(ctx context.Context, db *sql.DB, comments []Comment) error {
	if len(comments) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin comment insert: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO comments (video_id, streamer_id, user_id, user_color, comment_time, message) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare comment insert: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			slog.Warn("failed to close prepared statement", slog.Any("err", err))
		}
	}()
	for _, c := range comments {
		var color any
		if c.Color != "" {
			color = c.Color
		}
		if _, err := stmt.ExecContext(ctx, c.VideoID, c.StreamerID, c.UserID, color, c.CommentTime.UnixMilli(), c.Message); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert comment row: %w", err)
		}
	}
	return tx.Commit()
}

// GetComments returns a video's comments ordered by comment time ascending.
// The ordering is enforced by the query, never by the writer.
func GetComments(ctx context.Context, db *sql.DB, videoID string) ([]Comment, error) {
	rows, err := db.QueryContext(ctx, `SELECT video_id, streamer_id, user_id, COALESCE(user_color, ''), comment_time, message FROM comments WHERE video_id = ? ORDER BY comment_time ASC, id ASC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err))
		}
	}()

	var out []Comment
	for rows.Next() {
		var c Comment
		var ms int64
		if err := rows.Scan(&c.VideoID, &c.StreamerID, &c.UserID, &c.Color, &ms, &c.Message); err != nil {
			return nil, fmt.Errorf("scan comment row: %w", err)
		}
		c.CommentTime = time.UnixMilli(ms).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}
