package chat

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// ReadScrapedCSV parses a scraper output file into canonical comments.
// Malformed rows are skipped and counted, not fatal; the skipped count comes
// back alongside the parsed records. A leading header row is tolerated.
func ReadScrapedCSV(path string, videoStart time.Time, videoID, streamerID string) ([]Comment, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open scraped csv: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close scraped csv", slog.Any("err", err))
		}
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // row length validated during normalization
	rows, err := r.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("parse scraped csv: %w", err)
	}

	var comments []Comment
	skipped := 0
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == "time" {
			continue // header
		}
		c, err := CommentFromScrapedRow(row, videoStart, videoID, streamerID)
		if err != nil {
			skipped++
			slog.Warn("skipping malformed scraped row", slog.Int("row", i+1), slog.Any("err", err))
			continue
		}
		comments = append(comments, c)
	}
	return comments, skipped, nil
}

// WriteCSV exports API-sourced comments in the same file format the desktop
// app keeps for scraped downloads: timestamp, username, message, user_color.
func WriteCSV(path string, comments []Comment) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create comments csv: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "username", "message", "user_color"}); err != nil {
		_ = f.Close()
		return err
	}
	for _, c := range comments {
		rec := []string{c.CommentTime.UTC().Format(time.RFC3339), c.UserID, c.Message, c.Color}
		if err := w.Write(rec); err != nil {
			_ = f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
