package chat

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/onnwee/vodchat/telemetry"
	"github.com/onnwee/vodchat/twitchapi"
	"github.com/onnwee/vodchat/videocache"
)

// Downloader runs comment acquisition end to end: API pagination or the
// external scraper, then normalization, then storage. Each download is
// independent; concurrent requests for the same video are not deduplicated.
type Downloader struct {
	Client   *twitchapi.Client
	DB       *sql.DB
	Ingestor *Ingestor
	Dir      string          // download dir for CSV exports and scraper output
	Clock    clockwork.Clock // defaults to the real clock
}

func (d *Downloader) clock() clockwork.Clock {
	if d.Clock != nil {
		return d.Clock
	}
	return clockwork.NewRealClock()
}

// FromAPI downloads a video's comments through the paginated feed, persists
// the canonical records, and mirrors them to a CSV in the download dir.
// Returns the number of records stored.
func (d *Downloader) FromAPI(ctx context.Context, streamerID string, video videocache.CachedVideo, onProgress func(int)) (int, error) {
	if !video.Downloadable(d.clock().Now()) {
		return 0, fmt.Errorf("video %s is not eligible for download", video.ID)
	}
	telemetry.DownloadInc(telemetry.CommentDownloadsStarted)

	var raw []twitchapi.RawComment
	var err error
	telemetry.TimeFunc(telemetry.DownloadDuration, func() {
		raw, err = d.Client.DownloadComments(ctx, video.ID, onProgress)
	})
	if err != nil {
		telemetry.DownloadInc(telemetry.CommentDownloadsFailed)
		return 0, err
	}

	comments := make([]Comment, 0, len(raw))
	for _, rc := range raw {
		comments = append(comments, CommentFromAPI(rc, video.ID, streamerID))
	}
	if err := InsertComments(ctx, d.DB, comments); err != nil {
		telemetry.DownloadInc(telemetry.CommentDownloadsFailed)
		return 0, err
	}
	telemetry.CommentsIngestedAdd("api", len(comments))
	telemetry.DownloadInc(telemetry.CommentDownloadsSucceeded)

	if d.Dir != "" {
		path := d.outputPath(video)
		if err := WriteCSV(path, comments); err != nil {
			slog.Warn("comment csv export failed", slog.String("path", path), slog.Any("err", err))
		}
	}
	return len(comments), nil
}

// FromScraper drives the external scraper for the video, then parses,
// normalizes, and persists its CSV output. Returns records stored and
// malformed rows skipped.
func (d *Downloader) FromScraper(ctx context.Context, streamerID string, video videocache.CachedVideo) (int, int, error) {
	if !video.Downloadable(d.clock().Now()) {
		return 0, 0, fmt.Errorf("video %s is not eligible for download", video.ID)
	}
	telemetry.DownloadInc(telemetry.CommentDownloadsStarted)

	out := d.outputPath(video)
	job, err := d.Ingestor.Start(ctx, video.URL, out)
	if err != nil {
		telemetry.DownloadInc(telemetry.CommentDownloadsFailed)
		return 0, 0, err
	}
	if err := job.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			job.Cancel()
		}
		telemetry.DownloadInc(telemetry.CommentDownloadsFailed)
		return 0, 0, fmt.Errorf("scrape comments for video %s: %w", video.ID, err)
	}

	comments, skipped, err := ReadScrapedCSV(out, video.CreatedAt, video.ID, streamerID)
	if err != nil {
		telemetry.DownloadInc(telemetry.CommentDownloadsFailed)
		return 0, 0, err
	}
	telemetry.RowsSkippedAdd(skipped)
	if err := InsertComments(ctx, d.DB, comments); err != nil {
		telemetry.DownloadInc(telemetry.CommentDownloadsFailed)
		return 0, skipped, err
	}
	telemetry.CommentsIngestedAdd("scraper", len(comments))
	telemetry.DownloadInc(telemetry.CommentDownloadsSucceeded)
	return len(comments), skipped, nil
}

func (d *Downloader) outputPath(video videocache.CachedVideo) string {
	name := fmt.Sprintf("comments_%s-%s.csv", video.ID, video.CreatedAt.UTC().Format("2006-01-02_15_04"))
	return filepath.Join(d.Dir, name)
}

// CleanupOldFiles removes comment CSV files older than the given number of
// days from the download dir, returning how many were deleted.
func (d *Downloader) CleanupOldFiles(days int) (int, error) {
	if d.Dir == "" || days <= 0 {
		return 0, nil
	}
	cutoff := d.clock().Now().Add(-time.Duration(days) * 24 * time.Hour)
	matches, err := filepath.Glob(filepath.Join(d.Dir, "comments_*.csv"))
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, path := range matches {
		fi, err := os.Stat(path)
		if err != nil || fi.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			slog.Warn("failed to delete old comment file", slog.String("path", path), slog.Any("err", err))
			continue
		}
		deleted++
	}
	return deleted, nil
}
