package chat

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/onnwee/vodchat/telemetry"
)

// JobState is the lifecycle of an external scrape job.
type JobState int

const (
	StateRunning JobState = iota
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s JobState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Ingestor launches the external chat-scraper process. The scraper is an
// opaque collaborator: it receives a video URL and an output path and is
// expected to leave a non-empty CSV behind on success.
type Ingestor struct {
	// ScraperPath is the scraper executable, invoked as
	// <scraper> --url=<video_url> --output=<path>.
	ScraperPath string
}

// IngestJob is a handle on one running scrape. Wait resolves once the
// process exits and the output file is verified; Cancel terminates the
// process and suppresses the completion outcome.
type IngestJob struct {
	ID         uuid.UUID
	VideoURL   string
	OutputPath string

	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state JobState
	err   error
}

// Start launches the scraper for videoURL writing to outputPath and returns
// the job handle. The process is monitored on its own goroutine.
func (ing *Ingestor) Start(ctx context.Context, videoURL, outputPath string) (*IngestJob, error) {
	if ing.ScraperPath == "" {
		return nil, fmt.Errorf("scraper path not configured")
	}
	jctx, cancel := context.WithCancel(ctx)
	var stderr bytes.Buffer
	cmd := exec.CommandContext(jctx, ing.ScraperPath, "--url="+videoURL, "--output="+outputPath)
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start scraper: %w", err)
	}

	job := &IngestJob{
		ID:         uuid.New(),
		VideoURL:   videoURL,
		OutputPath: outputPath,
		cancel:     cancel,
		done:       make(chan struct{}),
		state:      StateRunning,
	}
	slog.Info("scrape job started", slog.String("job_id", job.ID.String()), slog.String("url", videoURL))
	go job.monitor(cmd, &stderr)
	return job, nil
}

func (j *IngestJob) monitor(cmd *exec.Cmd, stderr *bytes.Buffer) {
	defer j.cancel()
	err := cmd.Wait()

	j.mu.Lock()
	defer func() {
		state := j.state
		j.mu.Unlock()
		telemetry.ScrapeJobInc(state.String())
		close(j.done)
	}()

	if j.state == StateCancelled {
		// outcome suppressed; the kill above caused the exit error
		return
	}
	if err != nil {
		j.state = StateFailed
		j.err = fmt.Errorf("scraper exited: %w: %s", err, strings.TrimSpace(stderr.String()))
		return
	}
	if fi, serr := os.Stat(j.OutputPath); serr != nil || fi.Size() == 0 {
		j.state = StateFailed
		j.err = fmt.Errorf("scraper produced no output at %s", j.OutputPath)
		return
	}
	j.state = StateSucceeded
}

// Cancel terminates the scraper process if the job is still running. The
// completion outcome is suppressed; the process is killed through the job
// context so no orphan survives.
func (j *IngestJob) Cancel() {
	j.mu.Lock()
	if j.state == StateRunning {
		j.state = StateCancelled
		j.cancel()
		slog.Info("scrape job cancelled", slog.String("job_id", j.ID.String()))
	}
	j.mu.Unlock()
}

// Wait blocks until the job resolves or ctx is done, and returns the job's
// terminal error (nil on success).
func (j *IngestJob) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-j.done:
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.state {
	case StateSucceeded:
		return nil
	case StateCancelled:
		return fmt.Errorf("scrape job cancelled")
	default:
		return j.err
	}
}

// State returns the current job state.
func (j *IngestJob) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}
