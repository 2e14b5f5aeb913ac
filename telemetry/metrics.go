// Package telemetry provides Prometheus metrics for the comment pipeline and
// an optional localhost metrics listener.
package telemetry

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	// Counters
	CommentDownloadsStarted   prometheus.Counter
	CommentDownloadsFailed    prometheus.Counter
	CommentDownloadsSucceeded prometheus.Counter
	CommentsIngested          *prometheus.CounterVec // label: source=api|scraper
	RowsSkipped               prometheus.Counter
	APIRetries                prometheus.Counter
	ScrapeJobs                *prometheus.CounterVec // label: result=succeeded|failed|cancelled

	// Histograms (seconds)
	DownloadDuration prometheus.Observer
)

// Init registers metrics (idempotent). Call once at startup; helpers are
// no-ops before Init so library code can record unconditionally.
func Init() {
	once.Do(func() {
		CommentDownloadsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "vodchat_comment_downloads_started_total", Help: "Number of comment downloads started"})
		CommentDownloadsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "vodchat_comment_downloads_failed_total", Help: "Number of comment downloads failed"})
		CommentDownloadsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "vodchat_comment_downloads_succeeded_total", Help: "Number of comment downloads succeeded"})
		CommentsIngested = promauto.NewCounterVec(prometheus.CounterOpts{Name: "vodchat_comments_ingested_total", Help: "Canonical comment records persisted"}, []string{"source"})
		RowsSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "vodchat_scraped_rows_skipped_total", Help: "Malformed scraped CSV rows skipped"})
		APIRetries = promauto.NewCounter(prometheus.CounterOpts{Name: "vodchat_api_retries_total", Help: "Helix request attempts that failed and were retried or abandoned"})
		ScrapeJobs = promauto.NewCounterVec(prometheus.CounterOpts{Name: "vodchat_scrape_jobs_total", Help: "External scraper process outcomes"}, []string{"result"})
		DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "vodchat_comment_download_duration_seconds", Help: "Comment download duration seconds", Buckets: prometheus.DefBuckets})
	})
}

// APIRetryInc records a failed request attempt.
func APIRetryInc() {
	if APIRetries != nil {
		APIRetries.Inc()
	}
}

// CommentsIngestedAdd records n persisted records from the given source.
func CommentsIngestedAdd(source string, n int) {
	if CommentsIngested != nil {
		CommentsIngested.WithLabelValues(source).Add(float64(n))
	}
}

// RowsSkippedAdd records malformed rows dropped during normalization.
func RowsSkippedAdd(n int) {
	if RowsSkipped != nil {
		RowsSkipped.Add(float64(n))
	}
}

// ScrapeJobInc records an external scraper outcome.
func ScrapeJobInc(result string) {
	if ScrapeJobs != nil {
		ScrapeJobs.WithLabelValues(result).Inc()
	}
}

// DownloadInc records a download lifecycle event on the given counter.
func DownloadInc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// TimeFunc measures the duration of fn and records it in obs if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Serve exposes /metrics on addr (typically localhost) in a background
// goroutine. A desktop install leaves addr empty and serves nothing.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		slog.Info("metrics listener enabled", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics listener error", slog.Any("err", err))
		}
	}()
}
