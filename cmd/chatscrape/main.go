// Command chatscrape drives the external chat scraper for one or more VOD
// URLs without touching the database. Useful for bulk-archiving chat from
// videos whose comments are no longer served by the API.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/vodchat/chat"
	"github.com/onnwee/vodchat/config"
)

func main() {
	_ = godotenv.Load()

	urlFlag := flag.String("url", "", "single VOD URL to scrape")
	fileFlag := flag.String("file", "", "file with one VOD URL per line")
	outFlag := flag.String("output", "", "output CSV path (single URL) or directory (URL file)")
	flag.Parse()

	if (*urlFlag == "") == (*fileFlag == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -url or -file is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ing := &chat.Ingestor{ScraperPath: cfg.ScraperPath}

	var urls []string
	if *urlFlag != "" {
		urls = []string{*urlFlag}
	} else {
		urls, err = readURLFile(*fileFlag)
		if err != nil {
			slog.Error("failed to read url file", slog.String("path", *fileFlag), slog.Any("err", err))
			os.Exit(1)
		}
	}

	failed := 0
	for _, u := range urls {
		out := outputPath(*outFlag, cfg.DownloadDir, u, len(urls) > 1)
		if err := scrapeOne(ctx, ing, u, out); err != nil {
			fmt.Fprintf(os.Stderr, "scrape %s: %v\n", u, err)
			failed++
			if ctx.Err() != nil {
				break
			}
			continue
		}
		fmt.Printf("scraped %s -> %s\n", u, out)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func scrapeOne(ctx context.Context, ing *chat.Ingestor, url, out string) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return err
	}
	job, err := ing.Start(ctx, url, out)
	if err != nil {
		return err
	}
	if err := job.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			job.Cancel()
		}
		return err
	}
	return nil
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, sc.Err()
}

// outputPath picks the CSV destination. A single URL honors -output as a
// file path; multiple URLs treat -output as a directory and name files from
// the last URL path segment.
func outputPath(flagOut, downloadDir, url string, multi bool) string {
	if flagOut != "" && !multi {
		return flagOut
	}
	dir := flagOut
	if dir == "" {
		dir = downloadDir
	}
	seg := url
	if i := strings.LastIndex(seg, "/"); i >= 0 {
		seg = seg[i+1:]
	}
	if seg == "" {
		seg = "video"
	}
	return filepath.Join(dir, fmt.Sprintf("comments_%s.csv", seg))
}
