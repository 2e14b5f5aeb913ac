// Package videocache merges freshly fetched video listings with a persisted
// per-streamer cache. Entries are keyed by video URL and never deleted
// automatically: a video Twitch no longer returns (deleted or expired VOD)
// stays in the cache, flagged unavailable, so its metadata survives.
package videocache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/onnwee/vodchat/twitchapi"
)

// CachedVideo is a cache entry plus its availability in the latest fetch.
// Available gates downloadability together with the live window; the UI
// enforces the policy, this type signals eligibility.
type CachedVideo struct {
	twitchapi.Video
	Available bool
}

// EndTime is the broadcast end derived from start time and duration.
func (v CachedVideo) EndTime() time.Time {
	return v.CreatedAt.Add(ParseTwitchDuration(v.Duration))
}

// Downloadable reports whether comment download may be initiated: the video
// must be in the latest listing and its broadcast must have ended.
func (v CachedVideo) Downloadable(now time.Time) bool {
	return v.Available && !now.Before(v.EndTime())
}

// Store reads and writes per-streamer video cache files under Dir, named
// videos_<streamerID>.json, each a map of video url to record.
type Store struct {
	Dir string
}

func (s *Store) path(streamerID string) string {
	return filepath.Join(s.Dir, "videos_"+streamerID+".json")
}

// Reconcile merges fetched into the persisted cache for the streamer and
// returns the full cache contents ordered most-recent-first. Every fetched
// record is upserted by url; records absent from fetched remain and come
// back flagged unavailable. The updated map is persisted atomically before
// results are produced.
func (s *Store) Reconcile(streamerID string, fetched []twitchapi.Video) ([]CachedVideo, error) {
	cached := s.load(streamerID)

	fresh := make(map[string]bool, len(fetched))
	for _, v := range fetched {
		if v.URL == "" {
			continue
		}
		cached[v.URL] = v
		fresh[v.URL] = true
	}

	if err := s.save(streamerID, cached); err != nil {
		return nil, fmt.Errorf("persist video cache for %s: %w", streamerID, err)
	}

	out := make([]CachedVideo, 0, len(cached))
	for _, v := range cached {
		out = append(out, CachedVideo{Video: v, Available: fresh[v.URL]})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// load reads the cache map. Absent or corrupt files become an empty map; a
// corrupt cache is logged, never fatal.
func (s *Store) load(streamerID string) map[string]twitchapi.Video {
	data, err := os.ReadFile(s.path(streamerID))
	if err != nil {
		return map[string]twitchapi.Video{}
	}
	var m map[string]twitchapi.Video
	if err := json.Unmarshal(data, &m); err != nil {
		slog.Warn("corrupt video cache, starting empty", slog.String("streamer_id", streamerID), slog.Any("err", err))
		return map[string]twitchapi.Video{}
	}
	if m == nil {
		m = map[string]twitchapi.Video{}
	}
	return m
}

// save writes the cache map via temp file + rename so a crash mid-write
// can't corrupt the cache.
func (s *Store) save(streamerID string, m map[string]twitchapi.Video) error {
	if err := os.MkdirAll(s.Dir, 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	path := s.path(streamerID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ParseTwitchDuration parses the compound Twitch duration format like
// "3h15m42s" into a time.Duration. Unknown characters reset the current
// number; an empty or malformed string comes back as zero.
func ParseTwitchDuration(s string) time.Duration {
	var total int
	cur := 0
	haveDigits := false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			cur = cur*10 + int(r-'0')
			haveDigits = true
			continue
		}
		if !haveDigits {
			continue
		}
		switch r {
		case 'h':
			total += cur * 3600
		case 'm':
			total += cur * 60
		case 's':
			total += cur
		}
		cur = 0
		haveDigits = false
	}
	return time.Duration(total) * time.Second
}
