package videocache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/onnwee/vodchat/twitchapi"
)

func video(id, url, title string, createdAt time.Time, duration string) twitchapi.Video {
	return twitchapi.Video{
		ID:        id,
		URL:       url,
		Title:     title,
		Duration:  duration,
		CreatedAt: createdAt,
	}
}

func TestReconcileUpsertsAndFlagsAvailability(t *testing.T) {
	store := &Store{Dir: t.TempDir()}
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	v1 := video("v1", "https://twitch.tv/videos/1", "first", base, "1h0m0s")
	v2 := video("v2", "https://twitch.tv/videos/2", "second", base.Add(24*time.Hour), "2h0m0s")

	got, err := store.Reconcile("42", []twitchapi.Video{v1, v2})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d videos, want 2", len(got))
	}
	// Most recent first.
	if got[0].ID != "v2" || got[1].ID != "v1" {
		t.Fatalf("order = %s, %s; want v2, v1", got[0].ID, got[1].ID)
	}
	for _, v := range got {
		if !v.Available {
			t.Errorf("video %s unavailable after fresh fetch", v.ID)
		}
	}

	// v1 dropped from the listing: its record survives, flagged unavailable,
	// and the title edit on v2 is upserted.
	v2.Title = "second (edited)"
	got, err = store.Reconcile("42", []twitchapi.Video{v2})
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d videos after partial fetch, want 2", len(got))
	}
	if got[0].ID != "v2" || !got[0].Available || got[0].Title != "second (edited)" {
		t.Fatalf("v2 = %+v", got[0])
	}
	if got[1].ID != "v1" || got[1].Available {
		t.Fatalf("v1 = %+v, want retained and unavailable", got[1])
	}
	if got[1].Title != "first" {
		t.Fatalf("v1 title = %q, metadata must survive delisting", got[1].Title)
	}
}

func TestReconcileEmptyFetchPreservesCache(t *testing.T) {
	store := &Store{Dir: t.TempDir()}
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	v1 := video("v1", "https://twitch.tv/videos/1", "first", base, "1h0m0s")

	if _, err := store.Reconcile("42", []twitchapi.Video{v1}); err != nil {
		t.Fatalf("seed Reconcile: %v", err)
	}
	got, err := store.Reconcile("42", nil)
	if err != nil {
		t.Fatalf("empty Reconcile: %v", err)
	}
	if len(got) != 1 || got[0].ID != "v1" {
		t.Fatalf("got = %+v, want the cached record", got)
	}
	if got[0].Available {
		t.Fatal("video reported available despite an empty fetch")
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	store := &Store{Dir: t.TempDir()}
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	fetched := []twitchapi.Video{
		video("v1", "https://twitch.tv/videos/1", "first", base, "1h0m0s"),
	}

	first, err := store.Reconcile("42", fetched)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	second, err := store.Reconcile("42", fetched)
	if err != nil {
		t.Fatalf("repeat Reconcile: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("entry %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestReconcileCorruptCacheStartsEmpty(t *testing.T) {
	store := &Store{Dir: t.TempDir()}
	if err := os.WriteFile(filepath.Join(store.Dir, "videos_42.json"), []byte("{broken"), 0o600); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	got, err := store.Reconcile("42", []twitchapi.Video{
		video("v1", "https://twitch.tv/videos/1", "first", base, "1h0m0s"),
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(got) != 1 || got[0].ID != "v1" {
		t.Fatalf("got = %+v", got)
	}
}

func TestReconcileKeepsStreamersSeparate(t *testing.T) {
	store := &Store{Dir: t.TempDir()}
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	if _, err := store.Reconcile("42", []twitchapi.Video{
		video("v1", "https://twitch.tv/videos/1", "first", base, "1h0m0s"),
	}); err != nil {
		t.Fatalf("Reconcile 42: %v", err)
	}
	got, err := store.Reconcile("43", nil)
	if err != nil {
		t.Fatalf("Reconcile 43: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("streamer 43 sees %d videos from streamer 42", len(got))
	}
}

func TestDownloadable(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	v := CachedVideo{
		Video:     video("v1", "https://twitch.tv/videos/1", "live now", start, "2h0m0s"),
		Available: true,
	}

	if v.Downloadable(start.Add(time.Hour)) {
		t.Error("downloadable while the broadcast is still running")
	}
	if !v.Downloadable(start.Add(2 * time.Hour)) {
		t.Error("not downloadable at the exact end time")
	}
	if !v.Downloadable(start.Add(3 * time.Hour)) {
		t.Error("not downloadable after the broadcast ended")
	}

	v.Available = false
	if v.Downloadable(start.Add(3 * time.Hour)) {
		t.Error("unavailable video reported downloadable")
	}
}

func TestParseTwitchDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"3h15m42s", 3*time.Hour + 15*time.Minute + 42*time.Second},
		{"1h0m0s", time.Hour},
		{"55m0s", 55 * time.Minute},
		{"42s", 42 * time.Second},
		{"2h", 2 * time.Hour},
		{"", 0},
		{"garbage", 0},
	}
	for _, tc := range cases {
		if got := ParseTwitchDuration(tc.in); got != tc.want {
			t.Errorf("ParseTwitchDuration(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
