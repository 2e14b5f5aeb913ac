package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/onnwee/vodchat/testutil"
	"github.com/onnwee/vodchat/twitchapi"
	"github.com/onnwee/vodchat/videocache"
)

func testClient(t *testing.T, srv *testutil.MockTwitchServer) *twitchapi.Client {
	t.Helper()
	srv.MockOAuthToken("test-token")
	return &twitchapi.Client{
		Tokens: &twitchapi.TokenStore{
			ClientID:     "cid",
			ClientSecret: "secret",
			CachePath:    filepath.Join(t.TempDir(), "token.json"),
			TokenURL:     srv.URL + "/oauth2/token",
		},
		ClientID: "cid",
		BaseURL:  srv.URL,
		Delay:    time.Millisecond,
		Timeout:  time.Second,
	}
}

func endedVideo(start time.Time) videocache.CachedVideo {
	return videocache.CachedVideo{
		Video: twitchapi.Video{
			ID:        "v1",
			URL:       "https://twitch.tv/videos/1",
			Title:     "archived run",
			Duration:  "1h0m0s",
			CreatedAt: start,
		},
		Available: true,
	}
}

func TestDownloaderFromAPI(t *testing.T) {
	srv := testutil.NewMockTwitchServer(t)
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	page := func(i int) map[string]any {
		return map[string]any{
			"created_at": start.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
			"commenter":  map[string]any{"_id": fmt.Sprintf("u%d", i), "display_name": fmt.Sprintf("User%d", i)},
			"message":    map[string]any{"body": fmt.Sprintf("msg %d", i), "user_color": "#FF0000"},
		}
	}
	srv.MockComments(map[string]testutil.CommentPage{
		"":   {Comments: []map[string]any{page(0), page(1)}, Total: 3, Cursor: "c1"},
		"c1": {Comments: []map[string]any{page(2)}, Total: 3},
	})

	dir := t.TempDir()
	d := &Downloader{
		Client: testClient(t, srv),
		DB:     testDB(t),
		Dir:    dir,
		Clock:  clockwork.NewFakeClockAt(start.Add(2 * time.Hour)),
	}

	var progress []int
	stored, err := d.FromAPI(context.Background(), "42", endedVideo(start), func(p int) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("FromAPI: %v", err)
	}
	if stored != 3 {
		t.Fatalf("stored = %d, want 3", stored)
	}
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Fatalf("progress = %v, want final 100", progress)
	}

	got, err := GetComments(context.Background(), d.DB, "v1")
	if err != nil {
		t.Fatalf("GetComments: %v", err)
	}
	if len(got) != 3 || got[0].Message != "msg 0" || got[0].StreamerID != "42" {
		t.Fatalf("stored comments = %+v", got)
	}

	// The CSV mirror landed in the download dir.
	matches, err := filepath.Glob(filepath.Join(dir, "comments_v1-*.csv"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("csv mirror matches = %v (err %v)", matches, err)
	}
}

func TestDownloaderRejectsLiveVideo(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	d := &Downloader{
		Clock: clockwork.NewFakeClockAt(start.Add(30 * time.Minute)), // mid-broadcast
	}
	if _, err := d.FromAPI(context.Background(), "42", endedVideo(start), nil); err == nil {
		t.Fatal("expected rejection for a still-live video")
	}
}

func TestDownloaderRejectsUnavailableVideo(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	v := endedVideo(start)
	v.Available = false
	d := &Downloader{
		Clock: clockwork.NewFakeClockAt(start.Add(2 * time.Hour)),
	}
	if _, _, err := d.FromScraper(context.Background(), "42", v); err == nil {
		t.Fatal("expected rejection for an unavailable video")
	}
}

func TestDownloaderFromScraper(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	scraper := fakeScraper(t, `
out=""
for arg in "$@"; do
  case "$arg" in
    --output=*) out="${arg#--output=}" ;;
  esac
done
cat > "$out" <<'EOF'
time,user_name,user_color,message
0:00:05,Alice(u1),#FF0000,hello
bogus,Eve(u3),#0000FF,dropped
0:00:10,Bob(u2),,hi
EOF
`)
	d := &Downloader{
		DB:       testDB(t),
		Ingestor: &Ingestor{ScraperPath: scraper},
		Dir:      t.TempDir(),
		Clock:    clockwork.NewFakeClockAt(start.Add(2 * time.Hour)),
	}

	stored, skipped, err := d.FromScraper(context.Background(), "42", endedVideo(start))
	if err != nil {
		t.Fatalf("FromScraper: %v", err)
	}
	if stored != 2 || skipped != 1 {
		t.Fatalf("stored = %d, skipped = %d; want 2, 1", stored, skipped)
	}

	got, err := GetComments(context.Background(), d.DB, "v1")
	if err != nil {
		t.Fatalf("GetComments: %v", err)
	}
	if len(got) != 2 || got[0].UserID != "u1" || got[1].UserID != "u2" {
		t.Fatalf("stored comments = %+v", got)
	}
	if !got[0].CommentTime.Equal(start.Add(5 * time.Second)) {
		t.Fatalf("comment time = %v, want start+5s", got[0].CommentTime)
	}
}

func TestCleanupOldFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	old := filepath.Join(dir, "comments_v1-2025-01-01_10_00.csv")
	fresh := filepath.Join(dir, "comments_v2-2025-06-01_10_00.csv")
	unrelated := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, unrelated} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Chtimes(old, now.Add(-40*24*time.Hour), now.Add(-40*24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	d := &Downloader{Dir: dir}
	deleted, err := d.CleanupOldFiles(30)
	if err != nil {
		t.Fatalf("CleanupOldFiles: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old file survived cleanup")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh file deleted")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("unrelated file deleted")
	}
}
