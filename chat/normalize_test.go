package chat

import (
	"testing"
	"time"

	"github.com/onnwee/vodchat/twitchapi"
)

func TestCommentFromAPI(t *testing.T) {
	var rc twitchapi.RawComment
	rc.CreatedAt = time.Date(2025, 6, 1, 12, 30, 15, 0, time.UTC)
	rc.Commenter.ID = "u9"
	rc.Commenter.DisplayName = "Niner"
	rc.Message.Body = "PogChamp"
	rc.Message.UserColor = "#00FF00"

	c := CommentFromAPI(rc, "v1", "42")
	want := Comment{
		VideoID:     "v1",
		StreamerID:  "42",
		UserID:      "u9",
		Color:       "#00FF00",
		CommentTime: time.Date(2025, 6, 1, 12, 30, 15, 0, time.UTC),
		Message:     "PogChamp",
	}
	if c != want {
		t.Fatalf("got %+v, want %+v", c, want)
	}
}

func TestCommentFromScrapedRow(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c, err := CommentFromScrapedRow([]string{"0:30:15", "Niner(u9)", "#00FF00", "PogChamp"}, start, "v1", "42")
	if err != nil {
		t.Fatalf("CommentFromScrapedRow: %v", err)
	}
	want := Comment{
		VideoID:     "v1",
		StreamerID:  "42",
		UserID:      "u9",
		Color:       "#00FF00",
		CommentTime: time.Date(2025, 6, 1, 12, 30, 15, 0, time.UTC),
		Message:     "PogChamp",
	}
	if c != want {
		t.Fatalf("got %+v, want %+v", c, want)
	}
}

// Both acquisition paths must produce the same canonical record for the same
// underlying comment.
func TestSourcesConverge(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var rc twitchapi.RawComment
	rc.CreatedAt = start.Add(30*time.Minute + 15*time.Second)
	rc.Commenter.ID = "u9"
	rc.Message.Body = "PogChamp"
	rc.Message.UserColor = "#00FF00"
	fromAPI := CommentFromAPI(rc, "v1", "42")

	fromScrape, err := CommentFromScrapedRow([]string{"0:30:15", "Niner(u9)", "#00FF00", "PogChamp"}, start, "v1", "42")
	if err != nil {
		t.Fatalf("CommentFromScrapedRow: %v", err)
	}
	if fromAPI != fromScrape {
		t.Fatalf("records diverge:\napi:    %+v\nscrape: %+v", fromAPI, fromScrape)
	}
}

func TestCommentFromScrapedRowErrors(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		row  []string
	}{
		{"short row", []string{"0:30:15", "Niner(u9)", "#00FF00"}},
		{"bad time", []string{"half past noon", "Niner(u9)", "#00FF00", "hi"}},
		{"minutes overflow", []string{"0:75:00", "Niner(u9)", "#00FF00", "hi"}},
		{"negative", []string{"0:-3:00", "Niner(u9)", "#00FF00", "hi"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := CommentFromScrapedRow(tc.row, start, "v1", "42"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseElapsedLongBroadcast(t *testing.T) {
	d, err := parseElapsed("27:05:09")
	if err != nil {
		t.Fatalf("parseElapsed: %v", err)
	}
	if want := 27*time.Hour + 5*time.Minute + 9*time.Second; d != want {
		t.Fatalf("got %v, want %v", d, want)
	}
}

func TestUserIDFromComposite(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Niner(u9)", "u9"},
		{"We(ird) Name(u10)", "u10"},
		{"plainuser", "plainuser"},
		{"trailing(paren", "trailing(paren"},
		{" Spaced(u11) ", "u11"},
	}
	for _, tc := range cases {
		if got := userIDFromComposite(tc.in); got != tc.want {
			t.Errorf("userIDFromComposite(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
