// Package chat acquires VOD chat comments from two sources, the Helix
// comments feed and an external browser-automation scraper, and converges
// both onto one canonical record shape before persistence.
package chat

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/vodchat/twitchapi"
)

// Comment is the canonical persisted record. Both acquisition paths produce
// exactly this shape so storage has a single write path.
type Comment struct {
	VideoID     string
	StreamerID  string
	UserID      string
	Color       string // empty when the source had none; stored as NULL
	CommentTime time.Time
	Message     string
}

// CommentFromAPI converts a raw feed entry. The comment time is the record's
// own absolute timestamp.
func CommentFromAPI(rc twitchapi.RawComment, videoID, streamerID string) Comment {
	return Comment{
		VideoID:     videoID,
		StreamerID:  streamerID,
		UserID:      rc.Commenter.ID,
		Color:       rc.Message.UserColor,
		CommentTime: rc.CreatedAt.UTC(),
		Message:     rc.Message.Body,
	}
}

// CommentFromScrapedRow converts one scraper CSV row
// (time "HH:MM:SS", user_name "Display(id)", user_color, message).
// The comment time is the video start plus the elapsed offset. A malformed
// time field is a row-level error: the caller skips and counts it, the batch
// survives.
func CommentFromScrapedRow(row []string, videoStart time.Time, videoID, streamerID string) (Comment, error) {
	if len(row) < 4 {
		return Comment{}, fmt.Errorf("short row: %d fields", len(row))
	}
	offset, err := parseElapsed(row[0])
	if err != nil {
		return Comment{}, err
	}
	return Comment{
		VideoID:     videoID,
		StreamerID:  streamerID,
		UserID:      userIDFromComposite(row[1]),
		Color:       strings.TrimSpace(row[2]),
		CommentTime: videoStart.Add(offset).UTC(),
		Message:     row[3],
	}, nil
}

// parseElapsed parses an "HH:MM:SS" elapsed time into a duration. Hours may
// exceed 24 for long broadcasts.
func parseElapsed(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed elapsed time %q", s)
	}
	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("malformed elapsed time %q", s)
		}
		vals[i] = n
	}
	if vals[1] > 59 || vals[2] > 59 {
		return 0, fmt.Errorf("malformed elapsed time %q", s)
	}
	return time.Duration(vals[0])*time.Hour + time.Duration(vals[1])*time.Minute + time.Duration(vals[2])*time.Second, nil
}

// userIDFromComposite extracts the id from the scraper's "Display(id)"
// composite field: the substring between the last '(' and the trailing ')'.
// A field without that shape is used whole.
func userIDFromComposite(s string) string {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, "(")
	if i >= 0 && strings.HasSuffix(s, ")") {
		return s[i+1 : len(s)-1]
	}
	return s
}
