package twitchapi

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"time"
)

// RawComment is one entry from the cursor-paginated comments feed, kept
// close to the wire shape. Normalization into the canonical record happens
// in the chat package.
type RawComment struct {
	CreatedAt time.Time `json:"created_at"`
	Commenter struct {
		ID          string `json:"_id"`
		DisplayName string `json:"display_name"`
	} `json:"commenter"`
	Message struct {
		Body      string `json:"body"`
		UserColor string `json:"user_color"`
	} `json:"message"`
}

type commentsPage struct {
	Comments   []RawComment `json:"comments"`
	Total      int          `json:"_total"`
	Pagination struct {
		Cursor string `json:"cursor"`
	} `json:"_pagination"`
}

// DownloadComments walks the comments feed for a video to completion,
// 100 entries per page, appending in server-delivered order. onProgress (may
// be nil) receives min(round(fetched/total*100), 100) after each page; a
// zero total reports 100 outright. The loop only stops when the server omits
// the next cursor; there is no artificial page cap.
func (c *Client) DownloadComments(ctx context.Context, videoID string, onProgress func(int)) ([]RawComment, error) {
	var all []RawComment
	cursor := ""
	for {
		params := url.Values{}
		params.Set("video_id", videoID)
		params.Set("first", "100")
		if cursor != "" {
			params.Set("after", cursor)
		}
		var page commentsPage
		if err := c.get(ctx, "/comments", params, &page); err != nil {
			return nil, fmt.Errorf("download comments for video %s: %w", videoID, err)
		}
		all = append(all, page.Comments...)
		if onProgress != nil {
			onProgress(progressPercent(len(all), page.Total))
		}
		if page.Pagination.Cursor == "" {
			return all, nil
		}
		cursor = page.Pagination.Cursor
	}
}

func progressPercent(fetched, total int) int {
	if total <= 0 {
		return 100
	}
	p := int(math.Round(float64(fetched) / float64(total) * 100))
	if p > 100 {
		p = 100
	}
	return p
}
