// Package twitchapi contains the authenticated Helix client used for
// streamer, stream, game, and video lookups, plus the VOD comments
// paginator. All calls go through the retrying executor in client.go and an
// app access token from TokenStore.
package twitchapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// User is a Twitch account as returned by /users.
type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

// Stream is a currently-live broadcast as returned by /streams.
type Stream struct {
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	GameName  string    `json:"game_name"`
	StartedAt time.Time `json:"started_at"`
}

// Game is a category as returned by /games.
type Game struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Video is an archived broadcast. URL is the identity key used by the video
// cache; ID is the Twitch-side identifier used for comment downloads.
type Video struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Duration  string    `json:"duration"` // compound form, e.g. "3h15m42s"
	CreatedAt time.Time `json:"created_at"`
	GameID    string    `json:"game_id"`
	GameName  string    `json:"game_name"`
}

// Channel is a search result from /search/channels, shaped for registration.
type Channel struct {
	ID              string
	Login           string
	DisplayName     string
	Title           string
	GameName        string
	ProfileImageURL string
}

// GetUsers resolves user records by id. Malformed entries (missing id) are
// dropped with a warning rather than propagated.
func (c *Client) GetUsers(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := url.Values{}
	for _, id := range ids {
		params.Add("id", id)
	}
	var body struct {
		Data []User `json:"data"`
	}
	if err := c.get(ctx, "/users", params, &body); err != nil {
		return nil, err
	}
	out := make([]User, 0, len(body.Data))
	for _, u := range body.Data {
		if u.ID == "" {
			slog.Warn("dropping malformed user record from /users")
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// GetUser resolves a single user, returning ErrUserNotFound when the API
// has no record for the id.
func (c *Client) GetUser(ctx context.Context, id string) (User, error) {
	users, err := c.GetUsers(ctx, []string{id})
	if err != nil {
		return User{}, err
	}
	if len(users) == 0 {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	return users[0], nil
}

// GetStreams returns the live broadcasts among the given user ids. Offline
// users simply have no entry.
func (c *Client) GetStreams(ctx context.Context, userIDs []string) ([]Stream, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	params := url.Values{}
	for _, id := range userIDs {
		params.Add("user_id", id)
	}
	var body struct {
		Data []Stream `json:"data"`
	}
	if err := c.get(ctx, "/streams", params, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// GetGame looks up a category by id. A missing game is nil, nil.
func (c *Client) GetGame(ctx context.Context, gameID string) (*Game, error) {
	if gameID == "" {
		return nil, nil
	}
	params := url.Values{}
	params.Set("id", gameID)
	var body struct {
		Data []Game `json:"data"`
	}
	if err := c.get(ctx, "/games", params, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil
	}
	return &body.Data[0], nil
}

// GetVideos lists archive videos for a user, most recent first, with game
// names resolved. Records without an id or url are dropped with a warning.
func (c *Client) GetVideos(ctx context.Context, userID string, first int) ([]Video, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID empty")
	}
	if first <= 0 {
		first = 20
	}
	params := url.Values{}
	params.Set("user_id", userID)
	params.Set("type", "archive")
	params.Set("first", fmt.Sprintf("%d", first))
	var body struct {
		Data []Video `json:"data"`
	}
	if err := c.get(ctx, "/videos", params, &body); err != nil {
		return nil, err
	}

	out := make([]Video, 0, len(body.Data))
	gameNames := map[string]string{} // memoize per call; listings repeat categories
	for _, v := range body.Data {
		if v.ID == "" || v.URL == "" {
			slog.Warn("dropping malformed video record from /videos", slog.String("user_id", userID))
			continue
		}
		if v.GameID != "" {
			name, ok := gameNames[v.GameID]
			if !ok {
				if g, err := c.GetGame(ctx, v.GameID); err != nil {
					slog.Warn("game lookup failed", slog.String("game_id", v.GameID), slog.Any("err", err))
				} else if g != nil {
					name = g.Name
				}
				gameNames[v.GameID] = name
			}
			v.GameName = name
		}
		out = append(out, v)
	}
	return out, nil
}

// SearchChannels queries /search/channels for registration candidates.
func (c *Client) SearchChannels(ctx context.Context, query string) ([]Channel, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("first", "10")
	var body struct {
		Data []struct {
			ID           string `json:"id"`
			Login        string `json:"broadcaster_login"`
			DisplayName  string `json:"display_name"`
			Title        string `json:"title"`
			GameName     string `json:"game_name"`
			ThumbnailURL string `json:"thumbnail_url"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/search/channels", params, &body); err != nil {
		return nil, err
	}
	out := make([]Channel, 0, len(body.Data))
	for _, ch := range body.Data {
		if ch.ID == "" {
			continue
		}
		out = append(out, Channel{
			ID:              ch.ID,
			Login:           ch.Login,
			DisplayName:     ch.DisplayName,
			Title:           ch.Title,
			GameName:        ch.GameName,
			ProfileImageURL: ch.ThumbnailURL,
		})
	}
	return out, nil
}
