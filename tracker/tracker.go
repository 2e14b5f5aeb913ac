// Package tracker maintains the set of followed streamers and produces the
// live/offline overview the desktop shell displays. Registered users live in
// the database; the in-memory id list is only a derived cache.
package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/vodchat/db"
	"github.com/onnwee/vodchat/twitchapi"
)

// StreamerStatus is one row of the followed-streamer overview.
type StreamerStatus struct {
	User db.User
	Live bool

	// Live fields (set when Live)
	StreamTitle string
	GameName    string

	// Offline fields (set from the latest archive video when present)
	LastTitle      string
	LastStreamedAt time.Time
}

// Service combines the user table with Helix lookups.
type Service struct {
	DB     *sql.DB
	Client *twitchapi.Client

	mu  sync.RWMutex
	ids []string
}

// Refresh reloads the derived registered-id list from storage.
func (s *Service) Refresh(ctx context.Context) error {
	users, err := db.ListUsers(ctx, s.DB)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	s.mu.Lock()
	s.ids = ids
	s.mu.Unlock()
	return nil
}

// Registered returns the cached registered-id list (refreshed from storage
// by Refresh; never authoritative on its own).
func (s *Service) Registered() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Register upserts a search result into the user table and refreshes the
// derived list.
func (s *Service) Register(ctx context.Context, ch twitchapi.Channel) error {
	if ch.ID == "" {
		return fmt.Errorf("channel id empty")
	}
	u := db.User{ID: ch.ID, Login: ch.Login, DisplayName: ch.DisplayName, ProfileImageURL: ch.ProfileImageURL}
	if err := db.UpsertUser(ctx, s.DB, u); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Remove deletes a registered user and refreshes the derived list.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := db.DeleteUser(ctx, s.DB, id); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Overview returns the status of every registered streamer: live title and
// game when streaming, otherwise the latest archive video when one exists.
// Per-streamer lookup failures degrade that row, not the whole overview.
func (s *Service) Overview(ctx context.Context) ([]StreamerStatus, error) {
	users, err := db.ListUsers(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	streams, err := s.Client.GetStreams(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch live streams: %w", err)
	}
	liveByID := make(map[string]twitchapi.Stream, len(streams))
	for _, st := range streams {
		liveByID[st.UserID] = st
	}

	out := make([]StreamerStatus, 0, len(users))
	for _, u := range users {
		status := StreamerStatus{User: u}
		if st, ok := liveByID[u.ID]; ok {
			status.Live = true
			status.StreamTitle = st.Title
			status.GameName = st.GameName
		} else {
			videos, err := s.Client.GetVideos(ctx, u.ID, 1)
			if err != nil {
				slog.Warn("latest video lookup failed", slog.String("user_id", u.ID), slog.Any("err", err))
			} else if len(videos) > 0 {
				status.LastTitle = videos[0].Title
				status.GameName = videos[0].GameName
				status.LastStreamedAt = videos[0].CreatedAt
			}
		}
		out = append(out, status)
	}
	return out, nil
}
