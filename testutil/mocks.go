package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockTwitchServer is a test server that mocks the Twitch OAuth and Helix
// endpoints used by the app. Handlers are keyed by URL path.
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockTwitchServer creates a new mock Twitch API server.
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// JSON writes v as a JSON response.
func JSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

// MockOAuthToken adds a handler for the OAuth token endpoint.
func (m *MockTwitchServer) MockOAuthToken(accessToken string) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		JSON(w, map[string]any{
			"access_token": accessToken,
			"expires_in":   14400,
			"token_type":   "bearer",
		})
	}
}

// MockUsers adds a handler for the /users endpoint.
func (m *MockTwitchServer) MockUsers(users []map[string]string) {
	m.Handlers["/users"] = func(w http.ResponseWriter, r *http.Request) {
		JSON(w, map[string]any{"data": users})
	}
}

// MockStreams adds a handler for the /streams endpoint.
func (m *MockTwitchServer) MockStreams(streams []map[string]any) {
	m.Handlers["/streams"] = func(w http.ResponseWriter, r *http.Request) {
		JSON(w, map[string]any{"data": streams})
	}
}

// MockVideos adds a handler for the /videos endpoint.
func (m *MockTwitchServer) MockVideos(videos []map[string]any) {
	m.Handlers["/videos"] = func(w http.ResponseWriter, r *http.Request) {
		JSON(w, map[string]any{"data": videos})
	}
}

// MockGames adds a handler for the /games endpoint mapping game id to name.
func (m *MockTwitchServer) MockGames(names map[string]string) {
	m.Handlers["/games"] = func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		data := []map[string]string{}
		if name, ok := names[id]; ok {
			data = append(data, map[string]string{"id": id, "name": name})
		}
		JSON(w, map[string]any{"data": data})
	}
}

// MockSearchChannels adds a handler for the /search/channels endpoint.
func (m *MockTwitchServer) MockSearchChannels(channels []map[string]string) {
	m.Handlers["/search/channels"] = func(w http.ResponseWriter, r *http.Request) {
		JSON(w, map[string]any{"data": channels})
	}
}

// CommentPage is one page of the mocked comments feed.
type CommentPage struct {
	Comments []map[string]any
	Total    int
	Cursor   string // empty on the final page
}

// MockComments serves the /comments endpoint from a cursor-keyed page map.
// The first page is served for an absent "after" param; subsequent pages are
// looked up by the cursor the previous page returned.
func (m *MockTwitchServer) MockComments(pages map[string]CommentPage) {
	m.Handlers["/comments"] = func(w http.ResponseWriter, r *http.Request) {
		page, ok := pages[r.URL.Query().Get("after")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		JSON(w, map[string]any{
			"comments":    page.Comments,
			"_total":      page.Total,
			"_pagination": map[string]string{"cursor": page.Cursor},
		})
	}
}
