package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	defaultTokenURL = "https://id.twitch.tv/oauth2/token"

	// tokenTTL is how long an issued app token is treated as valid,
	// measured from its issue time. Twitch app tokens live longer, but a
	// fixed window keeps the cache logic independent of the server's
	// expires_in answer.
	tokenTTL = 4 * time.Hour

	tokenMaxAttempts = 3
	tokenRetryDelay  = time.Second
	tokenTimeout     = 10 * time.Second
)

// cachedToken is the on-disk token cache shape: the token plus its issue
// time as unix seconds.
type cachedToken struct {
	AccessToken string `json:"access_token"`
	Timestamp   int64  `json:"timestamp"`
}

// TokenStore fetches and caches a Twitch app access (client credentials)
// token. The token is persisted to CachePath so restarts reuse it, and is
// considered valid while now < issue time + tokenTTL. Any consumer that sees
// a 401 must call Invalidate so the next Get reacquires synchronously.
type TokenStore struct {
	ClientID     string
	ClientSecret string
	CachePath    string
	HTTPClient   *http.Client
	TokenURL     string          // defaults to the Twitch OAuth endpoint
	Clock        clockwork.Clock // defaults to the real clock

	mu     sync.RWMutex
	cached cachedToken
	loaded bool
}

func (ts *TokenStore) clock() clockwork.Clock {
	if ts.Clock != nil {
		return ts.Clock
	}
	return clockwork.NewRealClock()
}

func (ts *TokenStore) tokenURL() string {
	if ts.TokenURL != "" {
		return ts.TokenURL
	}
	return defaultTokenURL
}

// Get returns a valid (fresh or cached) app access token. It returns a
// *ConfigError when credentials are missing and an *AuthError when the
// exchange fails after the retry budget.
func (ts *TokenStore) Get(ctx context.Context) (string, error) {
	ts.mu.RLock()
	if ts.loaded && ts.valid() {
		tok := ts.cached.AccessToken
		ts.mu.RUnlock()
		return tok, nil
	}
	ts.mu.RUnlock()
	return ts.exchange(ctx)
}

// Invalidate clears the cached token in memory and on disk so the next Get
// performs a fresh exchange. Called on any downstream 401; a stale token
// must never be retried against the same endpoint without refresh.
func (ts *TokenStore) Invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.cached = cachedToken{}
	ts.loaded = true
	if ts.CachePath != "" {
		if err := writeFileAtomic(ts.CachePath, []byte("{}\n")); err != nil {
			slog.Warn("failed to clear token cache file", slog.Any("err", err))
		}
	}
}

// valid reports whether the in-memory token is present and inside its
// validity window. Caller holds at least the read lock.
func (ts *TokenStore) valid() bool {
	if ts.cached.AccessToken == "" {
		return false
	}
	issued := time.Unix(ts.cached.Timestamp, 0)
	return ts.clock().Now().Before(issued.Add(tokenTTL))
}

func (ts *TokenStore) exchange(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if !ts.loaded {
		ts.loadFromDisk()
		ts.loaded = true
	}
	if ts.valid() {
		return ts.cached.AccessToken, nil
	}
	if ts.ClientID == "" || ts.ClientSecret == "" {
		return "", &ConfigError{Reason: "client id or secret is empty"}
	}

	form := url.Values{}
	form.Set("client_id", ts.ClientID)
	form.Set("client_secret", ts.ClientSecret)
	form.Set("grant_type", "client_credentials")

	hc := ts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	var lastErr error
	for attempt := 1; attempt <= tokenMaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", &AuthError{Err: ctx.Err()}
			case <-time.After(tokenRetryDelay):
			}
		}
		tok, err := ts.requestToken(ctx, hc, form)
		if err == nil {
			ts.cached = cachedToken{AccessToken: tok, Timestamp: ts.clock().Now().Unix()}
			ts.persist()
			return tok, nil
		}
		lastErr = err
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			// definitive rejection from the auth endpoint, retrying won't help
			break
		}
		slog.Warn("token exchange attempt failed", slog.Int("attempt", attempt), slog.Any("err", err))
	}
	return "", &AuthError{Err: lastErr}
}

func (ts *TokenStore) requestToken(ctx context.Context, hc *http.Client, form url.Values) (string, error) {
	rctx, cancel := context.WithTimeout(ctx, tokenTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(rctx, http.MethodPost, ts.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	var at struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&at); err != nil {
		return "", err
	}
	if at.AccessToken == "" {
		return "", fmt.Errorf("empty access_token in twitch response")
	}
	return at.AccessToken, nil
}

// loadFromDisk reads the persisted token cache. Absent or corrupt files are
// treated as empty, never fatal. Caller holds the write lock.
func (ts *TokenStore) loadFromDisk() {
	if ts.CachePath == "" {
		return
	}
	data, err := os.ReadFile(ts.CachePath)
	if err != nil {
		return
	}
	var ct cachedToken
	if err := json.Unmarshal(data, &ct); err != nil {
		slog.Warn("corrupt token cache, ignoring", slog.String("path", ts.CachePath), slog.Any("err", err))
		return
	}
	ts.cached = ct
}

// persist writes the token cache to disk. Failures are logged but don't
// fail the exchange. Caller holds the write lock.
func (ts *TokenStore) persist() {
	if ts.CachePath == "" {
		return
	}
	data, err := json.Marshal(ts.cached)
	if err != nil {
		slog.Warn("failed to encode token cache", slog.Any("err", err))
		return
	}
	if err := writeFileAtomic(ts.CachePath, append(data, '\n')); err != nil {
		slog.Warn("failed to persist token cache", slog.String("path", ts.CachePath), slog.Any("err", err))
	}
}

// writeFileAtomic writes data via a temp file and rename so readers never
// observe a partial write.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
