package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/onnwee/vodchat/telemetry"
)

const (
	defaultBaseURL = "https://api.twitch.tv/helix"

	// MaxRetryCount bounds attempts for a single logical request.
	MaxRetryCount = 3
	// RetryDelay is the fixed pause between attempts after a timeout or
	// connection failure. A 401 retries immediately (the delay would buy
	// nothing; the token was just refreshed).
	RetryDelay = time.Second
	// RequestTimeout applies per attempt.
	RequestTimeout = 10 * time.Second
)

// Client executes authenticated Helix requests with bounded retry and error
// classification. Transient failures (timeout, connection reset, 401 after a
// token refresh) are retried up to MaxRetryCount; definitive rejections
// surface immediately as *APIError.
type Client struct {
	Tokens     *TokenStore
	ClientID   string
	HTTPClient *http.Client
	BaseURL    string // defaults to the Helix endpoint; tests override

	// Zero values fall back to the package constants.
	MaxRetries int
	Delay      time.Duration
	Timeout    time.Duration
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return defaultBaseURL
}

func (c *Client) maxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return MaxRetryCount
}

func (c *Client) delay() time.Duration {
	if c.Delay > 0 {
		return c.Delay
	}
	return RetryDelay
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return RequestTimeout
}

// get performs an authenticated GET against a Helix path and decodes the
// response body into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	body, err := c.do(ctx, http.MethodGet, c.baseURL()+path, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// do runs one logical request through the retry loop. Per attempt: a fresh
// bearer token, a per-attempt timeout; timeouts sleep RetryDelay and retry;
// a 401 invalidates the token and retries immediately (still consuming an
// attempt); any other error status returns *APIError at once. Exhausting the
// budget on connectivity failures returns *NetworkError.
func (c *Client) do(ctx context.Context, method, rawURL string, params url.Values) ([]byte, error) {
	retries := c.maxRetries()
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		tok, err := c.Tokens.Get(ctx)
		if err != nil {
			return nil, err
		}

		body, status, err := c.attempt(ctx, method, rawURL, params, tok)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			telemetry.APIRetryInc()
			if attempt == retries {
				return nil, &NetworkError{Retries: retries, Err: lastErr}
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.delay()):
			}
			continue
		}

		switch {
		case status >= 200 && status < 300:
			return body, nil
		case status == http.StatusUnauthorized:
			c.Tokens.Invalidate()
			lastErr = &APIError{Status: status, Body: string(body)}
			telemetry.APIRetryInc()
			if attempt == retries {
				return nil, lastErr
			}
			slog.Debug("unauthorized response, token invalidated", slog.String("url", rawURL), slog.Int("attempt", attempt))
			continue
		default:
			return nil, &APIError{Status: status, Body: strings.TrimSpace(string(body))}
		}
	}
	return nil, &NetworkError{Retries: retries, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, method, rawURL string, params url.Values, token string) ([]byte, int, error) {
	rctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	req, err := http.NewRequestWithContext(rctx, method, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}
	req.Header.Set("Client-Id", c.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http().Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
