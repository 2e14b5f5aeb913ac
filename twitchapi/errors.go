package twitchapi

import (
	"errors"
	"fmt"
)

// Sentinel errors for logical not-found results. Callers match with errors.Is.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrVideoNotFound = errors.New("video not found")
)

// ConfigError indicates missing or malformed credentials. It is fatal at
// startup and carries remediation instructions for the operator.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "twitch credentials not configured: " + e.Reason +
		" (create an application at https://dev.twitch.tv/console and set client_id/client_secret in config/settings.json or TWITCH_CLIENT_ID/TWITCH_CLIENT_SECRET)"
}

// AuthError indicates the client-credentials exchange failed after retries.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "twitch token exchange failed: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// APIError is a definitive rejection from the Helix API (non-401 4xx/5xx).
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("twitch api: status %d", e.Status)
	}
	return fmt.Sprintf("twitch api: status %d: %s", e.Status, e.Body)
}

// NotFound reports whether the rejection was a 404.
func (e *APIError) NotFound() bool { return e.Status == 404 }

// NetworkError indicates a transient connectivity failure that exhausted the
// retry budget. Retries is the number of attempts made.
type NetworkError struct {
	Retries int
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("twitch api: network failure after %d attempts: %v", e.Retries, e.Err)
}
func (e *NetworkError) Unwrap() error { return e.Err }
