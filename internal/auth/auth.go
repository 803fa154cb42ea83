// Package auth provides request authentication for the sysagent tool API.
package auth

import (
	"context"
)

// AuthMode defines the authentication mode.
type AuthMode string

const (
	// AuthModeNone disables authentication (the default).
	AuthModeNone AuthMode = "none"
	// AuthModeAPIKey enables shared API key authentication.
	AuthModeAPIKey AuthMode = "api_key"
)

// Config holds authentication configuration.
type Config struct {
	// Mode is the authentication mode (none, api_key).
	Mode AuthMode `json:"mode"`
	// APIKeys is a list of valid API keys (for api_key mode).
	APIKeys []string `json:"api_keys,omitempty"`
	// SkipPaths are paths that don't require authentication.
	// /health and /metrics are always skipped.
	SkipPaths []string `json:"skip_paths,omitempty"`
}

// DefaultConfig returns a default configuration with auth disabled.
func DefaultConfig() *Config {
	return &Config{
		Mode:      AuthModeNone,
		SkipPaths: []string{"/health", "/metrics"},
	}
}

// Caller represents an authenticated API caller.
type Caller struct {
	// ID is the caller identifier (API key hash prefix).
	ID string
}

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey struct{ name string }

var (
	callerContextKey = &contextKey{"caller"}
)

// SetCallerInContext stores the caller in the context.
func SetCallerInContext(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// GetCallerFromContext retrieves the caller from the context.
// Returns nil if no caller is set.
func GetCallerFromContext(ctx context.Context) *Caller {
	caller, _ := ctx.Value(callerContextKey).(*Caller)
	return caller
}
