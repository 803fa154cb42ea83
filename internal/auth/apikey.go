package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// APIKeyAuthenticator validates shared API keys. Only key hashes are
// held in memory.
type APIKeyAuthenticator struct {
	keyHashes map[string]bool
}

// NewAPIKeyAuthenticator builds an authenticator accepting the keys
// listed in config.
func NewAPIKeyAuthenticator(config *Config) *APIKeyAuthenticator {
	hashes := make(map[string]bool, len(config.APIKeys))
	for _, key := range config.APIKeys {
		hashes[hashKey(key)] = true
	}
	return &APIKeyAuthenticator{keyHashes: hashes}
}

// Authenticate resolves the request's API key to a Caller. The key is
// read from X-API-Key first, then from an Authorization bearer token.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (*Caller, error) {
	key := keyFromRequest(r)
	if key == "" {
		return nil, ErrMissingCredentials
	}

	hash := hashKey(key)
	if !a.keyHashes[hash] {
		return nil, ErrInvalidCredentials
	}

	// The hash prefix identifies the caller in logs without exposing
	// the key.
	return &Caller{ID: hash[:16]}, nil
}

func keyFromRequest(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	const bearerPrefix = "Bearer "
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimPrefix(auth, bearerPrefix)
	}
	return ""
}

func hashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
