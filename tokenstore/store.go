// Package tokenstore keeps the access and refresh tokens of the signed-in
// user in memory and mirrors them to durable storage.
package tokenstore

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Storage keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// Credentials is the pair of tokens held for the current user. An empty
// string means the token is absent.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Store owns the user's credentials. Construct one per process and share it
// with everything that issues requests.
type Store struct {
	backend Backend
	log     zerolog.Logger

	mu    sync.RWMutex
	creds Credentials
}

// New returns a Store backed by backend. Call Load to pick up persisted
// tokens.
func New(backend Backend, log zerolog.Logger) *Store {
	return &Store{backend: backend, log: log}
}

// Load replaces the in-memory tokens with the persisted ones. A read failure
// is logged and leaves both tokens empty.
func (s *Store) Load() {
	values, err := s.backend.Read(KeyAccessToken, KeyRefreshToken)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to load tokens")
		values = nil
	}

	s.mu.Lock()
	s.creds = Credentials{
		AccessToken:  values[KeyAccessToken],
		RefreshToken: values[KeyRefreshToken],
	}
	s.mu.Unlock()
}

// Save persists accessToken and, when non-empty, refreshToken. Memory is only
// updated once the backend accepted the write.
func (s *Store) Save(accessToken, refreshToken string) error {
	values := map[string]string{KeyAccessToken: accessToken}
	if refreshToken != "" {
		values[KeyRefreshToken] = refreshToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Write(values); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	s.creds.AccessToken = accessToken
	if refreshToken != "" {
		s.creds.RefreshToken = refreshToken
	}

	s.log.Debug().Bool("rotated_refresh", refreshToken != "").Msg("tokens saved")
	return nil
}

// Clear removes both tokens from storage and memory. Clearing an empty store
// is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(KeyAccessToken, KeyRefreshToken); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	s.creds = Credentials{}

	s.log.Debug().Msg("tokens cleared")
	return nil
}

// IsAuthenticated reports whether an access token is held in memory.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.AccessToken != ""
}

// Credentials returns a snapshot of the in-memory tokens.
func (s *Store) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}
