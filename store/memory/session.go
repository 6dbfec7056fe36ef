// Package memory provides in-memory implementations of store interfaces.
package memory

import (
	"context"
	"sync"
	"time"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
)

// sessionEntry represents a cached token with its expiration.
type sessionEntry struct {
	Token     string
	ExpiresAt time.Time
}

// SessionStore is an in-memory implementation of walletsdk.SessionStore.
// Access is protected by sync.RWMutex for thread safety.
type SessionStore struct {
	sessions map[string]sessionEntry
	mu       sync.RWMutex
	now      func() time.Time
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]sessionEntry),
		now:      time.Now,
	}
}

// Put records a token for key, replacing any previous one.
// Performs lazy cleanup of expired tokens.
func (s *SessionStore) Put(ctx context.Context, key string, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, entry := range s.sessions {
		if now.After(entry.ExpiresAt) {
			delete(s.sessions, k)
		}
	}

	s.sessions[key] = sessionEntry{
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return nil
}

// Get returns the token stored for key. Expired tokens are reported as missing.
func (s *SessionStore) Get(ctx context.Context, key string) (string, time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.sessions[key]
	if !exists || !s.now().Before(entry.ExpiresAt) {
		return "", time.Time{}, false, nil
	}
	return entry.Token, entry.ExpiresAt, true, nil
}

// Delete removes the token for key.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)
	return nil
}

// Verify that SessionStore implements walletsdk.SessionStore
var _ walletsdk.SessionStore = (*SessionStore)(nil)
