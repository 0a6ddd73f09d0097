package auth

import (
	"sync"
	"time"
)

// revocationEntry stores metadata about a revoked JWT token.
type revocationEntry struct {
	ExpiresAt time.Time
}

// TokenRevocationStore manages revoked JWT tokens in memory. It is the
// injected revocation collaborator used by the auth middleware: logout
// inserts the token's JTI, authentication checks it. Entries are cleaned
// up automatically once the token would have expired anyway. Thread-safe
// for concurrent access.
type TokenRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]revocationEntry // JTI -> entry
	done    chan struct{}
}

// NewTokenRevocationStore creates a new store and starts a background
// goroutine that cleans up expired entries every 5 minutes.
func NewTokenRevocationStore() *TokenRevocationStore {
	s := &TokenRevocationStore{
		entries: make(map[string]revocationEntry),
		done:    make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Revoke adds a token's JTI to the revocation list. The expiresAt time
// indicates when the token would have naturally expired; the entry is
// dropped after that point since an expired token fails validation anyway.
func (s *TokenRevocationStore) Revoke(jti string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jti] = revocationEntry{ExpiresAt: expiresAt}
}

// IsRevoked checks if a token JTI has been revoked.
func (s *TokenRevocationStore) IsRevoked(jti string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[jti]
	return ok
}

// Count returns the number of currently revoked tokens.
func (s *TokenRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// RevocationInfo is a public representation of a revocation entry.
type RevocationInfo struct {
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Entries returns a snapshot of all current revocation entries.
func (s *TokenRevocationStore) Entries() []RevocationInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]RevocationInfo, 0, len(s.entries))
	for jti, entry := range s.entries {
		result = append(result, RevocationInfo{
			JTI:       jti,
			ExpiresAt: entry.ExpiresAt,
		})
	}
	return result
}

// Close stops the background cleanup goroutine. It is safe to call
// multiple times but only the first call has effect.
func (s *TokenRevocationStore) Close() {
	select {
	case <-s.done:
		// already closed
	default:
		close(s.done)
	}
}

// cleanupLoop periodically removes expired revocation entries.
func (s *TokenRevocationStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes revocation entries whose tokens have expired.
func (s *TokenRevocationStore) cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, jti)
		}
	}
}
