package auth

import (
	"sync"
	"time"
)

// RevocationStore remembers session IDs ended by logout until the token
// would have expired anyway. Safe for concurrent use.
type RevocationStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time // session ID -> token expiry
	now     func() time.Time
	done    chan struct{}
}

// NewRevocationStore creates a store and starts a goroutine that drops
// expired entries every interval. Call Close to stop it.
func NewRevocationStore(interval time.Duration) *RevocationStore {
	s := &RevocationStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go s.cleanupLoop(interval)
	return s
}

// Revoke marks a session ID as ended.
func (s *RevocationStore) Revoke(id string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = expiresAt
}

// IsRevoked reports whether id has been revoked.
func (s *RevocationStore) IsRevoked(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

// Count returns the number of tracked revocations.
func (s *RevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *RevocationStore) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *RevocationStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
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

func (s *RevocationStore) cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, expires := range s.entries {
		if now.After(expires) {
			delete(s.entries, id)
		}
	}
}
