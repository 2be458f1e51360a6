package session

import (
	"context"
	"sync"
	"time"

	"github.com/splax/gameportal/internal/domain"
)

const memorySweepInterval = time.Minute

// MemoryStore keeps sessions in process memory. Sessions do not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
	stopCh  chan struct{}
	once    sync.Once
}

type memoryEntry struct {
	identity  domain.Identity
	expiresAt time.Time
}

// NewMemoryStore starts a MemoryStore with a background sweeper. Call Close to stop it.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *MemoryStore) Get(_ context.Context, token string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[token]
	if !ok {
		return domain.Identity{}, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, token)
		return domain.Identity{}, ErrNotFound
	}
	return entry.identity, nil
}

func (s *MemoryStore) Put(_ context.Context, token string, identity domain.Identity, ttl time.Duration) error {
	entry := memoryEntry{identity: identity}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[token] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.entries, token)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored sessions, expired ones included until swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the sweeper.
func (s *MemoryStore) Close() {
	s.once.Do(func() {
		close(s.stopCh)
	})
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(memorySweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, entry := range s.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(s.entries, token)
		}
	}
}
