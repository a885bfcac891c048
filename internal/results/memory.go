package results

import (
	"context"
	"sync"
	"time"

	"github.com/smukkama/coverage-server/internal/protocol"
)

// MemoryStore is an in-process Store for tests and single-process runs.
// It round-trips results through the same payload codec as the real
// backends.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	payload []byte
	expires time.Time
}

// NewMemoryStore creates an empty store. A non-positive ttl never expires.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Put(_ context.Context, r *protocol.TaskResult) error {
	payload, err := encodePayload(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memoryEntry{payload: payload}
	if s.ttl > 0 {
		entry.expires = s.now().Add(s.ttl)
	}
	s.entries[r.TaskID] = entry
	return nil
}

func (s *MemoryStore) Get(_ context.Context, taskID string) (*protocol.TaskResult, error) {
	s.mu.Lock()
	entry, ok := s.entries[taskID]
	if ok && !entry.expires.IsZero() && !s.now().Before(entry.expires) {
		delete(s.entries, taskID)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return decodePayload(entry.payload)
}

// Len returns the number of stored results.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
