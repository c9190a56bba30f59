package memory

import (
	"context"
	"sync"
	"time"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/storage"
)

type progressEntry struct {
	sample    domain.ProgressSample
	expiresAt time.Time
}

// ProgressStore is an in-memory implementation of storage.ProgressStore.
// Entries expire after ttl; a zero ttl never expires.
type ProgressStore struct {
	mu   sync.RWMutex
	ttl  time.Duration
	now  func() time.Time
	data map[string]progressEntry
}

// NewProgressStore creates a new in-memory progress store.
func NewProgressStore(ttl time.Duration) *ProgressStore {
	return &ProgressStore{
		ttl:  ttl,
		now:  time.Now,
		data: make(map[string]progressEntry),
	}
}

// Publish overwrites the sample for a simulation.
func (s *ProgressStore) Publish(_ context.Context, simulationID string, sample domain.ProgressSample) error {
	if simulationID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := progressEntry{sample: sample}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.data[simulationID] = entry
	return nil
}

// Get returns the latest sample. Returns ErrNotFound if absent or expired.
func (s *ProgressStore) Get(_ context.Context, simulationID string) (*domain.ProgressSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.data[simulationID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		return nil, storage.ErrNotFound
	}

	sample := entry.sample
	return &sample, nil
}

// Clear removes the sample.
func (s *ProgressStore) Clear(_ context.Context, simulationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, simulationID)
	return nil
}

var _ storage.ProgressStore = (*ProgressStore)(nil)
