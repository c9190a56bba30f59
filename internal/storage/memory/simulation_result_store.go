package memory

import (
	"context"
	"sort"
	"sync"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/storage"
)

// SimulationResultStore is an in-memory implementation of storage.SimulationResultStore.
type SimulationResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SimulationResult // keyed by result_id
}

// NewSimulationResultStore creates a new in-memory result store.
func NewSimulationResultStore() *SimulationResultStore {
	return &SimulationResultStore{
		data: make(map[string]*domain.SimulationResult),
	}
}

// Insert appends a snapshot. Returns ErrDuplicateKey if result_id exists.
func (s *SimulationResultStore) Insert(_ context.Context, r *domain.SimulationResult) error {
	if r == nil || r.ResultID == "" || r.SimulationID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ResultID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.ResultID] = r.Clone()
	return nil
}

// GetBySimulationID retrieves all snapshots ordered by timestamp ASC, seq ASC.
func (s *SimulationResultStore) GetBySimulationID(_ context.Context, simulationID string) ([]*domain.SimulationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SimulationResult
	for _, r := range s.data {
		if r.SimulationID == simulationID {
			result = append(result, r.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TimestampMs != result[j].TimestampMs {
			return result[i].TimestampMs < result[j].TimestampMs
		}
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

// GetLast retrieves the latest snapshot. Returns ErrNotFound if none exist.
func (s *SimulationResultStore) GetLast(_ context.Context, simulationID string) (*domain.SimulationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *domain.SimulationResult
	for _, r := range s.data {
		if r.SimulationID != simulationID {
			continue
		}
		if last == nil || r.TimestampMs > last.TimestampMs ||
			(r.TimestampMs == last.TimestampMs && r.Seq > last.Seq) {
			last = r
		}
	}
	if last == nil {
		return nil, storage.ErrNotFound
	}
	return last.Clone(), nil
}

// DeleteBySimulationID removes all snapshots of a simulation.
func (s *SimulationResultStore) DeleteBySimulationID(_ context.Context, simulationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.data {
		if r.SimulationID == simulationID {
			delete(s.data, id)
		}
	}
	return nil
}

var _ storage.SimulationResultStore = (*SimulationResultStore)(nil)
