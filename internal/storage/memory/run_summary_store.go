package memory

import (
	"context"
	"sort"
	"sync"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/storage"
)

// RunSummaryStore is an in-memory implementation of storage.RunSummaryStore.
type RunSummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunSummary // keyed by simulation_id
}

// NewRunSummaryStore creates a new in-memory run summary store.
func NewRunSummaryStore() *RunSummaryStore {
	return &RunSummaryStore{
		data: make(map[string]*domain.RunSummary),
	}
}

// Insert adds a summary. Returns ErrDuplicateKey if simulation_id exists.
func (s *RunSummaryStore) Insert(_ context.Context, sum *domain.RunSummary) error {
	if sum == nil || sum.SimulationID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sum.SimulationID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *sum
	s.data[sum.SimulationID] = &copy
	return nil
}

// GetBySimulationID retrieves a summary. Returns ErrNotFound if not exists.
func (s *RunSummaryStore) GetBySimulationID(_ context.Context, simulationID string) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, exists := s.data[simulationID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *sum
	return &copy, nil
}

// GetAll retrieves all summaries ordered by finished_at ASC, simulation_id ASC.
func (s *RunSummaryStore) GetAll(_ context.Context) ([]*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RunSummary, 0, len(s.data))
	for _, sum := range s.data {
		copy := *sum
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].FinishedAtMs != result[j].FinishedAtMs {
			return result[i].FinishedAtMs < result[j].FinishedAtMs
		}
		return result[i].SimulationID < result[j].SimulationID
	})

	return result, nil
}

// DeleteBySimulationID removes the summary of a simulation.
func (s *RunSummaryStore) DeleteBySimulationID(_ context.Context, simulationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, simulationID)
	return nil
}

var _ storage.RunSummaryStore = (*RunSummaryStore)(nil)
