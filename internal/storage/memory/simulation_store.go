package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/storage"
)

// SimulationStore is an in-memory implementation of storage.SimulationStore.
type SimulationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Simulation // keyed by id
}

// NewSimulationStore creates a new in-memory simulation store.
func NewSimulationStore() *SimulationStore {
	return &SimulationStore{
		data: make(map[string]*domain.Simulation),
	}
}

// Insert adds a new simulation. Returns ErrDuplicateKey if id exists.
func (s *SimulationStore) Insert(_ context.Context, sim *domain.Simulation) error {
	if sim == nil || sim.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sim.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[sim.ID] = cloneSimulation(sim)
	return nil
}

// GetByID retrieves a simulation by its ID. Returns ErrNotFound if not exists.
func (s *SimulationStore) GetByID(_ context.Context, id string) (*domain.Simulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sim, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneSimulation(sim), nil
}

// ListByUser retrieves all simulations of a user, newest first.
func (s *SimulationStore) ListByUser(_ context.Context, userID string) ([]*domain.Simulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Simulation
	for _, sim := range s.data {
		if sim.UserID == userID {
			result = append(result, cloneSimulation(sim))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// ListRunningBefore retrieves running simulations started before the given time.
func (s *SimulationStore) ListRunningBefore(_ context.Context, before time.Time) ([]*domain.Simulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Simulation
	for _, sim := range s.data {
		if sim.Status == domain.StatusRunning && sim.StartedAt != nil && sim.StartedAt.Before(before) {
			result = append(result, cloneSimulation(sim))
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// MarkRunning transitions created -> running and sets started_at.
func (s *SimulationStore) MarkRunning(_ context.Context, id string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sim, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	if !sim.Status.CanTransitionTo(domain.StatusRunning) {
		return storage.ErrConflict
	}

	at := startedAt
	sim.Status = domain.StatusRunning
	sim.StartedAt = &at
	return nil
}

// MarkFinished transitions running -> completed|failed.
func (s *SimulationStore) MarkFinished(_ context.Context, id string, status domain.SimulationStatus, at time.Time) error {
	if !status.IsTerminal() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sim, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	if !sim.Status.CanTransitionTo(status) {
		return storage.ErrConflict
	}

	sim.Status = status
	if status == domain.StatusCompleted {
		completedAt := at
		sim.CompletedAt = &completedAt
	}
	return nil
}

// Delete removes a simulation unless it is running.
func (s *SimulationStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sim, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	if sim.Status == domain.StatusRunning {
		return storage.ErrConflict
	}

	delete(s.data, id)
	return nil
}

// cloneSimulation copies a simulation including its pointer fields.
func cloneSimulation(sim *domain.Simulation) *domain.Simulation {
	c := *sim
	if sim.AccountID != nil {
		accountID := *sim.AccountID
		c.AccountID = &accountID
	}
	if sim.StartedAt != nil {
		startedAt := *sim.StartedAt
		c.StartedAt = &startedAt
	}
	if sim.CompletedAt != nil {
		completedAt := *sim.CompletedAt
		c.CompletedAt = &completedAt
	}
	return &c
}

var _ storage.SimulationStore = (*SimulationStore)(nil)
