package storage

import (
	"context"
	"time"

	"btc-scenario-lab/internal/domain"
)

// SimulationStore provides access to simulations storage.
type SimulationStore interface {
	// Insert adds a new simulation. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, s *domain.Simulation) error

	// GetByID retrieves a simulation by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Simulation, error)

	// ListByUser retrieves all simulations of a user, ordered by created_at DESC.
	ListByUser(ctx context.Context, userID string) ([]*domain.Simulation, error)

	// ListRunningBefore retrieves running simulations started before the given time.
	ListRunningBefore(ctx context.Context, before time.Time) ([]*domain.Simulation, error)

	// MarkRunning transitions created -> running and sets started_at.
	// Returns ErrConflict if the simulation is not in created status.
	MarkRunning(ctx context.Context, id string, startedAt time.Time) error

	// MarkFinished transitions running -> completed|failed.
	// completed_at is set only for completed. Returns ErrConflict if not running.
	MarkFinished(ctx context.Context, id string, status domain.SimulationStatus, at time.Time) error

	// Delete removes a simulation unless it is running.
	// Returns ErrConflict if running, ErrNotFound if missing.
	Delete(ctx context.Context, id string) error
}

// SimulationResultStore provides access to simulation_results storage.
type SimulationResultStore interface {
	// Insert appends a snapshot. Returns ErrDuplicateKey if result_id exists.
	Insert(ctx context.Context, r *domain.SimulationResult) error

	// GetBySimulationID retrieves all snapshots ordered by timestamp ASC, seq ASC.
	GetBySimulationID(ctx context.Context, simulationID string) ([]*domain.SimulationResult, error)

	// GetLast retrieves the latest snapshot by timestamp, seq.
	// Returns ErrNotFound if the simulation has none.
	GetLast(ctx context.Context, simulationID string) (*domain.SimulationResult, error)

	// DeleteBySimulationID removes all snapshots of a simulation.
	DeleteBySimulationID(ctx context.Context, simulationID string) error
}

// ProgressStore is the short-TTL key space for live progress.
type ProgressStore interface {
	// Publish overwrites the progress and current_price fields for a simulation.
	Publish(ctx context.Context, simulationID string, sample domain.ProgressSample) error

	// Get returns the latest sample. Returns ErrNotFound if absent or expired.
	Get(ctx context.Context, simulationID string) (*domain.ProgressSample, error)

	// Clear removes the sample.
	Clear(ctx context.Context, simulationID string) error
}

// RunSummaryStore provides access to run_summaries analytics storage.
type RunSummaryStore interface {
	// Insert adds a summary. Returns ErrDuplicateKey if simulation_id exists.
	Insert(ctx context.Context, s *domain.RunSummary) error

	// GetBySimulationID retrieves a summary. Returns ErrNotFound if not exists.
	GetBySimulationID(ctx context.Context, simulationID string) (*domain.RunSummary, error)

	// GetAll retrieves all summaries ordered by finished_at ASC, simulation_id ASC.
	GetAll(ctx context.Context) ([]*domain.RunSummary, error)

	// DeleteBySimulationID removes the summary of a simulation.
	DeleteBySimulationID(ctx context.Context, simulationID string) error
}
