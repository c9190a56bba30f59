package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/storage"
)

// SimulationStore implements storage.SimulationStore using PostgreSQL.
type SimulationStore struct {
	pool *Pool
}

// NewSimulationStore creates a new SimulationStore.
func NewSimulationStore(pool *Pool) *SimulationStore {
	return &SimulationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SimulationStore = (*SimulationStore)(nil)

const simulationColumns = `
	id, user_id, name, automation_kind, price_regime,
	initial_price, duration_seconds, account_id, environment, seed,
	status, created_at, started_at, completed_at
`

// Insert adds a new simulation. Returns ErrDuplicateKey if id exists.
func (s *SimulationStore) Insert(ctx context.Context, sim *domain.Simulation) (err error) {
	defer func(start time.Time) { observe("insert_simulation", start, err) }(time.Now())

	query := `
		INSERT INTO simulations (` + simulationColumns + `) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14
		)
	`

	_, err = s.pool.Exec(ctx, query,
		sim.ID, sim.UserID, sim.Name, string(sim.AutomationKind), string(sim.PriceRegime),
		sim.InitialPrice, sim.DurationSeconds, sim.AccountID, sim.Environment, sim.Seed,
		string(sim.Status), sim.CreatedAt, sim.StartedAt, sim.CompletedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert simulation: %w", err)
	}
	return nil
}

// GetByID retrieves a simulation by its ID. Returns ErrNotFound if not exists.
func (s *SimulationStore) GetByID(ctx context.Context, id string) (*domain.Simulation, error) {
	query := `SELECT ` + simulationColumns + ` FROM simulations WHERE id = $1`

	sim, err := scanSimulation(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get simulation by id: %w", err)
	}
	return sim, nil
}

// ListByUser retrieves all simulations of a user, newest first.
func (s *SimulationStore) ListByUser(ctx context.Context, userID string) ([]*domain.Simulation, error) {
	query := `
		SELECT ` + simulationColumns + `
		FROM simulations
		WHERE user_id = $1
		ORDER BY created_at DESC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list simulations by user: %w", err)
	}
	defer rows.Close()

	var sims []*domain.Simulation
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan simulation row: %w", err)
		}
		sims = append(sims, sim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate simulation rows: %w", err)
	}
	return sims, nil
}

// ListRunningBefore retrieves running simulations started before the given time.
func (s *SimulationStore) ListRunningBefore(ctx context.Context, before time.Time) ([]*domain.Simulation, error) {
	query := `
		SELECT ` + simulationColumns + `
		FROM simulations
		WHERE status = $1 AND started_at < $2
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(domain.StatusRunning), before)
	if err != nil {
		return nil, fmt.Errorf("list running simulations: %w", err)
	}
	defer rows.Close()

	var sims []*domain.Simulation
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan simulation row: %w", err)
		}
		sims = append(sims, sim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate simulation rows: %w", err)
	}
	return sims, nil
}

// MarkRunning transitions created -> running and sets started_at.
func (s *SimulationStore) MarkRunning(ctx context.Context, id string, startedAt time.Time) (err error) {
	defer func(start time.Time) { observe("mark_running", start, err) }(time.Now())

	query := `
		UPDATE simulations
		SET status = $2, started_at = $3
		WHERE id = $1 AND status = $4
	`

	tag, err := s.pool.Exec(ctx, query, id, string(domain.StatusRunning), startedAt, string(domain.StatusCreated))
	if err != nil {
		return fmt.Errorf("mark simulation running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrConflict(ctx, id)
	}
	return nil
}

// MarkFinished transitions running -> completed|failed.
// completed_at is only written for completed.
func (s *SimulationStore) MarkFinished(ctx context.Context, id string, status domain.SimulationStatus, at time.Time) (err error) {
	if !status.IsTerminal() {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("mark_finished", start, err) }(time.Now())

	var completedAt *time.Time
	if status == domain.StatusCompleted {
		completedAt = &at
	}

	query := `
		UPDATE simulations
		SET status = $2, completed_at = $3
		WHERE id = $1 AND status = $4
	`

	tag, err := s.pool.Exec(ctx, query, id, string(status), completedAt, string(domain.StatusRunning))
	if err != nil {
		return fmt.Errorf("mark simulation finished: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrConflict(ctx, id)
	}
	return nil
}

// Delete removes a simulation unless it is running.
// Result rows are removed by the foreign key cascade.
func (s *SimulationStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM simulations WHERE id = $1 AND status <> $2`

	tag, err := s.pool.Exec(ctx, query, id, string(domain.StatusRunning))
	if err != nil {
		return fmt.Errorf("delete simulation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrConflict(ctx, id)
	}
	return nil
}

// missingOrConflict distinguishes a missing row from a status mismatch.
func (s *SimulationStore) missingOrConflict(ctx context.Context, id string) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM simulations WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("check simulation status: %w", err)
	}
	return storage.ErrConflict
}

// scanSimulation scans one row into a Simulation.
func scanSimulation(row pgx.Row) (*domain.Simulation, error) {
	var sim domain.Simulation
	var kind, regime, status string

	err := row.Scan(
		&sim.ID, &sim.UserID, &sim.Name, &kind, &regime,
		&sim.InitialPrice, &sim.DurationSeconds, &sim.AccountID, &sim.Environment, &sim.Seed,
		&status, &sim.CreatedAt, &sim.StartedAt, &sim.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	sim.AutomationKind = domain.AutomationKind(kind)
	sim.PriceRegime = domain.PriceRegime(regime)
	sim.Status = domain.SimulationStatus(status)
	return &sim, nil
}
