package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/storage"
)

// SimulationResultStore implements storage.SimulationResultStore using PostgreSQL.
type SimulationResultStore struct {
	pool *Pool
}

// NewSimulationResultStore creates a new SimulationResultStore.
func NewSimulationResultStore(pool *Pool) *SimulationResultStore {
	return &SimulationResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SimulationResultStore = (*SimulationResultStore)(nil)

// Insert appends a snapshot. Returns ErrDuplicateKey if result_id exists
// and ErrNotFound if the owning simulation no longer exists.
func (s *SimulationResultStore) Insert(ctx context.Context, r *domain.SimulationResult) (err error) {
	defer func(start time.Time) { observe("insert_result", start, err) }(time.Now())

	var details []byte
	if r.ActionDetails != nil {
		details, err = json.Marshal(r.ActionDetails)
		if err != nil {
			return fmt.Errorf("marshal action details: %w", err)
		}
	}

	var actionKind *string
	if r.HasAction() {
		kind := string(*r.ActionKind)
		actionKind = &kind
	}

	query := `
		INSERT INTO simulation_results (
			result_id, simulation_id, seq, timestamp_ms, price,
			action_kind, action_details,
			balance, position_size, unrealized_pnl, margin_level,
			success_rate, action_count
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9, $10, $11,
			$12, $13
		)
	`

	_, err = s.pool.Exec(ctx, query,
		r.ResultID, r.SimulationID, r.Seq, r.TimestampMs, r.Price,
		actionKind, details,
		r.Balance, r.PositionSize, r.UnrealizedPnL, r.MarginLevel,
		r.SuccessRate, r.ActionCount,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isForeignKeyError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("insert simulation result: %w", err)
	}
	return nil
}

// GetBySimulationID retrieves all snapshots ordered by timestamp ASC, seq ASC.
func (s *SimulationResultStore) GetBySimulationID(ctx context.Context, simulationID string) ([]*domain.SimulationResult, error) {
	query := `
		SELECT
			result_id, simulation_id, seq, timestamp_ms, price,
			action_kind, action_details,
			balance, position_size, unrealized_pnl, margin_level,
			success_rate, action_count
		FROM simulation_results
		WHERE simulation_id = $1
		ORDER BY timestamp_ms ASC, seq ASC
	`

	rows, err := s.pool.Query(ctx, query, simulationID)
	if err != nil {
		return nil, fmt.Errorf("get simulation results: %w", err)
	}
	defer rows.Close()

	return scanSimulationResults(rows)
}

// GetLast retrieves the latest snapshot. Returns ErrNotFound if none exist.
func (s *SimulationResultStore) GetLast(ctx context.Context, simulationID string) (*domain.SimulationResult, error) {
	query := `
		SELECT
			result_id, simulation_id, seq, timestamp_ms, price,
			action_kind, action_details,
			balance, position_size, unrealized_pnl, margin_level,
			success_rate, action_count
		FROM simulation_results
		WHERE simulation_id = $1
		ORDER BY timestamp_ms DESC, seq DESC
		LIMIT 1
	`

	rows, err := s.pool.Query(ctx, query, simulationID)
	if err != nil {
		return nil, fmt.Errorf("get last simulation result: %w", err)
	}
	defer rows.Close()

	results, err := scanSimulationResults(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, storage.ErrNotFound
	}
	return results[0], nil
}

// DeleteBySimulationID removes all snapshots of a simulation.
func (s *SimulationResultStore) DeleteBySimulationID(ctx context.Context, simulationID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM simulation_results WHERE simulation_id = $1`, simulationID); err != nil {
		return fmt.Errorf("delete simulation results: %w", err)
	}
	return nil
}

// scanSimulationResults scans multiple rows into a slice of SimulationResult.
func scanSimulationResults(rows pgx.Rows) ([]*domain.SimulationResult, error) {
	var results []*domain.SimulationResult

	for rows.Next() {
		var r domain.SimulationResult
		var actionKind *string
		var details []byte

		err := rows.Scan(
			&r.ResultID, &r.SimulationID, &r.Seq, &r.TimestampMs, &r.Price,
			&actionKind, &details,
			&r.Balance, &r.PositionSize, &r.UnrealizedPnL, &r.MarginLevel,
			&r.SuccessRate, &r.ActionCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan simulation result row: %w", err)
		}

		if actionKind != nil {
			kind := domain.ActionKind(*actionKind)
			r.ActionKind = &kind
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &r.ActionDetails); err != nil {
				return nil, fmt.Errorf("unmarshal action details: %w", err)
			}
		}

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate simulation result rows: %w", err)
	}

	return results, nil
}
