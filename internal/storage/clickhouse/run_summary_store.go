package clickhouse

import (
	"context"
	"fmt"
	"time"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/observability"
	"btc-scenario-lab/internal/storage"
)

// RunSummaryStore implements storage.RunSummaryStore using ClickHouse.
type RunSummaryStore struct {
	conn *Conn
}

// NewRunSummaryStore creates a new RunSummaryStore.
func NewRunSummaryStore(conn *Conn) *RunSummaryStore {
	return &RunSummaryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RunSummaryStore = (*RunSummaryStore)(nil)

const runSummaryColumns = `
	simulation_id, user_id, automation_kind, price_regime, status,
	initial_price, duration_sec, samples, snapshots, finished_at_ms,
	total_actions, success_rate, total_pnl, max_drawdown, final_balance
`

// Insert adds a summary. Returns ErrDuplicateKey if simulation_id exists.
func (s *RunSummaryStore) Insert(ctx context.Context, r *domain.RunSummary) (err error) {
	defer func(start time.Time) {
		observability.RecordDBQuery("clickhouse", "insert_run_summary", time.Since(start).Seconds(), err)
	}(time.Now())

	// ReplacingMergeTree would silently replace, inserts stay append-only.
	exists, err := s.exists(ctx, r.SimulationID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO run_summaries (` + runSummaryColumns + `) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?,
			?, ?, ?, ?, ?
		)
	`

	err = s.conn.Exec(ctx, query,
		r.SimulationID, r.UserID, string(r.AutomationKind), string(r.PriceRegime), string(r.Status),
		r.InitialPrice, uint32(r.DurationSec), uint32(r.Samples), uint32(r.Snapshots), r.FinishedAtMs,
		uint32(r.TotalActions), r.SuccessRate, r.TotalPnL, r.MaxDrawdown, r.FinalBalance,
	)
	if err != nil {
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}

// GetBySimulationID retrieves a summary. Returns ErrNotFound if not exists.
func (s *RunSummaryStore) GetBySimulationID(ctx context.Context, simulationID string) (*domain.RunSummary, error) {
	query := `
		SELECT ` + runSummaryColumns + `
		FROM run_summaries FINAL
		WHERE simulation_id = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, simulationID)
	if err != nil {
		return nil, fmt.Errorf("query run summary: %w", err)
	}
	defer rows.Close()

	summaries, err := scanRunSummaries(rows)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, storage.ErrNotFound
	}
	return summaries[0], nil
}

// GetAll retrieves all summaries ordered by finished_at ASC, simulation_id ASC.
func (s *RunSummaryStore) GetAll(ctx context.Context) ([]*domain.RunSummary, error) {
	query := `
		SELECT ` + runSummaryColumns + `
		FROM run_summaries FINAL
		ORDER BY finished_at_ms ASC, simulation_id ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all run summaries: %w", err)
	}
	defer rows.Close()

	return scanRunSummaries(rows)
}

// DeleteBySimulationID removes the summary of a simulation.
func (s *RunSummaryStore) DeleteBySimulationID(ctx context.Context, simulationID string) error {
	if err := s.conn.Exec(ctx, `DELETE FROM run_summaries WHERE simulation_id = ?`, simulationID); err != nil {
		return fmt.Errorf("delete run summary: %w", err)
	}
	return nil
}

// exists checks if a summary for the simulation exists.
func (s *RunSummaryStore) exists(ctx context.Context, simulationID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM run_summaries FINAL WHERE simulation_id = ?`, simulationID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanRunSummaries scans multiple rows into a slice.
func scanRunSummaries(rows chRows) ([]*domain.RunSummary, error) {
	var summaries []*domain.RunSummary

	for rows.Next() {
		var r domain.RunSummary
		var kind, regime, status string
		var durationSec, samples, snapshots, totalActions uint32

		err := rows.Scan(
			&r.SimulationID, &r.UserID, &kind, &regime, &status,
			&r.InitialPrice, &durationSec, &samples, &snapshots, &r.FinishedAtMs,
			&totalActions, &r.SuccessRate, &r.TotalPnL, &r.MaxDrawdown, &r.FinalBalance,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run summary row: %w", err)
		}

		r.AutomationKind = domain.AutomationKind(kind)
		r.PriceRegime = domain.PriceRegime(regime)
		r.Status = domain.SimulationStatus(status)
		r.DurationSec = int(durationSec)
		r.Samples = int(samples)
		r.Snapshots = int(snapshots)
		r.TotalActions = int(totalActions)
		summaries = append(summaries, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run summary rows: %w", err)
	}

	return summaries, nil
}
