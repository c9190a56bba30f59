package reporting

import (
	"time"

	"btc-scenario-lab/internal/domain"
)

// Report is the per-simulation report.
type Report struct {
	GeneratedAt time.Time
	Simulation  *domain.Simulation

	// Summary of the persisted series (zero when empty)
	Summary domain.Summary

	// Price statistics over the snapshots
	Prices PriceStats

	// Snapshots that carry an action, in series order
	Actions []ActionRow

	// Full series, exported as CSV
	Results []*domain.SimulationResult
}

// PriceStats summarizes the sampled prices of the persisted snapshots.
type PriceStats struct {
	Snapshots  int
	FirstPrice float64
	LastPrice  float64
	MinPrice   float64
	MaxPrice   float64
	ChangePct  float64 // (last - first) / first * 100
}

// ActionRow is one applied action as shown in the report.
type ActionRow struct {
	Seq         int
	TimestampMs int64
	Kind        domain.ActionKind
	Price       float64
	Balance     float64
	Details     map[string]float64
}

// AggregateReport is the cross-run report.
type AggregateReport struct {
	GeneratedAt time.Time
	Aggregates  []*domain.StrategyAggregate
}
