package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/metrics"
	"btc-scenario-lab/internal/observability"
	"btc-scenario-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	simulationStore storage.SimulationStore
	resultStore     storage.SimulationResultStore
	summaryStore    storage.RunSummaryStore
	now             func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. summaryStore may be nil when
// only per-simulation reports are needed.
func NewGenerator(
	simulationStore storage.SimulationStore,
	resultStore storage.SimulationResultStore,
	summaryStore storage.RunSummaryStore,
) *Generator {
	return &Generator{
		simulationStore: simulationStore,
		resultStore:     resultStore,
		summaryStore:    summaryStore,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces the report of one simulation. Failed and partial runs
// are reported with whatever was persisted.
func (g *Generator) Generate(ctx context.Context, simulationID string) (*Report, error) {
	sim, err := g.simulationStore.GetByID(ctx, simulationID)
	if err != nil {
		return nil, fmt.Errorf("load simulation: %w", err)
	}

	results, err := g.resultStore.GetBySimulationID(ctx, simulationID)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}

	var actions []ActionRow
	for _, r := range results {
		if !r.HasAction() {
			continue
		}
		actions = append(actions, ActionRow{
			Seq:         r.Seq,
			TimestampMs: r.TimestampMs,
			Kind:        *r.ActionKind,
			Price:       r.Price,
			Balance:     r.Balance,
			Details:     r.ActionDetails,
		})
	}

	observability.RecordReportGenerated()

	return &Report{
		GeneratedAt: g.now(),
		Simulation:  sim,
		Summary:     metrics.Summarize(results),
		Prices:      priceStats(results),
		Actions:     actions,
		Results:     results,
	}, nil
}

// GenerateAggregate produces the cross-run report. An empty summary store
// yields a report with no rows.
func (g *Generator) GenerateAggregate(ctx context.Context) (*AggregateReport, error) {
	if g.summaryStore == nil {
		return nil, errors.New("no run summary store configured")
	}

	aggs, err := metrics.NewAggregator(g.summaryStore).ComputeAll(ctx)
	if err != nil && !errors.Is(err, metrics.ErrNoRuns) {
		return nil, fmt.Errorf("aggregate runs: %w", err)
	}

	return &AggregateReport{
		GeneratedAt: g.now(),
		Aggregates:  aggs,
	}, nil
}

// priceStats computes price statistics over the snapshots.
func priceStats(results []*domain.SimulationResult) PriceStats {
	if len(results) == 0 {
		return PriceStats{}
	}

	s := PriceStats{
		Snapshots:  len(results),
		FirstPrice: results[0].Price,
		LastPrice:  results[len(results)-1].Price,
		MinPrice:   results[0].Price,
		MaxPrice:   results[0].Price,
	}
	for _, r := range results[1:] {
		if r.Price < s.MinPrice {
			s.MinPrice = r.Price
		}
		if r.Price > s.MaxPrice {
			s.MaxPrice = r.Price
		}
	}
	if s.FirstPrice > 0 {
		s.ChangePct = (s.LastPrice - s.FirstPrice) / s.FirstPrice * 100
	}
	return s
}
