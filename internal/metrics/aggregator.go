package metrics

import (
	"context"
	"errors"
	"sort"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/storage"
)

// ErrNoRuns is returned when no finished runs are available for aggregation.
var ErrNoRuns = errors.New("no finished runs available for aggregation")

// Aggregator computes per (automation kind, regime) aggregates from run summaries.
type Aggregator struct {
	summaryStore storage.RunSummaryStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(summaryStore storage.RunSummaryStore) *Aggregator {
	return &Aggregator{summaryStore: summaryStore}
}

// ComputeAll loads every run summary and aggregates it.
// Returns ErrNoRuns if the store is empty.
func (a *Aggregator) ComputeAll(ctx context.Context) ([]*domain.StrategyAggregate, error) {
	summaries, err := a.summaryStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, ErrNoRuns
	}
	return Aggregate(summaries), nil
}

type aggregateKey struct {
	kind   domain.AutomationKind
	regime domain.PriceRegime
}

// Aggregate groups summaries by (automation kind, regime).
// P&L statistics cover completed runs only; counts cover all runs.
// Output is sorted by kind, then regime.
func Aggregate(summaries []*domain.RunSummary) []*domain.StrategyAggregate {
	groups := make(map[aggregateKey][]*domain.RunSummary)
	for _, s := range summaries {
		key := aggregateKey{kind: s.AutomationKind, regime: s.PriceRegime}
		groups[key] = append(groups[key], s)
	}

	result := make([]*domain.StrategyAggregate, 0, len(groups))
	for key, group := range groups {
		result = append(result, computeGroup(key, group))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].AutomationKind != result[j].AutomationKind {
			return result[i].AutomationKind < result[j].AutomationKind
		}
		return result[i].PriceRegime < result[j].PriceRegime
	})
	return result
}

// computeGroup calculates one aggregate row.
func computeGroup(key aggregateKey, group []*domain.RunSummary) *domain.StrategyAggregate {
	agg := &domain.StrategyAggregate{
		AutomationKind: key.kind,
		PriceRegime:    key.regime,
		TotalRuns:      len(group),
	}

	var pnls, successRates, actions []float64
	for _, s := range group {
		switch s.Status {
		case domain.StatusCompleted:
			agg.CompletedRuns++
		case domain.StatusFailed:
			agg.FailedRuns++
			continue
		}
		pnls = append(pnls, s.TotalPnL)
		successRates = append(successRates, s.SuccessRate)
		actions = append(actions, float64(s.TotalActions))
		if s.MaxDrawdown < agg.WorstDrawdown {
			agg.WorstDrawdown = s.MaxDrawdown
		}
	}

	if len(pnls) == 0 {
		return agg
	}

	sorted := sortedCopy(pnls)
	agg.PnLMean = computeMean(pnls)
	agg.PnLMedian = computePercentile(sorted, 0.50)
	agg.PnLP10 = computePercentile(sorted, 0.10)
	agg.PnLP90 = computePercentile(sorted, 0.90)
	agg.PnLMin = sorted[0]
	agg.PnLMax = sorted[len(sorted)-1]
	agg.PnLStddev = computeStddev(pnls, agg.PnLMean)
	agg.MeanSuccessRate = computeMean(successRates)
	agg.MeanActions = computeMean(actions)
	return agg
}
