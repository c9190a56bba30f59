package reporting

import (
	"fmt"
	"strings"

	"btc-scenario-lab/internal/domain"
)

// RenderResultsCSV renders the snapshot series as CSV string.
func RenderResultsCSV(results []*domain.SimulationResult) string {
	var sb strings.Builder

	// Header
	sb.WriteString("seq,timestamp_ms,price,action,action_details,")
	sb.WriteString("balance,position_size,unrealized_pnl,margin_level,")
	sb.WriteString("success_rate,action_count\n")

	// Rows
	for _, r := range results {
		action := ""
		if r.HasAction() {
			action = string(*r.ActionKind)
		}
		sb.WriteString(fmt.Sprintf("%d,%d,%s,%s,%s,%s,%s,%s,%s,%s,%d\n",
			r.Seq,
			r.TimestampMs,
			money(r.Price),
			action,
			details(r.ActionDetails),
			money(r.Balance),
			quantity(r.PositionSize),
			money(r.UnrealizedPnL),
			pct(r.MarginLevel),
			pct(r.SuccessRate),
			r.ActionCount,
		))
	}

	return sb.String()
}

// RenderAggregatesCSV renders cross-run aggregates as CSV string.
func RenderAggregatesCSV(aggs []*domain.StrategyAggregate) string {
	var sb strings.Builder

	sb.WriteString("automation_kind,price_regime,total_runs,completed_runs,failed_runs,")
	sb.WriteString("pnl_mean,pnl_median,pnl_p10,pnl_p90,pnl_min,pnl_max,pnl_stddev,")
	sb.WriteString("worst_drawdown,mean_success_rate,mean_actions\n")

	for _, a := range aggs {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%s,%s,%s,%s,%s,%s,%s,%s,%s,%.2f\n",
			a.AutomationKind,
			a.PriceRegime,
			a.TotalRuns,
			a.CompletedRuns,
			a.FailedRuns,
			money(a.PnLMean),
			money(a.PnLMedian),
			money(a.PnLP10),
			money(a.PnLP90),
			money(a.PnLMin),
			money(a.PnLMax),
			money(a.PnLStddev),
			money(a.WorstDrawdown),
			pct(a.MeanSuccessRate),
			a.MeanActions,
		))
	}

	return sb.String()
}
