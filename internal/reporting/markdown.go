package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a simulation report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	sim := r.Simulation

	// Header
	sb.WriteString(fmt.Sprintf("# Simulation Report: %s\n\n", sim.Name))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Configuration
	sb.WriteString("## Configuration\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Simulation | %s |\n", sim.ID))
	sb.WriteString(fmt.Sprintf("| Automation | %s |\n", sim.AutomationKind))
	sb.WriteString(fmt.Sprintf("| Regime | %s |\n", sim.PriceRegime))
	sb.WriteString(fmt.Sprintf("| Initial Price | %s |\n", money(sim.InitialPrice)))
	sb.WriteString(fmt.Sprintf("| Duration (s) | %d |\n", sim.DurationSeconds))
	sb.WriteString(fmt.Sprintf("| Environment | %s |\n", sim.Environment))
	sb.WriteString(fmt.Sprintf("| Seed | %d |\n", sim.Seed))
	sb.WriteString(fmt.Sprintf("| Status | %s |\n", sim.Status))
	if sim.StartedAt != nil {
		sb.WriteString(fmt.Sprintf("| Started | %s |\n", sim.StartedAt.UTC().Format(time.RFC3339)))
	}
	if sim.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("| Completed | %s |\n", sim.CompletedAt.UTC().Format(time.RFC3339)))
	}
	sb.WriteString("\n")

	// Metrics
	sb.WriteString("## Metrics\n\n")
	if len(r.Results) == 0 {
		sb.WriteString("No results yet.\n\n")
	} else {
		s := r.Summary
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Total Actions | %d |\n", s.TotalActions))
		sb.WriteString(fmt.Sprintf("| Successful Actions | %d |\n", s.SuccessfulActions))
		sb.WriteString(fmt.Sprintf("| Success Rate (%%) | %s |\n", pct(s.SuccessRate)))
		sb.WriteString(fmt.Sprintf("| Total P&L | %s |\n", money(s.TotalPnL)))
		sb.WriteString(fmt.Sprintf("| Max Drawdown | %s |\n", money(s.MaxDrawdown)))
		sb.WriteString(fmt.Sprintf("| Final Balance | %s |\n", money(s.FinalBalance)))
		sb.WriteString(fmt.Sprintf("| Avg Response Time (ms) | %.0f |\n", s.AverageResponseTimeMs))
		sb.WriteString("\n")

		p := r.Prices
		sb.WriteString("## Prices\n\n")
		sb.WriteString("| Snapshots | First | Last | Min | Max | Change% |\n")
		sb.WriteString("|-----------|-------|------|-----|-----|---------|\n")
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s |\n\n",
			p.Snapshots, money(p.FirstPrice), money(p.LastPrice),
			money(p.MinPrice), money(p.MaxPrice), pct(p.ChangePct)))
	}

	// Actions
	sb.WriteString("## Actions\n\n")
	if len(r.Actions) > 0 {
		sb.WriteString("| Seq | Timestamp (ms) | Action | Price | Balance | Details |\n")
		sb.WriteString("|-----|----------------|--------|-------|---------|---------|\n")
		for _, a := range r.Actions {
			sb.WriteString(fmt.Sprintf("| %d | %d | %s | %s | %s | %s |\n",
				a.Seq, a.TimestampMs, a.Kind, money(a.Price), money(a.Balance), details(a.Details)))
		}
	} else {
		sb.WriteString("No actions recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderAggregateMarkdown renders the cross-run report as Markdown string.
func RenderAggregateMarkdown(r *AggregateReport) string {
	var sb strings.Builder

	sb.WriteString("# Automation Aggregates\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	if len(r.Aggregates) == 0 {
		sb.WriteString("No finished runs.\n")
		return sb.String()
	}

	sb.WriteString("| Automation | Regime | Runs | Completed | Failed | Mean P&L | Median | P10 | P90 | Worst DD | Success% | Actions |\n")
	sb.WriteString("|------------|--------|------|-----------|--------|----------|--------|-----|-----|----------|----------|---------|\n")
	for _, a := range r.Aggregates {
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %s | %s | %s | %s | %s | %s | %.2f |\n",
			a.AutomationKind, a.PriceRegime, a.TotalRuns, a.CompletedRuns, a.FailedRuns,
			money(a.PnLMean), money(a.PnLMedian), money(a.PnLP10), money(a.PnLP90),
			money(a.WorstDrawdown), pct(a.MeanSuccessRate), a.MeanActions))
	}
	sb.WriteString("\n")

	return sb.String()
}
