package metrics

import (
	"math"
	"sort"

	"btc-scenario-lab/internal/domain"
)

// AverageResponseTimeMs is a fixed placeholder reported with every summary.
// It is not measured.
const AverageResponseTimeMs = 150.0

// Summarize computes the per-simulation aggregate from an ordered result series.
//   - successRate = successful / total * 100, counting snapshots that carry an action
//   - totalPnL = P&L of the last snapshot
//   - maxDrawdown = minimum P&L across the series
//   - finalBalance = balance of the last snapshot
//
// An empty series yields an all-zero summary.
func Summarize(results []*domain.SimulationResult) domain.Summary {
	if len(results) == 0 {
		return domain.Summary{}
	}

	total := 0
	for _, r := range results {
		if r.HasAction() {
			total++
		}
	}
	// Every emitted action counts as successful.
	successful := total

	last := results[len(results)-1]
	minPnL := results[0].UnrealizedPnL
	for _, r := range results[1:] {
		if r.UnrealizedPnL < minPnL {
			minPnL = r.UnrealizedPnL
		}
	}

	return domain.Summary{
		TotalActions:          total,
		SuccessfulActions:     successful,
		SuccessRate:           computeSuccessRate(successful, total),
		TotalPnL:              last.UnrealizedPnL,
		MaxDrawdown:           minPnL,
		FinalBalance:          last.Balance,
		AverageResponseTimeMs: AverageResponseTimeMs,
	}
}

// computeSuccessRate returns successful/total as a percentage.
func computeSuccessRate(successful, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(successful) / float64(total) * 100
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation.
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0 // Need at least 2 samples for sample stddev
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile calculates percentile using linear interpolation.
// Input must be sorted ascending.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	// Index for percentile (0-based, continuous)
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	// Linear interpolation
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// sortedCopy returns an ascending copy of values.
func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
