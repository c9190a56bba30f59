package domain

// Summary is the per-simulation metrics aggregate.
type Summary struct {
	TotalActions          int
	SuccessfulActions     int
	SuccessRate           float64 // percent
	TotalPnL              float64 // P&L of the last snapshot
	MaxDrawdown           float64 // minimum P&L across the series
	FinalBalance          float64
	AverageResponseTimeMs float64 // fixed placeholder, not measured
}

// RunSummary is the analytics row written once a run finishes.
type RunSummary struct {
	SimulationID   string
	UserID         string
	AutomationKind AutomationKind
	PriceRegime    PriceRegime
	Status         SimulationStatus
	InitialPrice   float64
	DurationSec    int
	Samples        int
	Snapshots      int
	FinishedAtMs   int64

	TotalActions int
	SuccessRate  float64
	TotalPnL     float64
	MaxDrawdown  float64
	FinalBalance float64
}

// StrategyAggregate summarizes finished runs of one (automation kind, regime) pair.
type StrategyAggregate struct {
	AutomationKind AutomationKind
	PriceRegime    PriceRegime

	// Counts
	TotalRuns     int
	CompletedRuns int
	FailedRuns    int

	// P&L distribution over completed runs
	PnLMean   float64
	PnLMedian float64
	PnLP10    float64
	PnLP90    float64
	PnLMin    float64
	PnLMax    float64
	PnLStddev float64

	WorstDrawdown   float64
	MeanSuccessRate float64
	MeanActions     float64
}
