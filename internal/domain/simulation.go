package domain

import "time"

// SimulationStatus is the lifecycle state of a simulation run.
type SimulationStatus string

// Simulation status constants.
const (
	StatusCreated   SimulationStatus = "created"
	StatusRunning   SimulationStatus = "running"
	StatusCompleted SimulationStatus = "completed"
	StatusFailed    SimulationStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s SimulationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether s -> next is a legal edge.
// Legal edges: created -> running, running -> completed, running -> failed.
func (s SimulationStatus) CanTransitionTo(next SimulationStatus) bool {
	switch s {
	case StatusCreated:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// AutomationKind is the trading-automation family being backtested.
type AutomationKind string

// Automation kinds.
const (
	AutomationMarginGuard  AutomationKind = "margin_guard"
	AutomationTakeProfit   AutomationKind = "take_profit"
	AutomationTrailingStop AutomationKind = "trailing_stop"
	AutomationAutoEntry    AutomationKind = "auto_entry"
)

// AllAutomationKinds lists every supported automation kind.
var AllAutomationKinds = []AutomationKind{
	AutomationMarginGuard,
	AutomationTakeProfit,
	AutomationTrailingStop,
	AutomationAutoEntry,
}

// ManagesOpenPosition reports whether the automation guards a position that
// exists before the run starts. auto_entry starts flat and opens its own.
func (k AutomationKind) ManagesOpenPosition() bool {
	switch k {
	case AutomationMarginGuard, AutomationTakeProfit, AutomationTrailingStop:
		return true
	default:
		return false
	}
}

// Valid reports whether k is a known automation kind.
func (k AutomationKind) Valid() bool {
	for _, known := range AllAutomationKinds {
		if k == known {
			return true
		}
	}
	return false
}

// PriceRegime is the market-behavior archetype driving the path generator.
type PriceRegime string

// Price regimes.
const (
	RegimeBull     PriceRegime = "bull"
	RegimeBear     PriceRegime = "bear"
	RegimeSideways PriceRegime = "sideways"
	RegimeVolatile PriceRegime = "volatile"
)

// AllPriceRegimes lists every supported regime.
var AllPriceRegimes = []PriceRegime{RegimeBull, RegimeBear, RegimeSideways, RegimeVolatile}

// Valid reports whether r is a known regime.
func (r PriceRegime) Valid() bool {
	for _, known := range AllPriceRegimes {
		if r == known {
			return true
		}
	}
	return false
}

// Duration bounds in simulated seconds.
const (
	MinDurationSeconds = 10
	MaxDurationSeconds = 3600
)

// DefaultEnvironment is used when a simulation is created without one.
const DefaultEnvironment = "testnet"

// Simulation is one backtest request and its lifecycle.
// Configuration fields are immutable after creation.
type Simulation struct {
	ID     string
	UserID string

	Name            string
	AutomationKind  AutomationKind
	PriceRegime     PriceRegime
	InitialPrice    float64
	DurationSeconds int
	AccountID       *string // optional linked test account
	Environment     string
	Seed            int64 // path generator seed, fixed at creation

	Status      SimulationStatus
	CreatedAt   time.Time
	StartedAt   *time.Time // set exactly once, on created -> running
	CompletedAt *time.Time // set only on running -> completed
}

// TotalSamples returns the number of price samples a run produces.
func (s *Simulation) TotalSamples() int {
	return s.DurationSeconds * SamplesPerSecond
}

// RunRequest asks the scheduler to start a simulation.
type RunRequest struct {
	SimulationID string `json:"simulation_id"`
	RequestedAt  int64  `json:"requested_at"` // unix ms
}
