package strategy

import (
	"btc-scenario-lab/internal/domain"
)

// Evaluator decides the next ledger action for one automation kind.
// Implementations are pure: identical input yields identical output and
// the input is never mutated.
type Evaluator interface {
	// Evaluate returns the action to apply at this sample, or nil.
	Evaluate(state State) *domain.Action

	// Kind returns the automation kind this evaluator implements.
	Kind() domain.AutomationKind
}

// State is the market/account view an evaluator decides on.
type State struct {
	Price         float64
	InitialPrice  float64
	Balance       float64
	PositionSize  float64
	UnrealizedPnL float64
}

// HasPosition reports whether a position is open.
func (s State) HasPosition() bool {
	return s.PositionSize > 0
}

// Evaluate builds the evaluator for kind and applies it to state.
// Unknown kinds never act.
func Evaluate(kind domain.AutomationKind, state State) *domain.Action {
	ev, err := FromKind(kind)
	if err != nil {
		return nil
	}
	return ev.Evaluate(state)
}
