package strategy

import (
	"btc-scenario-lab/internal/domain"
)

// AutoEntry opens a position on an oversold dip while flat.
// The RSI is computed from the single price/initial-price delta.
type AutoEntry struct {
	MaxRSI       float64
	MaxDeviation float64 // percent, negative
}

// NewAutoEntry creates an AutoEntry with RSI < 30 and deviation < -3%.
func NewAutoEntry() *AutoEntry {
	return &AutoEntry{
		MaxRSI:       30,
		MaxDeviation: -3,
	}
}

// Kind returns the automation kind.
func (s *AutoEntry) Kind() domain.AutomationKind {
	return domain.AutomationAutoEntry
}

// Evaluate emits enter_position when oversold, below the deviation threshold and flat.
func (s *AutoEntry) Evaluate(state State) *domain.Action {
	if state.HasPosition() {
		return nil
	}

	rsi := simplifiedRSI(state.Price, state.InitialPrice)
	deviation := percentChange(state.Price, state.InitialPrice)
	if rsi >= s.MaxRSI || deviation >= s.MaxDeviation {
		return nil
	}

	return &domain.Action{
		Kind: domain.ActionEnterPosition,
		Details: map[string]float64{
			domain.DetailRSI:        rsi,
			domain.DetailDeviation:  deviation,
			domain.DetailEntryPrice: state.Price,
		},
	}
}

// Ensure AutoEntry implements Evaluator
var _ Evaluator = (*AutoEntry)(nil)
