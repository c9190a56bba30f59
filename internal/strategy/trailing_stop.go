package strategy

import (
	"math"

	"btc-scenario-lab/internal/domain"
)

// TrailingStop ratchets the stop level when price moves away from the start.
//   - change = (price - P0) / P0 * 100
//   - |change| >= TriggerPct: adjust_stop with newStopLevel = price * StopFactor
type TrailingStop struct {
	TriggerPct float64
	StopFactor float64
}

// NewTrailingStop creates a TrailingStop with the default 2% trigger and 0.98 stop factor.
func NewTrailingStop() *TrailingStop {
	return &TrailingStop{
		TriggerPct: 2,
		StopFactor: 0.98,
	}
}

// Kind returns the automation kind.
func (s *TrailingStop) Kind() domain.AutomationKind {
	return domain.AutomationTrailingStop
}

// Evaluate emits adjust_stop on a large enough move in either direction.
func (s *TrailingStop) Evaluate(state State) *domain.Action {
	change := percentChange(state.Price, state.InitialPrice)
	if math.Abs(change) < s.TriggerPct {
		return nil
	}

	return &domain.Action{
		Kind: domain.ActionAdjustStop,
		Details: map[string]float64{
			domain.DetailChange:       change,
			domain.DetailNewStopLevel: state.Price * s.StopFactor,
		},
	}
}

// Ensure TrailingStop implements Evaluator
var _ Evaluator = (*TrailingStop)(nil)
