package strategy

import (
	"btc-scenario-lab/internal/domain"
)

// MarginGuard closes the position when margin runs thin after a drop.
//   - drop = (P0 - price) / P0 * 100
//   - drop >= DropPct and a position is open:
//     marginLevel = (balance + pnl) / (positionSize * price * 0.1)
//   - marginLevel < MinMarginLevel: close_position
type MarginGuard struct {
	DropPct        float64
	MinMarginLevel float64
}

// NewMarginGuard creates a MarginGuard with a 5% drop trigger and 0.15 margin floor.
func NewMarginGuard() *MarginGuard {
	return &MarginGuard{
		DropPct:        5,
		MinMarginLevel: 0.15,
	}
}

// Kind returns the automation kind.
func (s *MarginGuard) Kind() domain.AutomationKind {
	return domain.AutomationMarginGuard
}

// Evaluate emits close_position when the margin level falls under the floor.
func (s *MarginGuard) Evaluate(state State) *domain.Action {
	drop := -percentChange(state.Price, state.InitialPrice)
	if drop < s.DropPct || !state.HasPosition() {
		return nil
	}

	level := MarginLevel(state.Balance, state.UnrealizedPnL, state.PositionSize, state.Price)
	if level >= s.MinMarginLevel {
		return nil
	}

	return &domain.Action{
		Kind: domain.ActionClosePosition,
		Details: map[string]float64{
			domain.DetailMarginLevel: level,
			domain.DetailDrop:        drop,
		},
	}
}

// Ensure MarginGuard implements Evaluator
var _ Evaluator = (*MarginGuard)(nil)
