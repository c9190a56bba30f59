package strategy

import (
	"btc-scenario-lab/internal/domain"
)

// TakeProfit realizes gains after a large enough rise.
type TakeProfit struct {
	RisePct float64
}

// NewTakeProfit creates a TakeProfit with a 10% rise trigger.
func NewTakeProfit() *TakeProfit {
	return &TakeProfit{RisePct: 10}
}

// Kind returns the automation kind.
func (s *TakeProfit) Kind() domain.AutomationKind {
	return domain.AutomationTakeProfit
}

// Evaluate emits take_profit when rise >= RisePct and pnl > 0.
func (s *TakeProfit) Evaluate(state State) *domain.Action {
	rise := percentChange(state.Price, state.InitialPrice)
	if rise < s.RisePct || state.UnrealizedPnL <= 0 {
		return nil
	}

	return &domain.Action{
		Kind: domain.ActionTakeProfit,
		Details: map[string]float64{
			domain.DetailRise: rise,
			domain.DetailPnL:  state.UnrealizedPnL,
		},
	}
}

// Ensure TakeProfit implements Evaluator
var _ Evaluator = (*TakeProfit)(nil)
