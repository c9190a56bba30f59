package strategy

import (
	"errors"

	"btc-scenario-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownAutomationKind = errors.New("unknown automation kind")
)

// FromKind returns the evaluator for an automation kind.
// Each kind maps to exactly one evaluator.
func FromKind(kind domain.AutomationKind) (Evaluator, error) {
	switch kind {
	case domain.AutomationMarginGuard:
		return NewMarginGuard(), nil
	case domain.AutomationTakeProfit:
		return NewTakeProfit(), nil
	case domain.AutomationTrailingStop:
		return NewTrailingStop(), nil
	case domain.AutomationAutoEntry:
		return NewAutoEntry(), nil
	default:
		return nil, ErrUnknownAutomationKind
	}
}
