// Package ledger holds the virtual trading account mutated during one run.
// A Ledger is owned by a single executor goroutine and is not safe for
// concurrent use.
package ledger

import (
	"errors"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/strategy"
)

// Account constants.
const (
	StartingBalance = 100000.0
	LotSize         = 0.001
)

// Ledger errors
var (
	ErrPositionOpen   = errors.New("position already open")
	ErrUnknownAction  = errors.New("unknown action kind")
	ErrMissingDetails = errors.New("action missing required details")
)

// Ledger is the virtual account: balance, position, entry price and stop.
type Ledger struct {
	Balance        float64
	PositionSize   float64 // 0 or LotSize
	EntryPrice     float64
	TrailingStop   float64
	TotalActions   int
	SuccessActions int
}

// New returns a flat ledger with the starting balance.
func New() *Ledger {
	return &Ledger{Balance: StartingBalance}
}

// HasPosition reports whether a lot is held.
func (l *Ledger) HasPosition() bool {
	return l.PositionSize > 0
}

// OpenPosition buys one lot at price and deducts 10% of notional as margin.
func (l *Ledger) OpenPosition(price float64) error {
	if l.HasPosition() {
		return ErrPositionOpen
	}
	l.PositionSize = LotSize
	l.EntryPrice = price
	l.Balance -= LotSize * price * strategy.MaintenanceMarginRate
	return nil
}

// UnrealizedPnL returns positionSize * (price - entryPrice).
func (l *Ledger) UnrealizedPnL(price float64) float64 {
	if !l.HasPosition() {
		return 0
	}
	return l.PositionSize * (price - l.EntryPrice)
}

// MarginLevel returns the margin ratio at price, or 0 when flat.
func (l *Ledger) MarginLevel(price float64) float64 {
	return strategy.MarginLevel(l.Balance, l.UnrealizedPnL(price), l.PositionSize, price)
}

// State returns the evaluator view of the account at price.
func (l *Ledger) State(price, initialPrice float64) strategy.State {
	return strategy.State{
		Price:         price,
		InitialPrice:  initialPrice,
		Balance:       l.Balance,
		PositionSize:  l.PositionSize,
		UnrealizedPnL: l.UnrealizedPnL(price),
	}
}

// SuccessRate returns successful/total * 100, or 0 with no actions.
func (l *Ledger) SuccessRate() float64 {
	if l.TotalActions == 0 {
		return 0
	}
	return float64(l.SuccessActions) / float64(l.TotalActions) * 100
}

// Apply mutates the ledger for an evaluator action at price.
// Every applied action counts as successful.
func (l *Ledger) Apply(action *domain.Action, price float64) error {
	if action == nil {
		return nil
	}

	switch action.Kind {
	case domain.ActionClosePosition, domain.ActionTakeProfit:
		l.Balance += l.UnrealizedPnL(price)
		l.PositionSize = 0
		l.EntryPrice = 0
		l.TrailingStop = 0
	case domain.ActionAdjustStop:
		level, ok := action.Details[domain.DetailNewStopLevel]
		if !ok {
			return ErrMissingDetails
		}
		l.TrailingStop = level
	case domain.ActionEnterPosition:
		if err := l.OpenPosition(price); err != nil {
			return err
		}
	default:
		return ErrUnknownAction
	}

	l.TotalActions++
	l.SuccessActions++
	return nil
}
