package strategy

import (
	"math"
	"reflect"
	"testing"

	"btc-scenario-lab/internal/domain"
)

const lot = 0.001

func TestMarginGuard_ClosesOnThinMargin(t *testing.T) {
	s := NewMarginGuard()
	state := State{
		Price:         90,
		InitialPrice:  100,
		Balance:       0.001,
		PositionSize:  lot,
		UnrealizedPnL: -0.0005,
	}

	action := s.Evaluate(state)
	if action == nil {
		t.Fatal("expected close_position, got nil")
	}
	if action.Kind != domain.ActionClosePosition {
		t.Errorf("expected close_position, got %s", action.Kind)
	}

	wantLevel := (0.001 - 0.0005) / (lot * 90 * 0.1)
	if math.Abs(action.Details[domain.DetailMarginLevel]-wantLevel) > 1e-12 {
		t.Errorf("marginLevel: got %f, want %f", action.Details[domain.DetailMarginLevel], wantLevel)
	}
	if math.Abs(action.Details[domain.DetailDrop]-10) > 1e-9 {
		t.Errorf("drop: got %f, want 10", action.Details[domain.DetailDrop])
	}
}

func TestMarginGuard_NoActionCases(t *testing.T) {
	s := NewMarginGuard()

	tests := []struct {
		name  string
		state State
	}{
		{"drop below threshold", State{Price: 97, InitialPrice: 100, Balance: 0, PositionSize: lot}},
		{"no position", State{Price: 50, InitialPrice: 100, Balance: 0}},
		{"healthy margin", State{Price: 90, InitialPrice: 100, Balance: 100000, PositionSize: lot}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if a := s.Evaluate(tt.state); a != nil {
				t.Errorf("expected no action, got %+v", a)
			}
		})
	}
}

func TestTakeProfit_FiresOnRiseWithProfit(t *testing.T) {
	s := NewTakeProfit()
	action := s.Evaluate(State{Price: 110, InitialPrice: 100, PositionSize: lot, UnrealizedPnL: 0.01})
	if action == nil || action.Kind != domain.ActionTakeProfit {
		t.Fatalf("expected take_profit, got %+v", action)
	}
	if action.Details[domain.DetailPnL] != 0.01 {
		t.Errorf("pnl detail: got %f", action.Details[domain.DetailPnL])
	}
}

func TestTakeProfit_RequiresPositivePnL(t *testing.T) {
	s := NewTakeProfit()
	if a := s.Evaluate(State{Price: 120, InitialPrice: 100}); a != nil {
		t.Errorf("expected no action without pnl, got %+v", a)
	}
	if a := s.Evaluate(State{Price: 105, InitialPrice: 100, UnrealizedPnL: 5}); a != nil {
		t.Errorf("expected no action under 10%% rise, got %+v", a)
	}
}

func TestTrailingStop_BothDirections(t *testing.T) {
	s := NewTrailingStop()

	price := 103.0
	up := s.Evaluate(State{Price: price, InitialPrice: 100})
	if up == nil || up.Kind != domain.ActionAdjustStop {
		t.Fatalf("expected adjust_stop on +3%%, got %+v", up)
	}
	if want := price * 0.98; up.Details[domain.DetailNewStopLevel] != want {
		t.Errorf("newStopLevel: got %f, want %f", up.Details[domain.DetailNewStopLevel], want)
	}

	down := s.Evaluate(State{Price: 97, InitialPrice: 100})
	if down == nil {
		t.Fatal("expected adjust_stop on -3%")
	}

	if a := s.Evaluate(State{Price: 101, InitialPrice: 100}); a != nil {
		t.Errorf("expected no action on +1%%, got %+v", a)
	}
}

func TestAutoEntry_EntersOnDip(t *testing.T) {
	s := NewAutoEntry()
	action := s.Evaluate(State{Price: 96, InitialPrice: 100, Balance: 100000})
	if action == nil || action.Kind != domain.ActionEnterPosition {
		t.Fatalf("expected enter_position, got %+v", action)
	}
	if action.Details[domain.DetailEntryPrice] != 96 {
		t.Errorf("entryPrice: got %f", action.Details[domain.DetailEntryPrice])
	}
	if action.Details[domain.DetailRSI] != 0 {
		t.Errorf("rsi on pure loss: got %f, want 0", action.Details[domain.DetailRSI])
	}
}

func TestAutoEntry_NoActionCases(t *testing.T) {
	s := NewAutoEntry()
	if a := s.Evaluate(State{Price: 96, InitialPrice: 100, PositionSize: lot}); a != nil {
		t.Errorf("expected no action while in position, got %+v", a)
	}
	if a := s.Evaluate(State{Price: 98, InitialPrice: 100}); a != nil {
		t.Errorf("expected no action at -2%%, got %+v", a)
	}
	if a := s.Evaluate(State{Price: 110, InitialPrice: 100}); a != nil {
		t.Errorf("expected no action on rise, got %+v", a)
	}
}

func TestSimplifiedRSI(t *testing.T) {
	if rsi := simplifiedRSI(110, 100); rsi != 100 {
		t.Errorf("gain only: got %f, want 100", rsi)
	}
	if rsi := simplifiedRSI(100, 100); rsi != 100 {
		t.Errorf("no change: got %f, want 100", rsi)
	}
	if rsi := simplifiedRSI(90, 100); rsi != 0 {
		t.Errorf("loss only: got %f, want 0", rsi)
	}
}

func TestEvaluators_Pure(t *testing.T) {
	states := []State{
		{Price: 90, InitialPrice: 100, Balance: 0.001, PositionSize: lot, UnrealizedPnL: -0.0005},
		{Price: 115, InitialPrice: 100, Balance: 100000, PositionSize: lot, UnrealizedPnL: 0.015},
		{Price: 96, InitialPrice: 100, Balance: 100000},
	}

	for _, kind := range domain.AllAutomationKinds {
		for _, state := range states {
			before := state
			first := Evaluate(kind, state)
			second := Evaluate(kind, state)
			if !reflect.DeepEqual(first, second) {
				t.Errorf("%s: non-deterministic output %+v vs %+v", kind, first, second)
			}
			if state != before {
				t.Errorf("%s: input mutated", kind)
			}
		}
	}
}
