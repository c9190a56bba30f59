package strategy

import (
	"errors"
	"testing"

	"btc-scenario-lab/internal/domain"
)

func TestFromKind_AllKinds(t *testing.T) {
	for _, kind := range domain.AllAutomationKinds {
		ev, err := FromKind(kind)
		if err != nil {
			t.Fatalf("FromKind(%s) failed: %v", kind, err)
		}
		if ev.Kind() != kind {
			t.Errorf("expected kind %s, got %s", kind, ev.Kind())
		}
	}
}

func TestFromKind_TrailingStopDefaults(t *testing.T) {
	ev, err := FromKind(domain.AutomationTrailingStop)
	if err != nil {
		t.Fatalf("FromKind failed: %v", err)
	}

	ts, ok := ev.(*TrailingStop)
	if !ok {
		t.Fatalf("expected *TrailingStop, got %T", ev)
	}
	if ts.TriggerPct != 2 {
		t.Errorf("expected trigger 2, got %f", ts.TriggerPct)
	}
	if ts.StopFactor != 0.98 {
		t.Errorf("expected stop factor 0.98, got %f", ts.StopFactor)
	}
}

func TestFromKind_Unknown(t *testing.T) {
	_, err := FromKind("grid_bot")
	if !errors.Is(err, ErrUnknownAutomationKind) {
		t.Errorf("expected ErrUnknownAutomationKind, got %v", err)
	}
}

func TestEvaluate_UnknownKindNeverActs(t *testing.T) {
	if a := Evaluate("grid_bot", State{Price: 1, InitialPrice: 100}); a != nil {
		t.Errorf("expected nil action, got %+v", a)
	}
}
