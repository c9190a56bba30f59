package metrics

import (
	"math"
	"testing"

	"btc-scenario-lab/internal/domain"
)

func actionKind(k domain.ActionKind) *domain.ActionKind {
	return &k
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.SuccessRate != 0 || s.TotalActions != 0 || s.TotalPnL != 0 || s.MaxDrawdown != 0 || s.FinalBalance != 0 {
		t.Errorf("expected all-zero summary, got %+v", s)
	}
}

func TestSummarize_Series(t *testing.T) {
	results := []*domain.SimulationResult{
		{Seq: 9, TimestampMs: 1000, UnrealizedPnL: 1.5, Balance: 99995},
		{Seq: 19, TimestampMs: 2000, UnrealizedPnL: -3.25, Balance: 99995, ActionKind: actionKind(domain.ActionAdjustStop)},
		{Seq: 29, TimestampMs: 3000, UnrealizedPnL: -1, Balance: 99995},
		{Seq: 39, TimestampMs: 4000, UnrealizedPnL: 0, Balance: 100002, ActionKind: actionKind(domain.ActionTakeProfit)},
	}

	s := Summarize(results)

	if s.TotalActions != 2 {
		t.Errorf("TotalActions: got %d, want 2", s.TotalActions)
	}
	if s.SuccessRate != 100 {
		t.Errorf("SuccessRate: got %f, want 100", s.SuccessRate)
	}
	if s.TotalPnL != 0 {
		t.Errorf("TotalPnL: got %f, want 0", s.TotalPnL)
	}
	if s.MaxDrawdown != -3.25 {
		t.Errorf("MaxDrawdown: got %f, want -3.25", s.MaxDrawdown)
	}
	if s.FinalBalance != 100002 {
		t.Errorf("FinalBalance: got %f, want 100002", s.FinalBalance)
	}
	if s.AverageResponseTimeMs != AverageResponseTimeMs {
		t.Errorf("AverageResponseTimeMs: got %f", s.AverageResponseTimeMs)
	}
}

func TestSummarize_NoActions(t *testing.T) {
	results := []*domain.SimulationResult{
		{UnrealizedPnL: 2, Balance: 1},
		{UnrealizedPnL: 3, Balance: 2},
	}
	s := Summarize(results)
	if s.SuccessRate != 0 || s.TotalActions != 0 {
		t.Errorf("expected zero success rate, got %+v", s)
	}
	if s.MaxDrawdown != 2 {
		t.Errorf("MaxDrawdown: got %f, want 2", s.MaxDrawdown)
	}
}

func TestComputePercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 0.5, 0},
		{"single", []float64{3}, 0.9, 3},
		{"median odd", []float64{1, 2, 3}, 0.5, 2},
		{"median even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p90", []float64{0, 10}, 0.9, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computePercentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestComputeStddev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mean := computeMean(values)
	if mean != 5 {
		t.Fatalf("mean: got %f, want 5", mean)
	}
	got := computeStddev(values, mean)
	want := math.Sqrt(32.0 / 7.0)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("stddev: got %f, want %f", got, want)
	}
	if computeStddev([]float64{1}, 1) != 0 {
		t.Error("single sample stddev must be 0")
	}
}
