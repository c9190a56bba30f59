package memory

import (
	"context"
	"errors"
	"testing"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/storage"
)

func TestSimulationResultStore_OrderedBySimulation(t *testing.T) {
	store := NewSimulationResultStore()
	ctx := context.Background()

	kind := domain.ActionAdjustStop
	results := []*domain.SimulationResult{
		{ResultID: "r3", SimulationID: "sim1", Seq: 29, TimestampMs: 3000, Price: 3},
		{ResultID: "r1", SimulationID: "sim1", Seq: 9, TimestampMs: 1000, Price: 1},
		{ResultID: "r2", SimulationID: "sim1", Seq: 19, TimestampMs: 2000, Price: 2, ActionKind: &kind, ActionDetails: map[string]float64{"newStopLevel": 1.96}},
		{ResultID: "x1", SimulationID: "sim2", Seq: 9, TimestampMs: 1000, Price: 9},
	}
	for _, r := range results {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetBySimulationID(ctx, "sim1")
	if err != nil {
		t.Fatalf("GetBySimulationID failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].TimestampMs <= got[i-1].TimestampMs {
			t.Errorf("results not ordered at %d", i)
		}
	}
	if !got[1].HasAction() || got[1].ActionDetails["newStopLevel"] != 1.96 {
		t.Errorf("action not preserved: %+v", got[1])
	}
}

func TestSimulationResultStore_DuplicateKey(t *testing.T) {
	store := NewSimulationResultStore()
	ctx := context.Background()

	r := &domain.SimulationResult{ResultID: "r1", SimulationID: "sim1"}
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.Insert(ctx, r); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSimulationResultStore_InvalidInput(t *testing.T) {
	store := NewSimulationResultStore()
	if err := store.Insert(context.Background(), &domain.SimulationResult{ResultID: "r1"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestSimulationResultStore_DeleteBySimulationID(t *testing.T) {
	store := NewSimulationResultStore()
	ctx := context.Background()

	_ = store.Insert(ctx, &domain.SimulationResult{ResultID: "r1", SimulationID: "sim1"})
	_ = store.Insert(ctx, &domain.SimulationResult{ResultID: "r2", SimulationID: "sim2"})

	if err := store.DeleteBySimulationID(ctx, "sim1"); err != nil {
		t.Fatalf("DeleteBySimulationID failed: %v", err)
	}

	got, _ := store.GetBySimulationID(ctx, "sim1")
	if len(got) != 0 {
		t.Errorf("expected no results for sim1, got %d", len(got))
	}
	got, _ = store.GetBySimulationID(ctx, "sim2")
	if len(got) != 1 {
		t.Errorf("sim2 results must survive, got %d", len(got))
	}
}

func TestSimulationResultStore_GetLast(t *testing.T) {
	store := NewSimulationResultStore()
	ctx := context.Background()

	if _, err := store.GetLast(ctx, "sim1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on empty series, got %v", err)
	}

	for _, r := range []*domain.SimulationResult{
		{ResultID: "r2", SimulationID: "sim1", Seq: 19, TimestampMs: 2000, Price: 2},
		{ResultID: "r3", SimulationID: "sim1", Seq: 29, TimestampMs: 3000, Price: 3},
		{ResultID: "r1", SimulationID: "sim1", Seq: 9, TimestampMs: 1000, Price: 1},
		{ResultID: "x1", SimulationID: "sim2", Seq: 39, TimestampMs: 4000, Price: 9},
	} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	last, err := store.GetLast(ctx, "sim1")
	if err != nil {
		t.Fatalf("GetLast failed: %v", err)
	}
	if last.ResultID != "r3" || last.Price != 3 {
		t.Errorf("GetLast: got %s at %f, want r3 at 3", last.ResultID, last.Price)
	}

	last.Price = 100
	again, _ := store.GetLast(ctx, "sim1")
	if again.Price != 3 {
		t.Error("GetLast returned shared state")
	}
}
