package memory

import (
	"context"
	"errors"
	"testing"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/storage"
)

func TestRunSummaryStore_InsertGetAll(t *testing.T) {
	store := NewRunSummaryStore()
	ctx := context.Background()

	_ = store.Insert(ctx, &domain.RunSummary{SimulationID: "b", FinishedAtMs: 2000, TotalPnL: 2})
	_ = store.Insert(ctx, &domain.RunSummary{SimulationID: "a", FinishedAtMs: 1000, TotalPnL: 1})

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 || all[0].SimulationID != "a" {
		t.Errorf("unexpected order: %+v", all)
	}

	got, err := store.GetBySimulationID(ctx, "b")
	if err != nil {
		t.Fatalf("GetBySimulationID failed: %v", err)
	}
	if got.TotalPnL != 2 {
		t.Errorf("TotalPnL: got %f", got.TotalPnL)
	}
}

func TestRunSummaryStore_DuplicateAndDelete(t *testing.T) {
	store := NewRunSummaryStore()
	ctx := context.Background()

	sum := &domain.RunSummary{SimulationID: "a"}
	if err := store.Insert(ctx, sum); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, sum); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	_ = store.DeleteBySimulationID(ctx, "a")
	if _, err := store.GetBySimulationID(ctx, "a"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
