package orchestrator

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/simulation"
	"btc-scenario-lab/internal/storage"
	"btc-scenario-lab/internal/storage/memory"
)

// syncScheduler runs submissions inline, recording calls.
type syncScheduler struct {
	exec      *simulation.Executor
	submitted []string
	cancelled []string
}

func (s *syncScheduler) Submit(ctx context.Context, id string) error {
	s.submitted = append(s.submitted, id)
	if s.exec == nil {
		return nil
	}
	_, _ = s.exec.Run(ctx, id)
	return nil
}

func (s *syncScheduler) Cancel(id string) error {
	s.cancelled = append(s.cancelled, id)
	return nil
}

type testStores struct {
	sims      *memory.SimulationStore
	results   *memory.SimulationResultStore
	progress  *memory.ProgressStore
	summaries *memory.RunSummaryStore
}

func createTestStores() *testStores {
	return &testStores{
		sims:      memory.NewSimulationStore(),
		results:   memory.NewSimulationResultStore(),
		progress:  memory.NewProgressStore(time.Minute),
		summaries: memory.NewRunSummaryStore(),
	}
}

func newTestOrchestrator(stores *testStores, sched Scheduler) *Orchestrator {
	n := 0
	return New(Options{
		Simulations: stores.sims,
		Results:     stores.results,
		Progress:    stores.progress,
		Summaries:   stores.summaries,
		Scheduler:   sched,
		NewID: func() string {
			n++
			return "sim-" + strconv.Itoa(n)
		},
		SeedFn: func() int64 { return 7 },
	})
}

func newExecutor(stores *testStores) *simulation.Executor {
	return simulation.NewExecutor(simulation.ExecutorOptions{
		Simulations: stores.sims,
		Results:     stores.results,
		Progress:    stores.progress,
		Summaries:   stores.summaries,
	})
}

func validParams() CreateParams {
	return CreateParams{
		UserID:          "user-1",
		Name:            "sideways trailing",
		AutomationKind:  domain.AutomationTrailingStop,
		PriceRegime:     domain.RegimeSideways,
		InitialPrice:    50000,
		DurationSeconds: 10,
	}
}

func TestOrchestrator_Create(t *testing.T) {
	stores := createTestStores()
	orch := newTestOrchestrator(stores, &syncScheduler{})
	ctx := context.Background()

	sim, err := orch.Create(ctx, validParams())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sim.ID != "sim-1" || sim.Status != domain.StatusCreated {
		t.Errorf("unexpected simulation: %+v", sim)
	}
	if sim.Environment != domain.DefaultEnvironment {
		t.Errorf("environment: got %q", sim.Environment)
	}
	if sim.Seed != 7 {
		t.Errorf("seed: got %d, want 7", sim.Seed)
	}
	if sim.StartedAt != nil || sim.CompletedAt != nil {
		t.Error("new simulation must have no timestamps")
	}

	seed := int64(99)
	p := validParams()
	p.Seed = &seed
	sim2, err := orch.Create(ctx, p)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sim2.Seed != 99 {
		t.Errorf("explicit seed: got %d", sim2.Seed)
	}
}

func TestOrchestrator_CreateValidation(t *testing.T) {
	orch := newTestOrchestrator(createTestStores(), &syncScheduler{})

	tests := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"missing user", func(p *CreateParams) { p.UserID = "" }},
		{"missing name", func(p *CreateParams) { p.Name = "" }},
		{"unknown kind", func(p *CreateParams) { p.AutomationKind = "grid" }},
		{"unknown regime", func(p *CreateParams) { p.PriceRegime = "crash" }},
		{"zero price", func(p *CreateParams) { p.InitialPrice = 0 }},
		{"negative price", func(p *CreateParams) { p.InitialPrice = -1 }},
		{"too short", func(p *CreateParams) { p.DurationSeconds = 9 }},
		{"too long", func(p *CreateParams) { p.DurationSeconds = 3601 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			_, err := orch.Create(context.Background(), p)
			if !errors.Is(err, domain.ErrInvalidSimulation) {
				t.Errorf("expected ErrInvalidSimulation, got %v", err)
			}
		})
	}
}

func TestOrchestrator_StartAndRead(t *testing.T) {
	stores := createTestStores()
	sched := &syncScheduler{exec: newExecutor(stores)}
	orch := newTestOrchestrator(stores, sched)
	ctx := context.Background()

	sim, _ := orch.Create(ctx, validParams())

	if _, err := orch.Metrics(ctx, "user-1", sim.ID); !errors.Is(err, domain.ErrNoResults) {
		t.Errorf("metrics before run: expected ErrNoResults, got %v", err)
	}

	if err := orch.Start(ctx, "user-1", sim.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := orch.Start(ctx, "user-1", sim.ID); !errors.Is(err, domain.ErrStateConflict) {
		t.Errorf("restart: expected ErrStateConflict, got %v", err)
	}

	progress, err := orch.Progress(ctx, "user-1", sim.ID)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if progress.Status != domain.StatusCompleted || progress.Progress != 100 {
		t.Errorf("unexpected progress: %+v", progress)
	}
	if progress.CurrentPrice == nil || progress.StartedAt == nil || progress.CompletedAt == nil {
		t.Errorf("progress missing fields: %+v", progress)
	}

	series, err := orch.Results(ctx, "user-1", sim.ID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if len(series.Results) != 10 || len(series.Prices) != 10 {
		t.Errorf("series length: %d results, %d prices", len(series.Results), len(series.Prices))
	}

	report, err := orch.Metrics(ctx, "user-1", sim.ID)
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	last := series.Results[len(series.Results)-1]
	if *progress.CurrentPrice != last.Price {
		t.Errorf("progress price: got %f, want last snapshot price %f", *progress.CurrentPrice, last.Price)
	}
	if report.Summary.FinalBalance != last.Balance {
		t.Errorf("final balance: got %f, want %f", report.Summary.FinalBalance, last.Balance)
	}
	if report.Simulation.InitialPrice != 50000 {
		t.Errorf("config echo missing: %+v", report.Simulation)
	}

	aggs, err := orch.Aggregates(ctx)
	if err != nil {
		t.Fatalf("Aggregates failed: %v", err)
	}
	if len(aggs) != 1 || aggs[0].TotalRuns != 1 {
		t.Errorf("unexpected aggregates: %+v", aggs)
	}
}

func TestOrchestrator_ProgressWhileRunning(t *testing.T) {
	stores := createTestStores()
	orch := newTestOrchestrator(stores, &syncScheduler{})
	ctx := context.Background()

	sim, _ := orch.Create(ctx, validParams())
	_ = stores.sims.MarkRunning(ctx, sim.ID, time.Now())

	p, err := orch.Progress(ctx, "user-1", sim.ID)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if p.Progress != 0 || p.CurrentPrice != nil {
		t.Errorf("no sample yet: %+v", p)
	}

	_ = stores.progress.Publish(ctx, sim.ID, domain.ProgressSample{Progress: 42, CurrentPrice: 50123})
	p, _ = orch.Progress(ctx, "user-1", sim.ID)
	if p.Progress != 42 || p.CurrentPrice == nil || *p.CurrentPrice != 50123 {
		t.Errorf("unexpected progress: %+v", p)
	}
}

func TestOrchestrator_ProgressFailedWithoutResults(t *testing.T) {
	stores := createTestStores()
	orch := newTestOrchestrator(stores, &syncScheduler{})
	ctx := context.Background()

	sim, _ := orch.Create(ctx, validParams())
	now := time.Now()
	_ = stores.sims.MarkRunning(ctx, sim.ID, now)
	_ = stores.sims.MarkFinished(ctx, sim.ID, domain.StatusFailed, now)

	p, err := orch.Progress(ctx, "user-1", sim.ID)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if p.Status != domain.StatusFailed || p.Progress != 100 || p.CurrentPrice != nil {
		t.Errorf("unexpected progress: %+v", p)
	}
}

func TestOrchestrator_Ownership(t *testing.T) {
	stores := createTestStores()
	orch := newTestOrchestrator(stores, &syncScheduler{})
	ctx := context.Background()

	sim, _ := orch.Create(ctx, validParams())

	if err := orch.Start(ctx, "intruder", sim.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Start: expected ErrForbidden, got %v", err)
	}
	if err := orch.Delete(ctx, "intruder", sim.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Delete: expected ErrForbidden, got %v", err)
	}
	if _, err := orch.Results(ctx, "intruder", sim.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Results: expected ErrForbidden, got %v", err)
	}
	if _, err := orch.Get(ctx, "user-1", "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get missing: expected ErrNotFound, got %v", err)
	}
}

func TestOrchestrator_Delete(t *testing.T) {
	stores := createTestStores()
	sched := &syncScheduler{exec: newExecutor(stores)}
	orch := newTestOrchestrator(stores, sched)
	ctx := context.Background()

	running, _ := orch.Create(ctx, validParams())
	_ = stores.sims.MarkRunning(ctx, running.ID, time.Now())
	if err := orch.Delete(ctx, "user-1", running.ID); !errors.Is(err, domain.ErrStateConflict) {
		t.Errorf("delete running: expected ErrStateConflict, got %v", err)
	}

	done, _ := orch.Create(ctx, validParams())
	if err := orch.Start(ctx, "user-1", done.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := orch.Delete(ctx, "user-1", done.ID); err != nil {
		t.Fatalf("delete completed: %v", err)
	}

	results, _ := stores.results.GetBySimulationID(ctx, done.ID)
	if len(results) != 0 {
		t.Errorf("results not removed: %d", len(results))
	}
	if _, err := stores.summaries.GetBySimulationID(ctx, done.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("summary not removed: %v", err)
	}
	if _, err := stores.sims.GetByID(ctx, done.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("simulation not removed: %v", err)
	}

	queued, _ := orch.Create(ctx, validParams())
	if err := orch.Delete(ctx, "user-1", queued.ID); err != nil {
		t.Fatalf("delete created: %v", err)
	}
	if len(sched.cancelled) != 1 || sched.cancelled[0] != queued.ID {
		t.Errorf("queued request not cancelled: %v", sched.cancelled)
	}
}

func TestOrchestrator_List(t *testing.T) {
	stores := createTestStores()
	orch := newTestOrchestrator(stores, &syncScheduler{})
	ctx := context.Background()

	_, _ = orch.Create(ctx, validParams())
	_, _ = orch.Create(ctx, validParams())
	other := validParams()
	other.UserID = "user-2"
	_, _ = orch.Create(ctx, other)

	sims, err := orch.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sims) != 2 {
		t.Errorf("expected 2 simulations, got %d", len(sims))
	}
}

func TestOrchestrator_AggregatesEmpty(t *testing.T) {
	orch := newTestOrchestrator(createTestStores(), &syncScheduler{})

	aggs, err := orch.Aggregates(context.Background())
	if err != nil {
		t.Fatalf("Aggregates failed: %v", err)
	}
	if len(aggs) != 0 {
		t.Errorf("expected no aggregates, got %d", len(aggs))
	}
}
