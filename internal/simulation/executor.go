// Package simulation drives one backtest run from created to a terminal status.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/idhash"
	"btc-scenario-lab/internal/ledger"
	"btc-scenario-lab/internal/metrics"
	"btc-scenario-lab/internal/observability"
	"btc-scenario-lab/internal/pathgen"
	"btc-scenario-lab/internal/storage"
	"btc-scenario-lab/internal/strategy"
)

// Executor errors
var (
	// ErrAllSnapshotsFailed fails a run whose storage slot rejected every snapshot.
	ErrAllSnapshotsFailed = errors.New("every snapshot write failed")
)

// Defaults for ExecutorOptions.
const (
	DefaultSnapshotEvery = 10
	DefaultYieldEvery    = 100
)

// ExecutorOptions contains configuration for creating an Executor.
type ExecutorOptions struct {
	Simulations storage.SimulationStore
	Results     storage.SimulationResultStore
	Progress    storage.ProgressStore   // optional
	Summaries   storage.RunSummaryStore // optional
	Logger      *zap.Logger

	// SnapshotEvery persists every Nth sample plus the final one.
	SnapshotEvery int
	// YieldEvery yields the loop every N samples.
	YieldEvery int
	// YieldPause sleeps instead of runtime.Gosched when positive.
	YieldPause time.Duration

	// NewSource builds the price path randomness from the stored seed.
	NewSource func(seed int64) pathgen.Source
	Now       func() time.Time
}

// AppliedAction is one evaluator action applied to the ledger.
type AppliedAction struct {
	SampleIndex   int
	TimestampMs   int64
	Price         float64
	Action        domain.Action
	BalanceBefore float64
	BalanceAfter  float64
}

// Report describes a finished run.
type Report struct {
	SimulationID   string
	Status         domain.SimulationStatus
	Samples        int
	Snapshots      int
	SnapshotErrors int
	Actions        []AppliedAction
	Summary        domain.Summary
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Executor runs simulations.
type Executor struct {
	simulations storage.SimulationStore
	results     storage.SimulationResultStore
	progress    storage.ProgressStore
	summaries   storage.RunSummaryStore
	logger      *zap.Logger

	snapshotEvery int
	yieldEvery    int
	yieldPause    time.Duration
	newSource     func(seed int64) pathgen.Source
	now           func() time.Time
}

// NewExecutor creates an Executor.
func NewExecutor(opts ExecutorOptions) *Executor {
	e := &Executor{
		simulations:   opts.Simulations,
		results:       opts.Results,
		progress:      opts.Progress,
		summaries:     opts.Summaries,
		logger:        opts.Logger,
		snapshotEvery: opts.SnapshotEvery,
		yieldEvery:    opts.YieldEvery,
		yieldPause:    opts.YieldPause,
		newSource:     opts.NewSource,
		now:           opts.Now,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.snapshotEvery <= 0 {
		e.snapshotEvery = DefaultSnapshotEvery
	}
	if e.yieldEvery <= 0 {
		e.yieldEvery = DefaultYieldEvery
	}
	if e.newSource == nil {
		e.newSource = pathgen.NewSource
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Run executes the simulation with the given id.
// Steps:
//  1. Load the simulation and move it created -> running
//  2. Generate the price path from the stored seed
//  3. Evaluate, apply and snapshot each sample
//  4. Move to completed, or failed on error/cancellation
//  5. Store the run summary
//
// A run that reached running always ends terminal, and the returned Report
// is non-nil in that case even when err is not.
func (e *Executor) Run(ctx context.Context, simulationID string) (*Report, error) {
	sim, err := e.simulations.GetByID(ctx, simulationID)
	if err != nil {
		return nil, err // propagates storage.ErrNotFound
	}
	if sim.Status != domain.StatusCreated {
		return nil, fmt.Errorf("%w: simulation %s is %s", domain.ErrStateConflict, sim.ID, sim.Status)
	}

	startedAt := e.now()
	if err := e.simulations.MarkRunning(ctx, sim.ID, startedAt); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("%w: simulation %s already started", domain.ErrStateConflict, sim.ID)
		}
		return nil, fmt.Errorf("mark running: %w", err)
	}
	sim.Status = domain.StatusRunning
	sim.StartedAt = &startedAt

	log := e.logger.With(
		zap.String("simulation_id", sim.ID),
		zap.String("automation_kind", string(sim.AutomationKind)),
		zap.String("price_regime", string(sim.PriceRegime)),
	)
	log.Info("simulation started", zap.Int("duration_seconds", sim.DurationSeconds), zap.Int64("seed", sim.Seed))
	observability.RecordSimulationStarted(string(sim.AutomationKind))

	report, runErr := e.execute(ctx, sim, startedAt, log)

	// Finalization must land even when the run was cancelled.
	finishCtx := context.WithoutCancel(ctx)

	report.FinishedAt = e.now()
	report.Status = domain.StatusCompleted
	if runErr != nil {
		report.Status = domain.StatusFailed
	}

	if err := e.simulations.MarkFinished(finishCtx, sim.ID, report.Status, report.FinishedAt); err != nil {
		log.Error("failed to mark simulation finished", zap.String("status", string(report.Status)), zap.Error(err))
		if runErr == nil {
			runErr = fmt.Errorf("mark finished: %w", err)
		}
	}
	if e.progress != nil {
		if err := e.progress.Clear(finishCtx, sim.ID); err != nil {
			log.Debug("failed to clear progress", zap.Error(err))
		}
	}
	e.storeSummary(finishCtx, sim, report, log)

	elapsed := report.FinishedAt.Sub(startedAt).Seconds()
	observability.RecordSimulationFinished(string(sim.AutomationKind), string(report.Status), elapsed)

	if runErr != nil {
		log.Warn("simulation failed",
			zap.Int("samples", report.Samples),
			zap.Int("snapshots", report.Snapshots),
			zap.Error(runErr))
		return report, runErr
	}

	log.Info("simulation completed",
		zap.Int("samples", report.Samples),
		zap.Int("snapshots", report.Snapshots),
		zap.Int("actions", len(report.Actions)),
		zap.Float64("total_pnl", report.Summary.TotalPnL),
		zap.Float64("final_balance", report.Summary.FinalBalance))
	return report, nil
}

// execute runs the step loop. It never returns a nil Report.
func (e *Executor) execute(ctx context.Context, sim *domain.Simulation, startedAt time.Time, log *zap.Logger) (*Report, error) {
	report := &Report{SimulationID: sim.ID, StartedAt: startedAt}

	ev, err := strategy.FromKind(sim.AutomationKind)
	if err != nil {
		return report, err
	}

	path := pathgen.Generate(sim.PriceRegime, sim.InitialPrice, sim.DurationSeconds, startedAt.UnixMilli(), e.newSource(sim.Seed))
	total := len(path)

	led := ledger.New()
	if sim.AutomationKind.ManagesOpenPosition() {
		if err := led.OpenPosition(sim.InitialPrice); err != nil {
			return report, fmt.Errorf("open initial position: %w", err)
		}
	}

	out := newSink(context.WithoutCancel(ctx), sim.ID, e.results, e.progress, log)
	var snapshots []*domain.SimulationResult

	loopErr := func() error {
		for i, pt := range path {
			if err := ctx.Err(); err != nil {
				return err
			}

			var applied *domain.Action
			if action := ev.Evaluate(led.State(pt.Price, sim.InitialPrice)); action != nil {
				before := led.Balance
				if err := led.Apply(action, pt.Price); err != nil {
					return fmt.Errorf("apply %s at sample %d: %w", action.Kind, i, err)
				}
				applied = action
				report.Actions = append(report.Actions, AppliedAction{
					SampleIndex:   i,
					TimestampMs:   pt.TimestampMs,
					Price:         pt.Price,
					Action:        *action.Clone(),
					BalanceBefore: before,
					BalanceAfter:  led.Balance,
				})
				observability.RecordAction(string(action.Kind))
			}
			report.Samples++

			if i%e.snapshotEvery == e.snapshotEvery-1 || i == total-1 {
				snap := buildSnapshot(sim.ID, len(snapshots), pt, applied, led)
				snapshots = append(snapshots, snap)
				out.pushSnapshot(snap.Clone())
			}
			out.pushProgress(domain.ProgressSample{
				Progress:     float64(i+1) / float64(total) * 100,
				CurrentPrice: pt.Price,
			})

			if (i+1)%e.yieldEvery == 0 {
				if err := e.yield(ctx); err != nil {
					return err
				}
			}
		}
		return nil
	}()

	stats := out.close()
	observability.RecordSamples(report.Samples)
	report.Snapshots = stats.written
	report.SnapshotErrors = stats.failed
	report.Summary = metrics.Summarize(snapshots)

	if loopErr != nil {
		return report, loopErr
	}
	if stats.attempted > 0 && stats.written == 0 {
		return report, ErrAllSnapshotsFailed
	}
	return report, nil
}

func (e *Executor) yield(ctx context.Context) error {
	if e.yieldPause <= 0 {
		runtime.Gosched()
		return nil
	}

	timer := time.NewTimer(e.yieldPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// buildSnapshot captures the ledger after the sample's action was applied.
func buildSnapshot(simulationID string, seq int, pt domain.PricePoint, action *domain.Action, led *ledger.Ledger) *domain.SimulationResult {
	r := &domain.SimulationResult{
		ResultID:      idhash.ComputeResultID(simulationID, seq, pt.TimestampMs),
		SimulationID:  simulationID,
		Seq:           seq,
		TimestampMs:   pt.TimestampMs,
		Price:         pt.Price,
		Balance:       led.Balance,
		PositionSize:  led.PositionSize,
		UnrealizedPnL: led.UnrealizedPnL(pt.Price),
		MarginLevel:   led.MarginLevel(pt.Price),
		SuccessRate:   led.SuccessRate(),
		ActionCount:   led.TotalActions,
	}
	if action != nil {
		kind := action.Kind
		r.ActionKind = &kind
		r.ActionDetails = action.Clone().Details
	}
	return r
}

func (e *Executor) storeSummary(ctx context.Context, sim *domain.Simulation, report *Report, log *zap.Logger) {
	if e.summaries == nil {
		return
	}

	summary := &domain.RunSummary{
		SimulationID:   sim.ID,
		UserID:         sim.UserID,
		AutomationKind: sim.AutomationKind,
		PriceRegime:    sim.PriceRegime,
		Status:         report.Status,
		InitialPrice:   sim.InitialPrice,
		DurationSec:    sim.DurationSeconds,
		Samples:        report.Samples,
		Snapshots:      report.Snapshots,
		FinishedAtMs:   report.FinishedAt.UnixMilli(),
		TotalActions:   report.Summary.TotalActions,
		SuccessRate:    report.Summary.SuccessRate,
		TotalPnL:       report.Summary.TotalPnL,
		MaxDrawdown:    report.Summary.MaxDrawdown,
		FinalBalance:   report.Summary.FinalBalance,
	}
	if err := e.summaries.Insert(ctx, summary); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		log.Warn("failed to store run summary", zap.Error(err))
	}
}
