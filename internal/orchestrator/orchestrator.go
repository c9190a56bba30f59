// Package orchestrator is the simulation service: it validates and creates
// simulations, hands start requests to the scheduler, and serves progress,
// results and metrics reads.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/metrics"
	"btc-scenario-lab/internal/observability"
	"btc-scenario-lab/internal/storage"
)

// Scheduler accepts start and cancel requests.
type Scheduler interface {
	Submit(ctx context.Context, simulationID string) error
	Cancel(simulationID string) error
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	Simulations storage.SimulationStore
	Results     storage.SimulationResultStore

	// Optional stores
	Progress  storage.ProgressStore
	Summaries storage.RunSummaryStore

	Scheduler Scheduler
	Logger    *zap.Logger

	Now    func() time.Time
	NewID  func() string
	SeedFn func() int64
}

// Orchestrator implements the simulation lifecycle operations.
type Orchestrator struct {
	simulations storage.SimulationStore
	results     storage.SimulationResultStore
	progress    storage.ProgressStore
	summaries   storage.RunSummaryStore
	scheduler   Scheduler
	logger      *zap.Logger
	validate    *validator.Validate

	now    func() time.Time
	newID  func() string
	seedFn func() int64
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		simulations: opts.Simulations,
		results:     opts.Results,
		progress:    opts.Progress,
		summaries:   opts.Summaries,
		scheduler:   opts.Scheduler,
		logger:      opts.Logger,
		validate:    newValidator(),
		now:         opts.Now,
		newID:       opts.NewID,
		seedFn:      opts.SeedFn,
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.NewString() }
	}
	if o.seedFn == nil {
		o.seedFn = rand.Int63
	}
	return o
}

// CreateParams is the input of Create.
type CreateParams struct {
	UserID          string                `validate:"required,max=128"`
	Name            string                `validate:"required,max=200"`
	AutomationKind  domain.AutomationKind `validate:"required,automation_kind"`
	PriceRegime     domain.PriceRegime    `validate:"required,price_regime"`
	InitialPrice    float64               `validate:"gt=0"`
	DurationSeconds int                   `validate:"min=10,max=3600"`
	AccountID       *string               `validate:"omitempty,min=1,max=128"`
	Environment     string                `validate:"omitempty,max=32"`

	// Seed fixes the price path. Nil draws one.
	Seed *int64
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("automation_kind", func(fl validator.FieldLevel) bool {
		return domain.AutomationKind(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("price_regime", func(fl validator.FieldLevel) bool {
		return domain.PriceRegime(fl.Field().String()).Valid()
	})
	return v
}

// Create validates params and stores a new simulation in status created.
func (o *Orchestrator) Create(ctx context.Context, p CreateParams) (*domain.Simulation, error) {
	if err := o.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidSimulation, describeValidation(err))
	}

	env := p.Environment
	if env == "" {
		env = domain.DefaultEnvironment
	}
	seed := o.seedFn()
	if p.Seed != nil {
		seed = *p.Seed
	}

	sim := &domain.Simulation{
		ID:              o.newID(),
		UserID:          p.UserID,
		Name:            p.Name,
		AutomationKind:  p.AutomationKind,
		PriceRegime:     p.PriceRegime,
		InitialPrice:    p.InitialPrice,
		DurationSeconds: p.DurationSeconds,
		AccountID:       p.AccountID,
		Environment:     env,
		Seed:            seed,
		Status:          domain.StatusCreated,
		CreatedAt:       o.now().UTC(),
	}

	if err := o.simulations.Insert(ctx, sim); err != nil {
		return nil, fmt.Errorf("insert simulation: %w", err)
	}

	o.logger.Info("simulation created",
		zap.String("simulation_id", sim.ID),
		zap.String("user_id", sim.UserID),
		zap.String("automation_kind", string(sim.AutomationKind)),
		zap.String("price_regime", string(sim.PriceRegime)))
	observability.RecordSimulationCreated(string(sim.AutomationKind))
	return sim, nil
}

// describeValidation flattens validator errors into one message.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
	}
	return msg
}

// Get returns a simulation owned by userID.
// An empty userID skips the ownership check.
func (o *Orchestrator) Get(ctx context.Context, userID, id string) (*domain.Simulation, error) {
	sim, err := o.simulations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != "" && sim.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return sim, nil
}

// List returns the simulations of a user, newest first.
func (o *Orchestrator) List(ctx context.Context, userID string) ([]*domain.Simulation, error) {
	return o.simulations.ListByUser(ctx, userID)
}

// Start requests execution. Fails with ErrStateConflict unless the
// simulation is created and not already queued. Execution errors are never
// returned here; they surface as status failed.
func (o *Orchestrator) Start(ctx context.Context, userID, id string) error {
	sim, err := o.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if sim.Status != domain.StatusCreated {
		return fmt.Errorf("%w: simulation %s is %s", domain.ErrStateConflict, id, sim.Status)
	}
	if o.scheduler == nil {
		return errors.New("no scheduler configured")
	}
	return o.scheduler.Submit(ctx, id)
}

// Cancel aborts a queued or running simulation.
func (o *Orchestrator) Cancel(ctx context.Context, userID, id string) error {
	if _, err := o.Get(ctx, userID, id); err != nil {
		return err
	}
	if o.scheduler == nil {
		return fmt.Errorf("%w: simulation %s is not scheduled", domain.ErrStateConflict, id)
	}
	return o.scheduler.Cancel(id)
}

// Delete removes a simulation that is not running, with its results,
// progress and run summary.
func (o *Orchestrator) Delete(ctx context.Context, userID, id string) error {
	sim, err := o.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if sim.Status == domain.StatusRunning {
		return fmt.Errorf("%w: simulation %s is running", domain.ErrStateConflict, id)
	}

	if err := o.simulations.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return fmt.Errorf("%w: simulation %s is running", domain.ErrStateConflict, id)
		}
		return fmt.Errorf("delete simulation: %w", err)
	}

	// A queued request for a created simulation is dropped.
	if sim.Status == domain.StatusCreated && o.scheduler != nil {
		_ = o.scheduler.Cancel(id)
	}

	if err := o.results.DeleteBySimulationID(ctx, id); err != nil {
		return fmt.Errorf("delete results: %w", err)
	}
	if o.progress != nil {
		if err := o.progress.Clear(ctx, id); err != nil {
			o.logger.Warn("failed to clear progress", zap.String("simulation_id", id), zap.Error(err))
		}
	}
	if o.summaries != nil {
		if err := o.summaries.DeleteBySimulationID(ctx, id); err != nil {
			o.logger.Warn("failed to delete run summary", zap.String("simulation_id", id), zap.Error(err))
		}
	}

	o.logger.Info("simulation deleted", zap.String("simulation_id", id), zap.String("status", string(sim.Status)))
	return nil
}

// Progress returns the poller view. Running simulations read the ephemeral
// key space; terminal ones report 100 and the last persisted price.
func (o *Orchestrator) Progress(ctx context.Context, userID, id string) (*domain.Progress, error) {
	sim, err := o.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	p := &domain.Progress{
		SimulationID: sim.ID,
		Status:       sim.Status,
		StartedAt:    sim.StartedAt,
		CompletedAt:  sim.CompletedAt,
	}

	switch {
	case sim.Status == domain.StatusRunning:
		if o.progress == nil {
			return p, nil
		}
		sample, err := o.progress.Get(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return p, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read progress: %w", err)
		}
		price := sample.CurrentPrice
		p.Progress = sample.Progress
		p.CurrentPrice = &price
	case sim.Status.IsTerminal():
		p.Progress = 100
		last, err := o.results.GetLast(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return p, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read last result: %w", err)
		}
		price := last.Price
		p.CurrentPrice = &price
	}
	return p, nil
}

// Results returns the ordered series with its chart projections.
// Failed runs return whatever was persisted.
func (o *Orchestrator) Results(ctx context.Context, userID, id string) (*domain.ResultSeries, error) {
	if _, err := o.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	results, err := o.results.GetBySimulationID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	return domain.NewResultSeries(id, results), nil
}

// MetricsReport is the metrics read: the summary plus the simulation's configuration.
type MetricsReport struct {
	Simulation *domain.Simulation
	Summary    domain.Summary
}

// Metrics summarizes the persisted series. Returns ErrNoResults when empty.
func (o *Orchestrator) Metrics(ctx context.Context, userID, id string) (*MetricsReport, error) {
	sim, err := o.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	results, err := o.results.GetBySimulationID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	if len(results) == 0 {
		return nil, domain.ErrNoResults
	}
	return &MetricsReport{Simulation: sim, Summary: metrics.Summarize(results)}, nil
}

// Aggregates returns cross-run statistics per (automation kind, regime).
func (o *Orchestrator) Aggregates(ctx context.Context) ([]*domain.StrategyAggregate, error) {
	if o.summaries == nil {
		return nil, nil
	}
	aggs, err := metrics.NewAggregator(o.summaries).ComputeAll(ctx)
	if errors.Is(err, metrics.ErrNoRuns) {
		return []*domain.StrategyAggregate{}, nil
	}
	return aggs, err
}
