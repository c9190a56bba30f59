// Package scheduler runs queued simulations on a bounded worker pool.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/observability"
	"btc-scenario-lab/internal/queue"
	"btc-scenario-lab/internal/simulation"
	"btc-scenario-lab/internal/storage"
)

// DefaultWorkers is the number of simulations run concurrently.
const DefaultWorkers = 2

// Runner executes one simulation to a terminal status.
type Runner interface {
	Run(ctx context.Context, simulationID string) (*simulation.Report, error)
}

// Options contains configuration for creating a Scheduler.
type Options struct {
	Queue       queue.Queue
	Runner      Runner
	Simulations storage.SimulationStore
	Limiter     Limiter // nil uses a LocalLimiter at DefaultStartsPerSecond
	Workers     int
	Logger      *zap.Logger
	Now         func() time.Time
}

// Scheduler accepts start requests and feeds them to workers.
type Scheduler struct {
	queue       queue.Queue
	runner      Runner
	simulations storage.SimulationStore
	limiter     Limiter
	workers     int
	logger      *zap.Logger
	now         func() time.Time

	mu        sync.Mutex
	pending   map[string]struct{}           // accepted, not yet finished
	running   map[string]context.CancelFunc // executing on a worker
	cancelled map[string]struct{}           // cancelled while queued
}

// New creates a Scheduler.
func New(opts Options) *Scheduler {
	s := &Scheduler{
		queue:       opts.Queue,
		runner:      opts.Runner,
		simulations: opts.Simulations,
		limiter:     opts.Limiter,
		workers:     opts.Workers,
		logger:      opts.Logger,
		now:         opts.Now,
		pending:     make(map[string]struct{}),
		running:     make(map[string]context.CancelFunc),
		cancelled:   make(map[string]struct{}),
	}
	if s.limiter == nil {
		s.limiter = NewLocalLimiter(DefaultStartsPerSecond, 1)
	}
	if s.workers <= 0 {
		s.workers = DefaultWorkers
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Submit enqueues a start request. It returns domain.ErrStateConflict when
// the simulation is not created or a live request for it is already accepted.
// A request cancelled while still queued is re-armed rather than duplicated.
func (s *Scheduler) Submit(ctx context.Context, simulationID string) error {
	sim, err := s.simulations.GetByID(ctx, simulationID)
	if err != nil {
		return err
	}
	if sim.Status != domain.StatusCreated {
		observability.RecordRunRejected("status")
		return fmt.Errorf("%w: simulation %s is %s", domain.ErrStateConflict, simulationID, sim.Status)
	}

	s.mu.Lock()
	if _, dropped := s.cancelled[simulationID]; dropped {
		// The cancelled request is still queued; re-arm it instead of enqueuing another.
		delete(s.cancelled, simulationID)
		s.mu.Unlock()
		s.logger.Debug("cancelled run request re-armed", zap.String("simulation_id", simulationID))
		return nil
	}
	if _, dup := s.pending[simulationID]; dup {
		s.mu.Unlock()
		observability.RecordRunRejected("pending")
		return fmt.Errorf("%w: simulation %s already queued", domain.ErrStateConflict, simulationID)
	}
	s.pending[simulationID] = struct{}{}
	s.mu.Unlock()

	req := domain.RunRequest{SimulationID: simulationID, RequestedAt: s.now().UnixMilli()}
	if err := s.queue.Enqueue(ctx, req); err != nil {
		s.release(simulationID)
		return fmt.Errorf("enqueue run request: %w", err)
	}
	observability.AddQueueDepth(1)

	s.logger.Debug("run request accepted", zap.String("simulation_id", simulationID))
	return nil
}

// Cancel aborts a running or queued simulation. A running one ends failed;
// a queued one is dropped and stays created. Only requests accepted or
// executed by this process can be cancelled.
func (s *Scheduler) Cancel(simulationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.running[simulationID]; ok {
		cancel()
		return nil
	}
	if _, ok := s.pending[simulationID]; ok {
		s.cancelled[simulationID] = struct{}{}
		return nil
	}
	return fmt.Errorf("%w: simulation %s is not scheduled", domain.ErrStateConflict, simulationID)
}

// IsScheduled reports whether a request for the simulation is queued or running.
func (s *Scheduler) IsScheduled(simulationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[simulationID]
	return ok
}

// Run starts the workers and blocks until ctx is done or the queue closes.
func (s *Scheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		worker := i
		g.Go(func() error {
			return s.work(gctx, worker)
		})
	}

	s.logger.Info("scheduler started", zap.Int("workers", s.workers))
	err := g.Wait()
	s.logger.Info("scheduler stopped")
	return err
}

func (s *Scheduler) work(ctx context.Context, worker int) error {
	log := s.logger.With(zap.Int("worker", worker))

	for {
		msg, err := s.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("dequeue run request: %w", err)
		}
		observability.AddQueueDepth(-1)

		if err := s.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		s.handle(ctx, msg, log)
	}
}

func (s *Scheduler) handle(ctx context.Context, msg *queue.Message, log *zap.Logger) {
	id := msg.Request.SimulationID
	log = log.With(zap.String("simulation_id", id))

	defer func() {
		if err := s.queue.Ack(context.WithoutCancel(ctx), msg); err != nil {
			log.Warn("failed to ack run request", zap.Error(err))
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if _, dropped := s.cancelled[id]; dropped {
		delete(s.cancelled, id)
		delete(s.pending, id)
		s.mu.Unlock()
		log.Info("skipping cancelled run request")
		return
	}
	if _, dup := s.running[id]; dup {
		s.mu.Unlock()
		log.Warn("run already executing, skipping duplicate request")
		return
	}
	s.pending[id] = struct{}{}
	s.running[id] = cancel
	s.mu.Unlock()
	defer s.release(id)

	observability.AddBusyWorkers(1)
	defer observability.AddBusyWorkers(-1)

	started := time.Now()
	report, err := s.runner.Run(runCtx, id)
	switch {
	case errors.Is(err, domain.ErrStateConflict):
		log.Info("run request skipped", zap.Error(err))
	case err != nil:
		fields := []zap.Field{zap.Duration("elapsed", time.Since(started)), zap.Error(err)}
		if report != nil {
			fields = append(fields, zap.Int("samples", report.Samples))
		}
		log.Warn("run finished with error", fields...)
	default:
		log.Debug("run finished", zap.Duration("elapsed", time.Since(started)))
	}
}

// RecoverStale marks failed every simulation left running for longer than
// staleAfter that this scheduler is not executing, such as runs orphaned by
// a process crash. It returns the number of simulations recovered.
func (s *Scheduler) RecoverStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	now := s.now()
	stale, err := s.simulations.ListRunningBefore(ctx, now.Add(-staleAfter))
	if err != nil {
		return 0, fmt.Errorf("list stale runs: %w", err)
	}

	recovered := 0
	for _, sim := range stale {
		s.mu.Lock()
		_, local := s.running[sim.ID]
		s.mu.Unlock()
		if local {
			continue
		}

		err := s.simulations.MarkFinished(ctx, sim.ID, domain.StatusFailed, now)
		switch {
		case errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrNotFound):
			continue
		case err != nil:
			return recovered, fmt.Errorf("fail stale run %s: %w", sim.ID, err)
		}

		recovered++
		observability.RecordSimulationRecovered(string(sim.AutomationKind))
		s.logger.Warn("stale run marked failed",
			zap.String("simulation_id", sim.ID),
			zap.Timep("started_at", sim.StartedAt))
	}
	return recovered, nil
}

func (s *Scheduler) release(simulationID string) {
	s.mu.Lock()
	delete(s.pending, simulationID)
	delete(s.running, simulationID)
	s.mu.Unlock()
}
