// Package main provides the simulation service: HTTP API, run scheduler and
// executor wired to the configured storage backends.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"btc-scenario-lab/internal/api"
	"btc-scenario-lab/internal/config"
	"btc-scenario-lab/internal/logging"
	"btc-scenario-lab/internal/orchestrator"
	"btc-scenario-lab/internal/queue"
	"btc-scenario-lab/internal/scheduler"
	"btc-scenario-lab/internal/simulation"
	"btc-scenario-lab/internal/storage"
	chstore "btc-scenario-lab/internal/storage/clickhouse"
	"btc-scenario-lab/internal/storage/memory"
	"btc-scenario-lab/internal/storage/migrations"
	pgstore "btc-scenario-lab/internal/storage/postgres"
	redisstore "btc-scenario-lab/internal/storage/redis"
)

// connectTimeout bounds the retries of each backing service at startup.
const connectTimeout = 30 * time.Second

// Server holds all components of the service.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	stores    *allStores
	queue     queue.Queue
	scheduler *scheduler.Scheduler
	orch      *orchestrator.Orchestrator

	mu        sync.Mutex
	startedAt time.Time
}

// allStores holds all storage implementations.
type allStores struct {
	simulationStore storage.SimulationStore
	resultStore     storage.SimulationResultStore
	progressStore   storage.ProgressStore
	summaryStore    storage.RunSummaryStore

	// redis is shared with the distributed limiter; nil in memory mode.
	redis *redisstore.Client
}

func main() {
	configPath := flag.String("config", os.Getenv("LAB_CONFIG"), "Path to config file (optional)")
	useMemory := flag.Bool("use-memory", false, "Force in-memory storage and queue")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *useMemory {
		cfg.Storage.UseMemory = true
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create stores", zap.Error(err))
	}
	defer cleanup()

	q, err := createQueue(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create run queue", zap.Error(err))
	}
	defer q.Close()

	server := newServer(cfg, logger, stores, q)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Server error", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*allStores, func(), error) {
	if cfg.Storage.UseMemory {
		logger.Info("Using in-memory storage")
		stores := &allStores{
			simulationStore: memory.NewSimulationStore(),
			resultStore:     memory.NewSimulationResultStore(),
			progressStore:   memory.NewProgressStore(cfg.Redis.ProgressTTL),
			summaryStore:    memory.NewRunSummaryStore(),
		}
		return stores, func() {}, nil
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// PostgreSQL
	pool, err := connect(ctx, logger, "postgres", func() (*pgstore.Pool, error) {
		return pgstore.NewPool(ctx, cfg.Postgres.DSN)
	})
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, pool.Close)

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	stores := &allStores{
		simulationStore: pgstore.NewSimulationStore(pool),
		resultStore:     pgstore.NewSimulationResultStore(pool),
		progressStore:   memory.NewProgressStore(cfg.Redis.ProgressTTL),
		summaryStore:    memory.NewRunSummaryStore(),
	}

	// Redis (progress key space)
	if cfg.Redis.URL != "" {
		rdb, err := connect(ctx, logger, "redis", func() (*redisstore.Client, error) {
			return redisstore.NewClient(ctx, cfg.Redis.URL)
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		stores.redis = rdb
		stores.progressStore = redisstore.NewProgressStore(rdb, cfg.Redis.ProgressTTL)
	} else {
		logger.Warn("redis.url not set, progress is kept in process")
	}

	// ClickHouse (run summaries)
	if cfg.ClickHouse.DSN != "" {
		chConn, err := connect(ctx, logger, "clickhouse", func() (*chstore.Conn, error) {
			return migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = chConn.Close() })
		stores.summaryStore = chstore.NewRunSummaryStore(chConn)
	} else {
		logger.Warn("clickhouse.dsn not set, run summaries are kept in process")
	}

	return stores, cleanup, nil
}

// connect retries open with exponential backoff until connectTimeout.
func connect[T any](ctx context.Context, logger *zap.Logger, name string, open func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = connectTimeout

	var conn T
	err := backoff.RetryNotify(func() error {
		c, err := open()
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		logger.Warn("Backing service unavailable, retrying",
			zap.String("service", name), zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		return conn, fmt.Errorf("connect to %s: %w", name, err)
	}
	logger.Info("Connected", zap.String("service", name))
	return conn, nil
}

// createQueue returns the Kafka queue when brokers are configured, otherwise
// an in-process queue.
func createQueue(cfg *config.Config, logger *zap.Logger) (queue.Queue, error) {
	if cfg.Storage.UseMemory || len(cfg.Kafka.Brokers) == 0 {
		return queue.NewMemoryQueue(cfg.Scheduler.QueueCapacity), nil
	}
	return queue.NewKafkaQueue(queue.KafkaConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topic,
		GroupID:  cfg.Kafka.GroupID,
		ClientID: "btc-scenario-lab",
	}, logger.Named("queue"))
}

// newServer wires executor, scheduler and orchestrator.
func newServer(cfg *config.Config, logger *zap.Logger, stores *allStores, q queue.Queue) *Server {
	executor := simulation.NewExecutor(simulation.ExecutorOptions{
		Simulations:   stores.simulationStore,
		Results:       stores.resultStore,
		Progress:      stores.progressStore,
		Summaries:     stores.summaryStore,
		Logger:        logger.Named("executor"),
		SnapshotEvery: cfg.Executor.SnapshotEvery,
		YieldEvery:    cfg.Executor.YieldEvery,
		YieldPause:    cfg.Executor.YieldPause,
	})

	var limiter scheduler.Limiter = scheduler.NewLocalLimiter(cfg.Scheduler.StartsPerSecond, 1)
	if cfg.Scheduler.UseRedisLimiter && stores.redis != nil {
		limiter = scheduler.NewRedisLimiter(stores.redis.Client, "scheduler:starts", cfg.Scheduler.StartsPerSecond)
	}

	sched := scheduler.New(scheduler.Options{
		Queue:       q,
		Runner:      executor,
		Simulations: stores.simulationStore,
		Limiter:     limiter,
		Workers:     cfg.Scheduler.Workers,
		Logger:      logger.Named("scheduler"),
	})

	seeds := rand.New(rand.NewSource(time.Now().UnixNano()))
	var seedMu sync.Mutex

	orch := orchestrator.New(orchestrator.Options{
		Simulations: stores.simulationStore,
		Results:     stores.resultStore,
		Progress:    stores.progressStore,
		Summaries:   stores.summaryStore,
		Scheduler:   sched,
		Logger:      logger.Named("orchestrator"),
		SeedFn: func() int64 {
			seedMu.Lock()
			defer seedMu.Unlock()
			return seeds.Int63()
		},
	})

	return &Server{
		cfg:       cfg,
		logger:    logger,
		stores:    stores,
		queue:     q,
		scheduler: sched,
		orch:      orch,
	}
}

// Run starts the scheduler and the HTTP server and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	router := api.NewRouter(api.Options{
		Service: s.orch,
		Logger:  s.logger.Named("api"),
		Status:  s.status,
	})

	handler := cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", api.UserHeader},
	}).Handler(router)

	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	if s.cfg.Scheduler.StaleRunAfter > 0 {
		n, err := s.scheduler.RecoverStale(ctx, s.cfg.Scheduler.StaleRunAfter)
		if err != nil {
			return fmt.Errorf("recover stale runs: %w", err)
		}
		if n > 0 {
			s.logger.Warn("Recovered stale runs", zap.Int("count", n))
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.scheduler.Run(gctx)
	})

	g.Go(func() error {
		s.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server forced to shutdown", zap.Error(err))
		}
		// Unblocks workers waiting on the queue.
		return s.queue.Close()
	})

	return g.Wait()
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime"`
	StartedAt time.Time `json:"started_at"`
	Storage   string    `json:"storage"`
	Workers   int       `json:"workers"`
}

func (s *Server) status() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	backend := "postgres"
	if s.cfg.Storage.UseMemory {
		backend = "memory"
	}
	return StatusResponse{
		Status:    "running",
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		StartedAt: s.startedAt,
		Storage:   backend,
		Workers:   s.cfg.Scheduler.Workers,
	}
}
