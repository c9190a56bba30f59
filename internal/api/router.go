// Package api exposes the simulation service over HTTP with gin.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/observability"
	"btc-scenario-lab/internal/orchestrator"
)

// Service is the simulation lifecycle the API serves.
type Service interface {
	Create(ctx context.Context, p orchestrator.CreateParams) (*domain.Simulation, error)
	Get(ctx context.Context, userID, id string) (*domain.Simulation, error)
	List(ctx context.Context, userID string) ([]*domain.Simulation, error)
	Start(ctx context.Context, userID, id string) error
	Cancel(ctx context.Context, userID, id string) error
	Delete(ctx context.Context, userID, id string) error
	Progress(ctx context.Context, userID, id string) (*domain.Progress, error)
	Results(ctx context.Context, userID, id string) (*domain.ResultSeries, error)
	Metrics(ctx context.Context, userID, id string) (*orchestrator.MetricsReport, error)
	Aggregates(ctx context.Context) ([]*domain.StrategyAggregate, error)
}

var _ Service = (*orchestrator.Orchestrator)(nil)

// DefaultStreamInterval is the progress push interval of the websocket stream.
const DefaultStreamInterval = 500 * time.Millisecond

// Options for creating the router.
type Options struct {
	Service Service
	Logger  *zap.Logger

	// StreamInterval between progress pushes. Default 500ms.
	StreamInterval time.Duration

	// Status, if set, is served at GET /status.
	Status func() any
}

type handler struct {
	svc            Service
	logger         *zap.Logger
	streamInterval time.Duration
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(opts Options) *gin.Engine {
	h := &handler{
		svc:            opts.Service,
		logger:         opts.Logger,
		streamInterval: opts.StreamInterval,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.streamInterval <= 0 {
		h.streamInterval = DefaultStreamInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(h.logger))
	router.Use(requestMetrics())

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(observability.Handler()))
	if opts.Status != nil {
		router.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, opts.Status())
		})
	}

	v1 := router.Group("/api/v1")
	v1.GET("/aggregates", h.aggregates)

	sims := v1.Group("/simulations", requireUser())
	{
		sims.POST("", h.create)
		sims.GET("", h.list)
		sims.GET("/:id", h.get)
		sims.DELETE("/:id", h.delete)
		sims.POST("/:id/start", h.start)
		sims.POST("/:id/cancel", h.cancel)
		sims.GET("/:id/progress", h.progress)
		sims.GET("/:id/progress/stream", h.progressStream)
		sims.GET("/:id/results", h.results)
		sims.GET("/:id/metrics", h.metrics)
	}

	return router
}
