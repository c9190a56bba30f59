package api

import (
	"time"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/orchestrator"
)

type createSimulationRequest struct {
	Name            string  `json:"name"`
	AutomationKind  string  `json:"automationKind"`
	PriceRegime     string  `json:"priceRegime"`
	InitialPrice    float64 `json:"initialPrice"`
	DurationSeconds int     `json:"durationSeconds"`
	AccountID       *string `json:"accountId,omitempty"`
	Environment     string  `json:"environment,omitempty"`
	Seed            *int64  `json:"seed,omitempty"`
}

func (r createSimulationRequest) params(userID string) orchestrator.CreateParams {
	return orchestrator.CreateParams{
		UserID:          userID,
		Name:            r.Name,
		AutomationKind:  domain.AutomationKind(r.AutomationKind),
		PriceRegime:     domain.PriceRegime(r.PriceRegime),
		InitialPrice:    r.InitialPrice,
		DurationSeconds: r.DurationSeconds,
		AccountID:       r.AccountID,
		Environment:     r.Environment,
		Seed:            r.Seed,
	}
}

// SimulationResponse is the JSON form of a simulation.
type SimulationResponse struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	Name            string     `json:"name"`
	AutomationKind  string     `json:"automationKind"`
	PriceRegime     string     `json:"priceRegime"`
	InitialPrice    float64    `json:"initialPrice"`
	DurationSeconds int        `json:"durationSeconds"`
	AccountID       *string    `json:"accountId,omitempty"`
	Environment     string     `json:"environment"`
	Seed            int64      `json:"seed"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       *time.Time `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt"`
}

func newSimulationResponse(sim *domain.Simulation) SimulationResponse {
	return SimulationResponse{
		ID:              sim.ID,
		UserID:          sim.UserID,
		Name:            sim.Name,
		AutomationKind:  string(sim.AutomationKind),
		PriceRegime:     string(sim.PriceRegime),
		InitialPrice:    sim.InitialPrice,
		DurationSeconds: sim.DurationSeconds,
		AccountID:       sim.AccountID,
		Environment:     sim.Environment,
		Seed:            sim.Seed,
		Status:          string(sim.Status),
		CreatedAt:       sim.CreatedAt,
		StartedAt:       sim.StartedAt,
		CompletedAt:     sim.CompletedAt,
	}
}

// ProgressResponse is the poller view of a simulation.
type ProgressResponse struct {
	SimulationID string     `json:"simulationId"`
	Status       string     `json:"status"`
	Progress     float64    `json:"progress"`
	CurrentPrice *float64   `json:"currentPrice"`
	StartedAt    *time.Time `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt"`
}

func newProgressResponse(p *domain.Progress) ProgressResponse {
	return ProgressResponse{
		SimulationID: p.SimulationID,
		Status:       string(p.Status),
		Progress:     p.Progress,
		CurrentPrice: p.CurrentPrice,
		StartedAt:    p.StartedAt,
		CompletedAt:  p.CompletedAt,
	}
}

// ResultResponse is one snapshot.
type ResultResponse struct {
	Seq           int                `json:"seq"`
	Timestamp     int64              `json:"timestamp"`
	Price         float64            `json:"price"`
	Action        *string            `json:"action"`
	ActionDetails map[string]float64 `json:"actionDetails,omitempty"`
	Balance       float64            `json:"balance"`
	PositionSize  float64            `json:"positionSize"`
	UnrealizedPnL float64            `json:"unrealizedPnl"`
	MarginLevel   float64            `json:"marginLevel"`
	SuccessRate   float64            `json:"successRate"`
	ActionCount   int                `json:"actionCount"`
}

// PointResponse is a (timestamp, value) chart point.
type PointResponse struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// SeriesResponse is the results read.
type SeriesResponse struct {
	SimulationID string           `json:"simulationId"`
	Results      []ResultResponse `json:"results"`
	Prices       []PointResponse  `json:"prices"`
	PnL          []PointResponse  `json:"pnl"`
	Balance      []PointResponse  `json:"balance"`
	Actions      []ResultResponse `json:"actions"`
}

func newResultResponse(r *domain.SimulationResult) ResultResponse {
	resp := ResultResponse{
		Seq:           r.Seq,
		Timestamp:     r.TimestampMs,
		Price:         r.Price,
		ActionDetails: r.ActionDetails,
		Balance:       r.Balance,
		PositionSize:  r.PositionSize,
		UnrealizedPnL: r.UnrealizedPnL,
		MarginLevel:   r.MarginLevel,
		SuccessRate:   r.SuccessRate,
		ActionCount:   r.ActionCount,
	}
	if r.HasAction() {
		kind := string(*r.ActionKind)
		resp.Action = &kind
	}
	return resp
}

func newSeriesResponse(s *domain.ResultSeries) SeriesResponse {
	resp := SeriesResponse{
		SimulationID: s.SimulationID,
		Results:      make([]ResultResponse, 0, len(s.Results)),
		Prices:       make([]PointResponse, 0, len(s.Prices)),
		PnL:          make([]PointResponse, 0, len(s.PnL)),
		Balance:      make([]PointResponse, 0, len(s.Balance)),
		Actions:      make([]ResultResponse, 0, len(s.Actions)),
	}
	for _, r := range s.Results {
		resp.Results = append(resp.Results, newResultResponse(r))
	}
	for _, p := range s.Prices {
		resp.Prices = append(resp.Prices, PointResponse{Timestamp: p.TimestampMs, Value: p.Price})
	}
	for _, p := range s.PnL {
		resp.PnL = append(resp.PnL, PointResponse{Timestamp: p.TimestampMs, Value: p.Value})
	}
	for _, p := range s.Balance {
		resp.Balance = append(resp.Balance, PointResponse{Timestamp: p.TimestampMs, Value: p.Value})
	}
	for _, r := range s.Actions {
		resp.Actions = append(resp.Actions, newResultResponse(r))
	}
	return resp
}

// MetricsResponse is the metrics read with the configuration echo.
type MetricsResponse struct {
	SimulationID        string             `json:"simulationId"`
	TotalActions        int                `json:"totalActions"`
	SuccessfulActions   int                `json:"successfulActions"`
	SuccessRate         float64            `json:"successRate"`
	TotalPnL            float64            `json:"totalPnL"`
	MaxDrawdown         float64            `json:"maxDrawdown"`
	FinalBalance        float64            `json:"finalBalance"`
	AverageResponseTime float64            `json:"averageResponseTime"`
	Simulation          SimulationResponse `json:"simulation"`
}

func newMetricsResponse(r *orchestrator.MetricsReport) MetricsResponse {
	return MetricsResponse{
		SimulationID:        r.Simulation.ID,
		TotalActions:        r.Summary.TotalActions,
		SuccessfulActions:   r.Summary.SuccessfulActions,
		SuccessRate:         r.Summary.SuccessRate,
		TotalPnL:            r.Summary.TotalPnL,
		MaxDrawdown:         r.Summary.MaxDrawdown,
		FinalBalance:        r.Summary.FinalBalance,
		AverageResponseTime: r.Summary.AverageResponseTimeMs,
		Simulation:          newSimulationResponse(r.Simulation),
	}
}

// AggregateResponse is one (kind, regime) cross-run aggregate.
type AggregateResponse struct {
	AutomationKind  string  `json:"automationKind"`
	PriceRegime     string  `json:"priceRegime"`
	TotalRuns       int     `json:"totalRuns"`
	CompletedRuns   int     `json:"completedRuns"`
	FailedRuns      int     `json:"failedRuns"`
	PnLMean         float64 `json:"pnlMean"`
	PnLMedian       float64 `json:"pnlMedian"`
	PnLP10          float64 `json:"pnlP10"`
	PnLP90          float64 `json:"pnlP90"`
	PnLMin          float64 `json:"pnlMin"`
	PnLMax          float64 `json:"pnlMax"`
	PnLStddev       float64 `json:"pnlStddev"`
	WorstDrawdown   float64 `json:"worstDrawdown"`
	MeanSuccessRate float64 `json:"meanSuccessRate"`
	MeanActions     float64 `json:"meanActions"`
}

func newAggregateResponse(a *domain.StrategyAggregate) AggregateResponse {
	return AggregateResponse{
		AutomationKind:  string(a.AutomationKind),
		PriceRegime:     string(a.PriceRegime),
		TotalRuns:       a.TotalRuns,
		CompletedRuns:   a.CompletedRuns,
		FailedRuns:      a.FailedRuns,
		PnLMean:         a.PnLMean,
		PnLMedian:       a.PnLMedian,
		PnLP10:          a.PnLP10,
		PnLP90:          a.PnLP90,
		PnLMin:          a.PnLMin,
		PnLMax:          a.PnLMax,
		PnLStddev:       a.PnLStddev,
		WorstDrawdown:   a.WorstDrawdown,
		MeanSuccessRate: a.MeanSuccessRate,
		MeanActions:     a.MeanActions,
	}
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
