package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"btc-scenario-lab/internal/observability"
)

// POST /api/v1/simulations
func (h *handler) create(c *gin.Context) {
	var req createSimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Code: CodeInvalidRequest, Error: err.Error()})
		return
	}

	sim, err := h.svc.Create(c.Request.Context(), req.params(userID(c)))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSimulationResponse(sim))
}

// GET /api/v1/simulations
func (h *handler) list(c *gin.Context) {
	sims, err := h.svc.List(c.Request.Context(), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp := make([]SimulationResponse, 0, len(sims))
	for _, sim := range sims {
		resp = append(resp, newSimulationResponse(sim))
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/v1/simulations/:id
func (h *handler) get(c *gin.Context) {
	sim, err := h.svc.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSimulationResponse(sim))
}

// DELETE /api/v1/simulations/:id
func (h *handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/v1/simulations/:id/start
func (h *handler) start(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Start(c.Request.Context(), userID(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"simulationId": id, "message": "simulation queued"})
}

// POST /api/v1/simulations/:id/cancel
func (h *handler) cancel(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Cancel(c.Request.Context(), userID(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"simulationId": id, "message": "cancellation requested"})
}

// GET /api/v1/simulations/:id/progress
func (h *handler) progress(c *gin.Context) {
	p, err := h.svc.Progress(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProgressResponse(p))
}

// GET /api/v1/simulations/:id/results
func (h *handler) results(c *gin.Context) {
	series, err := h.svc.Results(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSeriesResponse(series))
}

// GET /api/v1/simulations/:id/metrics
func (h *handler) metrics(c *gin.Context) {
	report, err := h.svc.Metrics(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	observability.RecordReportGenerated()
	c.JSON(http.StatusOK, newMetricsResponse(report))
}

// GET /api/v1/aggregates
func (h *handler) aggregates(c *gin.Context) {
	aggs, err := h.svc.Aggregates(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp := make([]AggregateResponse, 0, len(aggs))
	for _, a := range aggs {
		resp = append(resp, newAggregateResponse(a))
	}
	c.JSON(http.StatusOK, resp)
}
