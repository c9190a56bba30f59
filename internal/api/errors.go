package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/storage"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest    = "invalid_request"
	CodeInvalidSimulation = "invalid_simulation"
	CodeMissingUser       = "missing_user"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeStateConflict     = "state_conflict"
	CodeNoResults         = "no_results"
	CodeInternal          = "internal"
)

// statusFor maps a service error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidSimulation):
		return http.StatusBadRequest, CodeInvalidSimulation
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, domain.ErrNoResults):
		return http.StatusNotFound, CodeNoResults
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, domain.ErrStateConflict), errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, CodeStateConflict
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func (h *handler) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("simulation_id", c.Param("id")),
			zap.Error(err))
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Error: msg})
}
