package handlers

import (
	"context"
	"errors"
	"net/http"

	"battery-dispatch/internal/api/models"
	"battery-dispatch/internal/model"
	"battery-dispatch/internal/planner"
	"battery-dispatch/internal/strategy"

	"github.com/gin-gonic/gin"
)

func abort(c *gin.Context, status int, code, msg string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: msg,
			Details: details,
		},
	})
}

func badRequest(c *gin.Context, code string, err error) {
	abort(c, http.StatusBadRequest, code, err.Error(), nil)
}

// writeError maps planner errors to HTTP statuses:
// bad input 400, unsolvable battery 422, timeout 504, solver defects 500.
func writeError(c *gin.Context, err error) {
	var (
		shape      *model.InputShapeError
		infeasible *strategy.InfeasibleError
		anomaly    *strategy.NumericAnomalyError
		solver     *strategy.SolverError
	)
	switch {
	case errors.As(err, &shape):
		abort(c, http.StatusBadRequest, "INVALID_INPUT", err.Error(), map[string]interface{}{
			"field": shape.Field,
			"slot":  shape.Slot,
		})
	case errors.Is(err, planner.ErrNoDeficit):
		abort(c, http.StatusUnprocessableEntity, "NO_DEFICIT", err.Error(), nil)
	case errors.As(err, &infeasible):
		abort(c, http.StatusUnprocessableEntity, "INFEASIBLE", err.Error(), map[string]interface{}{
			"capacity_kwh":              infeasible.Capacity,
			"degradation_rate_per_hour": infeasible.DegradationRatePerHour,
			"hour":                      infeasible.Hour,
		})
	case errors.Is(err, strategy.ErrSolverTimeout), errors.Is(err, context.DeadlineExceeded):
		abort(c, http.StatusGatewayTimeout, "SOLVER_TIMEOUT", err.Error(), nil)
	case errors.As(err, &anomaly):
		abort(c, http.StatusInternalServerError, "NUMERIC_ANOMALY", err.Error(), map[string]interface{}{
			"slot":      anomaly.Slot,
			"invariant": anomaly.Invariant,
		})
	case errors.As(err, &solver):
		abort(c, http.StatusInternalServerError, "SOLVER_ERROR", err.Error(), map[string]interface{}{
			"status": solver.Status.String(),
		})
	default:
		abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), nil)
	}
}
