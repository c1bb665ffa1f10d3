package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricecheck/models"
)

// Automator runs one trigger request. *orchestrator.Service implements it.
type Automator interface {
	Automate(ctx context.Context, req *models.TriggerRequest) (*models.AutomateResponse, error)
}

// Automate returns a handler for POST /automate.
//
// Flow:
//  1. Parse & validate the request. An empty body is a request with run unset.
//  2. Automator.Automate: gate, spawn worker, classify output.
//  3. Map the outcome to a status code.
func Automate(svc Automator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.TriggerRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, models.NewAutomationError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}

		// ── 2. Run ──────────────────────────────────────────────────
		resp, err := svc.Automate(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}

		// ── 3. Respond ──────────────────────────────────────────────
		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps an AutomationError to the correct HTTP status code and
// writes the detail envelope.
func respondError(c *gin.Context, err error) {
	var aerr *models.AutomationError
	if !errors.As(err, &aerr) {
		aerr = models.NewAutomationError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(aerr), aerr.ToResponse())
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.AutomationError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
