package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricecheck/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// GateStatser exposes admission gate usage. *gate.Gate implements it.
type GateStatser interface {
	Stats() models.GateStats
}

// Health returns a handler for GET /health.
//
// Reports gate utilisation and degrades status when every slot is taken.
func Health(g GateStatser, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := g.Stats()

		status := "healthy"
		if stats.Capacity > 0 && stats.InFlight >= stats.Capacity {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Gate:    stats,
			Version: Version,
		})
	}
}
