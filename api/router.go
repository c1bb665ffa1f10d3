package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricecheck/api/handler"
	"github.com/use-agent/pricecheck/api/middleware"
	"github.com/use-agent/pricecheck/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	/automate: Auth (if keys configured) → RateLimit
//
// /health stays outside auth so monitoring probes always work.
func NewRouter(svc handler.Automator, stats handler.GateStatser, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", handler.Health(stats, startTime))

	protected := r.Group("")
	protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/automate", handler.Automate(svc))

	return r
}
