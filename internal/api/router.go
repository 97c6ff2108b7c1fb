// Package api wires the HTTP handlers into a gin router.
package api

import (
	"net/http"
	"time"

	"battery-dispatch/internal/api/handlers"
	"battery-dispatch/internal/api/middleware"
	"battery-dispatch/internal/data"
	"battery-dispatch/internal/logger"
	"battery-dispatch/internal/planner"

	"github.com/gin-gonic/gin"
)

type Options struct {
	BatteryDir     string
	AllowedOrigins []string
	// MaxSolveTime caps the solver time limit a request may ask for.
	MaxSolveTime time.Duration
	// MaxConcurrentSolves bounds plans running at once; zero means GOMAXPROCS.
	MaxConcurrentSolves int
	Log                 *logger.Logger
}

// NewRouter builds the API router. Finished runs are stored in runs.
func NewRouter(opts Options, runs *data.Cache[*planner.Result]) *gin.Engine {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	router := gin.New()
	router.Use(middleware.CORS(opts.AllowedOrigins...))
	router.Use(middleware.Logger(log))
	router.Use(middleware.ErrorHandler(log))

	batteryHandler := handlers.NewBatteryHandler(opts.BatteryDir, log)
	optimizeHandler := handlers.NewOptimizeHandler(runs, batteryHandler, opts.MaxSolveTime, opts.MaxConcurrentSolves, log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "cached_runs": runs.Len()})
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/optimize", optimizeHandler.Optimize)
		v1.POST("/sweep", optimizeHandler.Sweep)
		v1.GET("/runs/:id", optimizeHandler.GetRun)

		v1.GET("/batteries", batteryHandler.ListBatteries)
		v1.GET("/strategies", handlers.ListStrategies)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
	})
	return router
}
