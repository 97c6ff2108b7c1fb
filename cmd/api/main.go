package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"battery-dispatch/internal/api"
	"battery-dispatch/internal/data"
	"battery-dispatch/internal/logger"
	"battery-dispatch/internal/planner"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
)

func main() {
	v := viper.New()
	v.SetDefault("api_port", "8080")
	v.SetDefault("api_env", "development")
	v.SetDefault("battery_dir", "./examples/batteries")
	v.SetDefault("cache_ttl", time.Hour)
	v.SetDefault("max_solve_time", 5*time.Minute)
	v.SetDefault("max_concurrent_solves", 0)
	v.SetDefault("cors_origins", "*")
	v.SetDefault("log_level", logger.InfoLevel)
	v.AutomaticEnv()

	log := logger.Get(v.GetString("log_level"))
	defer func() { _ = log.Sync() }()

	if v.GetString("api_env") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ttl := v.GetDuration("cache_ttl")
	runs := data.NewCache[*planner.Result](ttl)
	go runs.RunCleanup(ctx, ttl/2+time.Second)

	router := api.NewRouter(api.Options{
		BatteryDir:          v.GetString("battery_dir"),
		AllowedOrigins:      strings.Split(v.GetString("cors_origins"), ","),
		MaxSolveTime:        v.GetDuration("max_solve_time"),
		MaxConcurrentSolves: v.GetInt("max_concurrent_solves"),
		Log:                 log,
	}, runs)

	srv := &http.Server{
		Addr:              ":" + v.GetString("api_port"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "addr", srv.Addr, "env", v.GetString("api_env"), "battery_dir", v.GetString("battery_dir"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")
	cancel()

	// in-flight optimizations get the solver's full budget to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), v.GetDuration("max_solve_time")+10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
