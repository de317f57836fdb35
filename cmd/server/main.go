package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fundsight/fundsight-go/internal/api"
	"github.com/fundsight/fundsight-go/internal/backtest"
	"github.com/fundsight/fundsight-go/internal/cache"
	"github.com/fundsight/fundsight-go/internal/config"
	"github.com/fundsight/fundsight-go/internal/database"
	"github.com/fundsight/fundsight-go/internal/handlers"
)

func main() {
	// Load .env if present; real deployments use the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	// Initialize database
	db, err := database.NewPostgresConnection(context.Background(), cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis
	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	// Wire the engine over the Postgres providers, with NAV history
	// reads going through the Redis cache.
	repository := database.NewFundRepository(db.Pool)
	navCache := cache.NewRedisNavCache(repository, redis.Client, cfg.Backtest.NavCacheTTLDuration())

	engine := backtest.NewEngine(backtest.Providers{
		Funds:      repository,
		NAVs:       navCache,
		Benchmarks: repository,
		Portfolios: repository,
	}, cfg.Backtest)

	backtestHandler := handlers.NewBacktestHandler(engine)

	// Setup Gin router
	router := gin.Default()
	api.SetupRoutes(router, db, redis, backtestHandler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logrus.Infof("Server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")
	navCache.LogStats()

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
