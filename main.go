package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"querygraph/api"
	"querygraph/config"
	"querygraph/graph"
	"querygraph/hub"
	"querygraph/llm"
	"querygraph/policy"
	"querygraph/search"
	"querygraph/store"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting querygraph",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("database", cfg.DatabaseURL),
		zap.Int("turn_limit", cfg.TurnLimit))

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		logger.Fatal("failed to initialize policy engine", zap.Error(err))
	}

	generator := llm.NewGenerator(cfg.ModelBaseURL, cfg.ModelAPIKey, cfg.ModelName, cfg.ModelTimeout, logger)

	var searcher search.Searcher = search.NewClient(cfg.SearchBaseURL, cfg.SearchTimeout)
	searcher = search.NewCachingClient(searcher, cfg.SearchCacheTTL, cfg.SearchRatePerSec)

	eventHub := hub.NewHub(logger)
	go eventHub.Run()

	executor := graph.NewExecutor(
		db,
		graph.NewSupervisor(generator),
		graph.NewResearchWorker(generator, searcher, policyEngine, cfg.MaxToolCalls, logger),
		graph.NewReasoningWorker(generator),
		eventHub,
		cfg.TurnLimit,
		logger,
	)

	if cfg.InterruptTTL > 0 {
		sweeper := graph.NewExpirySweeper(db, executor, cfg.InterruptTTL, logger)
		go sweeper.Run(ctx)
		logger.Info("interrupt expiry sweeper enabled", zap.Duration("ttl", cfg.InterruptTTL))
	}

	h := api.NewHandler(executor, db, eventHub, logger)

	server := echo.New()
	server.HideBanner = true
	server.Use(middleware.Logger())
	server.Use(middleware.Recover())
	server.Use(middleware.CORS())
	h.RegisterRoutes(server)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	logger.Info("API started", zap.Int("port", cfg.HTTPPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shut down gracefully", zap.Error(err))
	}

	logger.Info("stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
