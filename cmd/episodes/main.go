package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/clique-kr/episodes/internal/config"
	"github.com/clique-kr/episodes/internal/db/dial"
	logpkg "github.com/clique-kr/episodes/internal/logger"
	"github.com/clique-kr/episodes/internal/metrics"
	"github.com/clique-kr/episodes/internal/repository/index"
	chiTransport "github.com/clique-kr/episodes/internal/transport/chi"
	episodeuc "github.com/clique-kr/episodes/internal/usecase/episode"
	healthuc "github.com/clique-kr/episodes/internal/usecase/health"
	"github.com/clique-kr/episodes/internal/version"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting episodes API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("http_addr", cfg.HTTP.Addr()),
		zap.String("db_driver", cfg.Database.Driver),
	)

	ctx := context.Background()

	raw, err := dial.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer raw.Close()

	if err := raw.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Every connection checkout is counted so leaks show up on /metrics.
	store := metrics.InstrumentStore(raw)

	loc := cfg.Index.Location()
	indexRepo := index.New(store, loc)

	var counter episodeuc.CollectionCounter
	if cfg.Submit.Probe() {
		counter = indexRepo
	}
	episodeSvc := episodeuc.New(indexRepo, counter, logger).
		WithSubmit(cfg.Submit.Ack, cfg.Submit.ChunkSize, cfg.Submit.Probe())
	healthSvc := healthuc.New(store)

	logger.Info("Serving index document",
		zap.String("collection", loc.Collection),
		zap.String(loc.KeyField, loc.Key),
		zap.String("list_field", loc.ListField),
		zap.Bool("submit_probe", cfg.Submit.Probe()),
	)

	server := chiTransport.NewServer(episodeSvc, healthSvc, metrics.Handler(), logger)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      server.Router(metrics.Middleware()),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
