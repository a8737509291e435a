package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintracker/events"
	"fintracker/store"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// `fintracker migrate` runs schema migration and exits. Useful for CI
	// or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if _, err := openDB(cfg); err != nil {
			logger.Error("Migration failed", "error", err)
			os.Exit(1)
		}
		fmt.Println("migration completed")
		return
	}

	var ledger store.Store
	switch cfg.StoreBackend {
	case backendPostgres:
		db, err := openDB(cfg)
		if err != nil {
			logger.Error("Failed to initialize postgres store", "error", err)
			os.Exit(1)
		}
		ledger = store.NewGorm(db, cfg.AllowUnfilteredRecords)
	default:
		ledger = store.NewMemory(cfg.AllowUnfilteredRecords)
	}
	logger.Info("Initialized ledger store",
		"backend", cfg.StoreBackend,
		"allow_unfiltered_records", cfg.AllowUnfilteredRecords)

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP publisher", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		publisher = p
		logger.Info("Ledger event publishing enabled",
			"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	r := gin.Default()
	setupRoutes(r, &api{store: ledger, events: publisher})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting fintracker server", "port", cfg.Port, "backend", cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
