package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pv/assetcache/internal/api"
	"github.com/pv/assetcache/internal/assets"
	"github.com/pv/assetcache/internal/config"
	"github.com/pv/assetcache/internal/journal"
	"github.com/pv/assetcache/internal/logger"
	"github.com/pv/assetcache/internal/storage"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(2)
	}

	// Initialize logger
	logger.Init(cfg.LogFormat, config.ParseLogLevel(cfg.LogLevel))

	// Create storage
	var store storage.Storage

	switch cfg.Storage {
	case config.StorageSQLite:
		store, err = storage.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			logger.Error("Failed to create SQLite storage", "error", err)
			os.Exit(1)
		}
		logger.Info("Using SQLite storage", "path", cfg.SQLitePath)
	default:
		store = storage.NewMemoryStorage()
		logger.Info("Using in-memory storage")
	}
	defer store.Close()

	a, err := assets.New(cfg.Minify, cfg.Environment)
	if err != nil {
		logger.Error("Failed to initialize assets", "error", err)
		os.Exit(1)
	}

	// Create API handlers and server
	handlers := api.NewHandlers(a, store, cfg.PublicPath)
	a.Subscribe(assets.ObserverFunc(handlers.OnBuild))
	server := api.NewServer(handlers)

	// Optional ClickHouse journal
	if url := cfg.JournalURL(); url != "" {
		client, err := journal.NewClient(url)
		if err != nil {
			logger.Error("Failed to connect journal, continuing without it", "error", err)
		} else {
			defer client.Close()
			writer := journal.NewWriter(client, 0, logger.Log)
			writer.Start()
			defer writer.Stop()
			handlers.SetJournal(client, writer)
			info := client.Info()
			logger.Info("Journal connected", "name", info.Name, "table", info.Database+"."+info.Table)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go cleanupLoop(ctx, store, cfg.HistoryTTL)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server,
	}

	go func() {
		logArgs := []any{
			"addr", cfg.Addr,
			"env", cfg.Environment,
			"minify", a.ShouldMinify(),
			"public", cfg.PublicPath,
			"history_ttl", cfg.HistoryTTL.String(),
		}
		if cfg.ConfigFile != "" {
			logArgs = append(logArgs, "config", cfg.ConfigFile)
		}
		logger.Info("Starting server", logArgs...)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}

// cleanupLoop drops build history older than ttl.
func cleanupLoop(ctx context.Context, store storage.Storage, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := ttl / 4
	if interval > time.Hour {
		interval = time.Hour
	}
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Cleanup(time.Now().Add(-ttl)); err != nil {
				logger.Warn("Build history cleanup failed", "error", err)
			}
		}
	}
}
