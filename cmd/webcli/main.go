// Command webcli runs the command execution server: REST API, websocket
// live sessions, and the asynchronous action dispatch engine.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/webcli/webcli/pkg/api"
	"github.com/webcli/webcli/pkg/auth"
	"github.com/webcli/webcli/pkg/config"
	"github.com/webcli/webcli/pkg/database"
	"github.com/webcli/webcli/pkg/engine"
	"github.com/webcli/webcli/pkg/events"
	"github.com/webcli/webcli/pkg/handlers/system"
	"github.com/webcli/webcli/pkg/queue"
	"github.com/webcli/webcli/pkg/store"
	"github.com/webcli/webcli/pkg/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configDir := getEnv("CONFIG_DIR", ".")
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil {
		slog.Warn("No .env file loaded", "config_dir", configDir)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	slog.Info("Starting webcli", "version", version.Full())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	st := store.New(db)

	tokens, err := auth.NewTokenServiceFromFiles(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TokenExpiration)
	if err != nil {
		return err
	}
	authService := auth.NewService(st, tokens)

	if err := os.MkdirAll(cfg.UsersHomeDir, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.ResourceDir, 0o755); err != nil {
		return err
	}

	bus := events.NewBus()

	pool := queue.NewWorkerPool(cfg.WorkerCount, cfg.QueueSize)
	if err := pool.Start(ctx); err != nil {
		return err
	}

	eng := engine.New(st, bus, pool, cfg.UsersHomeDir, cfg.ResourceDir)
	eng.RegisterHandler(system.HandlerName, system.New())
	eng.Startup()

	server := api.NewServer(st, authService, eng, bus, cfg.ResourceDir)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := server.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown failed", "error", err)
	}

	eng.Shutdown()
	pool.Stop()

	slog.Info("Shutdown complete")
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
