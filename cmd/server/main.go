// Command server runs the Velric mission API.
//
// main stays small: read config, build the logger, open the store and the
// optional executor, then hand everything to internal/server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/velric/velric-server/internal/config"
	"github.com/velric/velric-server/internal/executor"
	"github.com/velric/velric-server/internal/executor/docker"
	"github.com/velric/velric-server/internal/server"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "apply database migrations and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Opening the store runs migrations for both backends.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := server.OpenStore(ctx, cfg)
	cancel()
	if err != nil {
		logger.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *migrateOnly {
		logger.Info("migrations applied")
		if err := store.Close(); err != nil {
			logger.Error("closing store", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	// The executor is optional; without it /api/code/execute is not mounted.
	var exec executor.Executor
	if cfg.ExecutorEnabled {
		dockerExec, err := docker.New(docker.DefaultConfig(), logger)
		if err != nil {
			logger.Warn("docker executor unavailable, code execution disabled",
				slog.String("error", err.Error()),
			)
		} else {
			defer dockerExec.Close()
			exec = dockerExec
		}
	}

	srv, err := server.New(cfg, store, exec, logger)
	if err != nil {
		store.Close()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM and closes the store on the way out.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
