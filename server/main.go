package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/api"
	"github.com/meikuraledutech/flow/broadcast"
	"github.com/meikuraledutech/flow/config"
	"github.com/meikuraledutech/flow/ctxlog"
	"github.com/meikuraledutech/flow/engine"
	"github.com/meikuraledutech/flow/memory"
	"github.com/meikuraledutech/flow/postgres"
	"github.com/meikuraledutech/flow/socketio"
)

// storage is what the server needs from a backend: saved workflows and the
// history of runs.
type storage interface {
	flow.Store
	flow.RunStore
}

func main() {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		log.Fatal(err)
	}

	logger := ctxlog.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	ctx, stop := signal.NotifyContext(ctxlog.WithLogger(context.Background(), logger), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Storage ───────────────────────────────────────────────────────
	var store storage
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := postgres.New(pool)
		if err := pg.CreateSchema(ctx); err != nil {
			logger.Error("Failed to create schema", "error", err)
			os.Exit(1)
		}
		store = pg
		logger.Info("Using postgres store")
	} else {
		store = memory.New()
		logger.Info("DATABASE_URL is not set, using in-memory store")
	}

	// ── Engine and push channel ───────────────────────────────────────
	hub := broadcast.New(logger)
	eng := engine.New(hub, store, logger, cfg.Engine)

	bridge := socketio.New(hub, logger)
	go bridge.Run(ctx)

	// ── HTTP API ──────────────────────────────────────────────────────
	app := api.New(api.Deps{
		Runner: eng,
		Store:  store,
		Runs:   store,
		Layout: cfg.Layout,
		Logger: logger,
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: api.Mount(app, bridge.Handler())}

	go func() {
		logger.Info("Listening", "addr", cfg.Addr, "events", api.EventsPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	// ── Shutdown ──────────────────────────────────────────────────────
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := eng.Shutdown(shutdownCtx); err != nil {
		logger.Error("Engine shutdown", "error", err)
	}
	hub.Close()
	bridge.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}
}
