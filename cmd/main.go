// tripsignal-matcher-service
//
// Takes ingested travel deals, evaluates them against the pool of active
// signals and durably records qualifying matches exactly once.
// Exposes an HTTP API used by the ingester and the gateway:
//   - submitDeal(deal)               — dedupe/upsert + match + record
//   - getMatchesForSignal(signalId)  — list durable matches
//   - createSignal / getSignal       — signal criteria CRUD (create/read)
//
// A cron sweep periodically re-matches the existing deal corpus so signals
// created after ingestion still pick up older deals. Newly created matches
// are published to Redis (EVENT_DEAL_MATCHED) and queued in the
// notifications outbox.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tripsignal/matcher-service/internal/api"
	"tripsignal/matcher-service/internal/config"
	"tripsignal/matcher-service/internal/db"
	"tripsignal/matcher-service/internal/events"
	"tripsignal/matcher-service/internal/logger"
	"tripsignal/matcher-service/internal/orchestrator"
	"tripsignal/matcher-service/internal/outbox"
	"tripsignal/matcher-service/internal/scheduler"
	"tripsignal/matcher-service/internal/store"
)

const (
	serviceName = "matcher-service"
	version     = "1.0.0"
)

func main() {
	log := logger.New(serviceName)

	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	log.Info().Msg("postgres connected")

	// ── Redis ────────────────────────────────────────────────────────────────
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}
	defer rdb.Close()
	log.Info().Msg("redis connected")

	// ── Stores + orchestrator ────────────────────────────────────────────────
	dealStore := store.NewDealStore(pool)
	signalStore := store.NewSignalStore(pool)
	matchStore := store.NewMatchStore(pool)
	outboxStore := store.NewOutboxStore(pool)

	orch := orchestrator.New(
		dealStore, signalStore, matchStore,
		events.NewRedisPublisher(rdb), outboxStore,
		orchestrator.Config{
			MaxAttempts: cfg.StoreMaxAttempts,
			PageSize:    cfg.StorePageSize,
			Workers:     cfg.SweepWorkers,
		},
		log,
	)

	// ── Re-match sweep ───────────────────────────────────────────────────────
	sched := scheduler.New(orch, cfg.SweepIntervalHours, log)
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("scheduler start failed")
	}
	defer sched.Stop()

	// ── Notifications outbox worker ──────────────────────────────────────────
	outboxWorker := outbox.NewWorker(outboxStore, outbox.Config{
		BatchSize:   cfg.OutboxBatchSize,
		Interval:    time.Duration(cfg.OutboxPollSeconds) * time.Second,
		MaxAttempts: cfg.OutboxMaxAttempts,
	}, log)
	go func() {
		if err := outboxWorker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("outbox worker exited")
		}
	}()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	h := api.NewHandler(orch, dealStore, signalStore, matchStore, outboxStore, rdb, log, serviceName, version)
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("stopped")
}
