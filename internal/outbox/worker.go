// Package outbox drains the notifications outbox for the log channel:
// each queued row is emitted as a structured log line and marked sent.
// Email-channel rows are left for the external sender.
package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tripsignal/matcher-service/internal/store"
)

// Config controls batch size and polling cadence.
type Config struct {
	BatchSize   int
	Interval    time.Duration
	MaxAttempts int
}

func (c *Config) setDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 25
	}
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
}

// Worker leases due rows and delivers them. Rows are leased with
// FOR UPDATE SKIP LOCKED, so several replicas can run concurrently without
// double-sending.
type Worker struct {
	outbox *store.OutboxStore
	cfg    Config
	log    zerolog.Logger
}

// NewWorker constructs a Worker.
func NewWorker(outbox *store.OutboxStore, cfg Config, log zerolog.Logger) *Worker {
	cfg.setDefaults()
	return &Worker{outbox: outbox, cfg: cfg, log: log}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Int("batch", w.cfg.BatchSize).Dur("interval", w.cfg.Interval).Msg("outbox worker starting")
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("outbox worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.processOnce(ctx); err != nil {
				// Log and continue; per-row backoff prevents hot-looping.
				w.log.Error().Err(err).Msg("outbox cycle failed")
			}
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) error {
	tx, err := w.outbox.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := w.outbox.Lease(ctx, tx, store.ChannelLog, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return tx.Commit(ctx)
	}

	for _, n := range rows {
		if err := w.deliver(n); err != nil {
			if e := w.outbox.MarkFailed(ctx, tx, n.ID, err.Error(), w.cfg.MaxAttempts); e != nil {
				return e
			}
			continue
		}
		if err := w.outbox.MarkSent(ctx, tx, n.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// deliver emits the notification. The log channel cannot meaningfully fail,
// but the error path stays so the email channel can reuse the loop.
func (w *Worker) deliver(n store.Notification) error {
	w.log.Info().
		Str("notificationId", n.ID).
		Str("signalId", n.SignalID).
		Str("matchId", n.MatchID).
		Str("subject", n.Subject).
		Msg("notification sent")
	return nil
}
