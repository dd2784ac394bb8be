package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Notification is one row of the notifications outbox: a pending alert that a
// deal matched a signal.
type Notification struct {
	ID       string
	SignalID string
	MatchID  string
	Channel  string
	Subject  string
	Body     string
	Attempts int
}

// Outbox channels. Only the log channel is delivered by this service; email
// is drained by an external sender.
const (
	ChannelLog   = "log"
	ChannelEmail = "email"
)

// OutboxStore persists match notifications for asynchronous delivery.
// Delivery workers lease rows with FOR UPDATE SKIP LOCKED so multiple
// replicas can drain the table without double-sending.
type OutboxStore struct {
	pool *pgxpool.Pool
}

// NewOutboxStore returns an OutboxStore backed by pool.
func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{pool: pool}
}

// Enqueue queues a notification for delivery.
func (s *OutboxStore) Enqueue(ctx context.Context, n Notification) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications_outbox (signal_id, match_id, channel, subject, body_text)
		 VALUES ($1, $2, $3, $4, $5)`,
		n.SignalID, n.MatchID, n.Channel, n.Subject, n.Body,
	)
	if err != nil {
		return wrap("outbox enqueue", err)
	}
	return nil
}

// Begin opens a transaction for a lease/mark cycle.
func (s *OutboxStore) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, wrap("outbox begin", err)
	}
	return tx, nil
}

// Lease claims up to limit due rows for the given channel, locking them for
// the lifetime of tx.
func (s *OutboxStore) Lease(ctx context.Context, tx pgx.Tx, channel string, limit int) ([]Notification, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, signal_id, match_id, channel, subject, body_text, attempts
		 FROM notifications_outbox
		 WHERE status = 'queued'
		   AND channel = $1
		   AND next_attempt_at <= NOW()
		 ORDER BY created_at
		 FOR UPDATE SKIP LOCKED
		 LIMIT $2`,
		channel, limit)
	if err != nil {
		return nil, wrap("outbox lease", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.SignalID, &n.MatchID, &n.Channel, &n.Subject, &n.Body, &n.Attempts); err != nil {
			return nil, wrap("outbox lease scan", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkSent records successful delivery of a leased row.
func (s *OutboxStore) MarkSent(ctx context.Context, tx pgx.Tx, id string) error {
	_, err := tx.Exec(ctx,
		`UPDATE notifications_outbox
		 SET status = 'sent', sent_at = NOW(), updated_at = NOW()
		 WHERE id = $1`, id)
	if err != nil {
		return wrap("outbox mark sent", err)
	}
	return nil
}

// MarkFailed records a delivery failure on a leased row. The row stays
// queued with an exponentially later next_attempt_at (capped at 5 minutes)
// until maxAttempts is exhausted, then moves to failed for good.
func (s *OutboxStore) MarkFailed(ctx context.Context, tx pgx.Tx, id, reason string, maxAttempts int) error {
	_, err := tx.Exec(ctx,
		`UPDATE notifications_outbox
		 SET attempts        = attempts + 1,
		     last_error      = $2,
		     next_attempt_at = NOW() + make_interval(secs => LEAST(POWER(2, attempts + 1), 300)),
		     status          = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'queued' END,
		     updated_at      = NOW()
		 WHERE id = $1`,
		id, reason, maxAttempts)
	if err != nil {
		return wrap("outbox mark failed", err)
	}
	return nil
}

// PendingCount returns the number of queued rows due now, reported by the
// health endpoint.
func (s *OutboxStore) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications_outbox
		 WHERE status = 'queued' AND next_attempt_at <= NOW()`,
	).Scan(&n)
	if err != nil {
		return 0, wrap("outbox pending count", err)
	}
	return n, nil
}
