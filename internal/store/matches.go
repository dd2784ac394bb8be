package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripsignal/matcher-service/internal/model"
)

// MatchStore persists signal↔deal matches. The (signal_id, deal_id) unique
// constraint is the idempotency mechanism: N concurrent Record calls for the
// same pair yield exactly one row, and every call returns its id.
type MatchStore struct {
	pool *pgxpool.Pool
}

// NewMatchStore returns a MatchStore backed by pool.
func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

// Record idempotently creates the match for (signalID, dealID) and returns
// it. created is false when the pair was already recorded, in which case the
// existing row is returned unchanged. Returns ErrDanglingReference when the
// signal or deal no longer exists at commit time.
func (s *MatchStore) Record(ctx context.Context, signalID, dealID string) (m model.Match, created bool, err error) {
	err = s.pool.QueryRow(ctx,
		`INSERT INTO deal_matches (signal_id, deal_id)
		 VALUES ($1, $2)
		 ON CONFLICT (signal_id, deal_id) DO NOTHING
		 RETURNING id, matched_at`,
		signalID, dealID,
	).Scan(&m.ID, &m.MatchedAt)

	switch {
	case err == nil:
		m.SignalID = signalID
		m.DealID = dealID
		return m, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Lost the race (or a repeat delivery): the row already exists.
		existing, lookupErr := s.get(ctx, signalID, dealID)
		if lookupErr != nil {
			return model.Match{}, false, lookupErr
		}
		return existing, false, nil
	case isForeignKeyViolation(err):
		return model.Match{}, false, fmt.Errorf("record match signal=%s deal=%s: %w", signalID, dealID, ErrDanglingReference)
	default:
		return model.Match{}, false, wrap("record match", err)
	}
}

func (s *MatchStore) get(ctx context.Context, signalID, dealID string) (model.Match, error) {
	var m model.Match
	err := s.pool.QueryRow(ctx,
		`SELECT id, signal_id, deal_id, matched_at
		 FROM deal_matches WHERE signal_id = $1 AND deal_id = $2`,
		signalID, dealID,
	).Scan(&m.ID, &m.SignalID, &m.DealID, &m.MatchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Match{}, fmt.Errorf("match signal=%s deal=%s: %w", signalID, dealID, ErrNotFound)
	}
	if err != nil {
		return model.Match{}, wrap("match get", err)
	}
	return m, nil
}

// ListForSignal returns one page of a signal's matches, newest first, plus
// the cursor for the next page ("" when exhausted). The cursor is the id of
// the last match on the previous page.
func (s *MatchStore) ListForSignal(ctx context.Context, signalID, cursor string, limit int) ([]model.Match, string, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if cursor != "" {
		rows, err = s.pool.Query(ctx,
			`SELECT id, signal_id, deal_id, matched_at
			 FROM deal_matches
			 WHERE signal_id = $1
			   AND (matched_at, id) < (SELECT matched_at, id FROM deal_matches WHERE id = $2)
			 ORDER BY matched_at DESC, id DESC
			 LIMIT $3`, signalID, cursor, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, signal_id, deal_id, matched_at
			 FROM deal_matches
			 WHERE signal_id = $1
			 ORDER BY matched_at DESC, id DESC
			 LIMIT $2`, signalID, limit)
	}
	if err != nil {
		return nil, "", wrap("match list query", err)
	}
	defer rows.Close()

	matches := make([]model.Match, 0, limit)
	for rows.Next() {
		var m model.Match
		if err := rows.Scan(&m.ID, &m.SignalID, &m.DealID, &m.MatchedAt); err != nil {
			return nil, "", wrap("match list scan", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", wrap("match list rows", err)
	}

	next := ""
	if len(matches) == limit {
		next = matches[len(matches)-1].ID
	}
	return matches, next, nil
}

// HealthPing verifies the underlying pool is reachable.
func (s *MatchStore) HealthPing(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
