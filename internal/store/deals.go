package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripsignal/matcher-service/internal/model"
)

// DealStore persists deals keyed by dedupe key. Exactly one row per dedupe
// key ever exists; concurrent upserts of the same key serialise on the
// unique index rather than on any in-process lock.
type DealStore struct {
	pool *pgxpool.Pool
}

// NewDealStore returns a DealStore backed by pool.
func NewDealStore(pool *pgxpool.Pool) *DealStore {
	return &DealStore{pool: pool}
}

const dealColumns = `id, provider, origin, destination, depart_date, return_date,
       price_cents, currency, deeplink_url, airline, cabin, stops,
       is_active, found_at, dedupe_key`

// Upsert inserts the deal or, when a row with the same dedupe key exists,
// refreshes its mutable display fields in place (last-writer-wins). A price
// history row is appended either way, in the same transaction.
//
// A conflicting row whose immutable fields (the natural key plus currency)
// differ from the incoming deal means the dedupe key no longer identifies
// one offer; that is ErrInvariantViolation, never a silent overwrite.
func (s *DealStore) Upsert(ctx context.Context, d model.Deal) (id string, created bool, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", false, wrap("deal upsert begin", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO deals (provider, origin, destination, depart_date, return_date,
		                    price_cents, currency, deeplink_url, airline, cabin, stops,
		                    is_active, dedupe_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true, $12)
		 ON CONFLICT (dedupe_key) DO UPDATE
		 SET price_cents  = EXCLUDED.price_cents,
		     deeplink_url = EXCLUDED.deeplink_url,
		     airline      = EXCLUDED.airline,
		     cabin        = EXCLUDED.cabin,
		     stops        = EXCLUDED.stops,
		     is_active    = true,
		     found_at     = NOW()
		 WHERE deals.provider    = EXCLUDED.provider
		   AND deals.origin      = EXCLUDED.origin
		   AND deals.destination = EXCLUDED.destination
		   AND deals.depart_date = EXCLUDED.depart_date
		   AND deals.return_date = EXCLUDED.return_date
		   AND deals.currency    = EXCLUDED.currency
		 RETURNING id, (xmax = 0)`,
		d.Provider, d.Origin, d.Destination, d.DepartDate, d.ReturnDate,
		d.PriceCents, d.Currency, d.DeeplinkURL, d.Airline, d.Cabin, d.Stops,
		d.DedupeKey,
	).Scan(&id, &created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conflict row exists but its immutable fields differ.
			return "", false, fmt.Errorf("dedupe key %q: %w", d.DedupeKey, ErrInvariantViolation)
		}
		return "", false, wrap("deal upsert", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO deal_price_history (deal_id, price_cents) VALUES ($1, $2)`,
		id, d.PriceCents,
	)
	if err != nil {
		return "", false, wrap("deal price history insert", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, wrap("deal upsert commit", err)
	}
	return id, created, nil
}

// Get returns the deal with the given id, or ErrNotFound.
func (s *DealStore) Get(ctx context.Context, id string) (model.Deal, error) {
	var d model.Deal
	err := s.pool.QueryRow(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE id = $1`, id,
	).Scan(
		&d.ID, &d.Provider, &d.Origin, &d.Destination, &d.DepartDate, &d.ReturnDate,
		&d.PriceCents, &d.Currency, &d.DeeplinkURL, &d.Airline, &d.Cabin, &d.Stops,
		&d.IsActive, &d.FoundAt, &d.DedupeKey,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Deal{}, fmt.Errorf("deal %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Deal{}, wrap("deal get", err)
	}
	return d, nil
}

// ListActive returns one page of active deals ordered by id, plus the cursor
// for the next page ("" when exhausted). Pass cursor "" to start; the scan is
// restartable from any returned cursor.
func (s *DealStore) ListActive(ctx context.Context, cursor string, limit int) ([]model.Deal, string, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if cursor != "" {
		rows, err = s.pool.Query(ctx,
			`SELECT `+dealColumns+` FROM deals
			 WHERE is_active = true AND id > $1
			 ORDER BY id LIMIT $2`, cursor, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+dealColumns+` FROM deals
			 WHERE is_active = true
			 ORDER BY id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", wrap("deal list query", err)
	}
	defer rows.Close()

	deals := make([]model.Deal, 0, limit)
	for rows.Next() {
		var d model.Deal
		if err := rows.Scan(
			&d.ID, &d.Provider, &d.Origin, &d.Destination, &d.DepartDate, &d.ReturnDate,
			&d.PriceCents, &d.Currency, &d.DeeplinkURL, &d.Airline, &d.Cabin, &d.Stops,
			&d.IsActive, &d.FoundAt, &d.DedupeKey,
		); err != nil {
			return nil, "", wrap("deal list scan", err)
		}
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, "", wrap("deal list rows", err)
	}

	next := ""
	if len(deals) == limit {
		next = deals[len(deals)-1].ID
	}
	return deals, next, nil
}

// PriceHistory returns recorded prices for a deal, oldest first.
func (s *DealStore) PriceHistory(ctx context.Context, dealID string) ([]PricePoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT price_cents, recorded_at FROM deal_price_history
		 WHERE deal_id = $1 ORDER BY recorded_at`, dealID)
	if err != nil {
		return nil, wrap("price history query", err)
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.PriceCents, &p.RecordedAt); err != nil {
			return nil, wrap("price history scan", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// PricePoint is one observed price for a deal.
type PricePoint struct {
	PriceCents int
	RecordedAt time.Time
}

// HealthPing verifies the underlying pool is reachable.
func (s *DealStore) HealthPing(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
