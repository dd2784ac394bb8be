package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripsignal/matcher-service/internal/model"
)

// SignalStore persists signal criteria. Signals are immutable in this
// service's view: create and read only, no update or delete.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore returns a SignalStore backed by pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Create validates and inserts a signal, returning its new id.
func (s *SignalStore) Create(ctx context.Context, sig model.Signal) (string, error) {
	sig.Normalize()
	if err := sig.Validate(); err != nil {
		return "", &ValidationError{Msg: err.Error()}
	}
	if sig.Status == "" {
		sig.Status = model.SignalActive
	}

	cfg, err := json.Marshal(sig.Config())
	if err != nil {
		return "", wrap("signal config marshal", err)
	}

	var id string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO signals (name, status, config)
		 VALUES ($1, $2, $3::jsonb)
		 RETURNING id`,
		sig.Name, string(sig.Status), string(cfg),
	).Scan(&id)
	if err != nil {
		return "", wrap("signal insert", err)
	}
	return id, nil
}

// Get returns the signal with the given id, or ErrNotFound.
func (s *SignalStore) Get(ctx context.Context, id string) (model.Signal, error) {
	var (
		sig model.Signal
		cfg []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, status, config, created_at, updated_at
		 FROM signals WHERE id = $1`, id,
	).Scan(&sig.ID, &sig.Name, &sig.Status, &cfg, &sig.CreatedAt, &sig.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Signal{}, fmt.Errorf("signal %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Signal{}, wrap("signal get", err)
	}
	if err := applyConfig(&sig, cfg); err != nil {
		return model.Signal{}, err
	}
	return sig, nil
}

// ListActive returns one page of active signals ordered by id, plus the
// cursor for the next page ("" when exhausted).
func (s *SignalStore) ListActive(ctx context.Context, cursor string, limit int) ([]model.Signal, string, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if cursor != "" {
		rows, err = s.pool.Query(ctx,
			`SELECT id, name, status, config, created_at, updated_at
			 FROM signals WHERE status = 'active' AND id > $1
			 ORDER BY id LIMIT $2`, cursor, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, name, status, config, created_at, updated_at
			 FROM signals WHERE status = 'active'
			 ORDER BY id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", wrap("signal list query", err)
	}
	defer rows.Close()

	signals := make([]model.Signal, 0, limit)
	for rows.Next() {
		var (
			sig model.Signal
			cfg []byte
		)
		if err := rows.Scan(&sig.ID, &sig.Name, &sig.Status, &cfg, &sig.CreatedAt, &sig.UpdatedAt); err != nil {
			return nil, "", wrap("signal list scan", err)
		}
		if err := applyConfig(&sig, cfg); err != nil {
			return nil, "", err
		}
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, "", wrap("signal list rows", err)
	}

	next := ""
	if len(signals) == limit {
		next = signals[len(signals)-1].ID
	}
	return signals, next, nil
}

// HealthPing verifies the underlying pool is reachable.
func (s *SignalStore) HealthPing(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func applyConfig(sig *model.Signal, raw []byte) error {
	var cfg model.SignalConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("signal %s config unmarshal: %w", sig.ID, err)
	}
	sig.ApplyConfig(cfg)
	return nil
}
