package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tripsignal/matcher-service/internal/dedupe"
	"tripsignal/matcher-service/internal/matcher"
	"tripsignal/matcher-service/internal/model"
	"tripsignal/matcher-service/internal/store"
)

// EventDealMatched is the pub/sub channel a match event is published on.
const EventDealMatched = "EVENT_DEAL_MATCHED"

// DealStore is the orchestrator's view of deal persistence.
type DealStore interface {
	Upsert(ctx context.Context, d model.Deal) (id string, created bool, err error)
	ListActive(ctx context.Context, cursor string, limit int) ([]model.Deal, string, error)
	HealthPing(ctx context.Context) error
}

// SignalStore is the orchestrator's view of signal persistence.
type SignalStore interface {
	ListActive(ctx context.Context, cursor string, limit int) ([]model.Signal, string, error)
	HealthPing(ctx context.Context) error
}

// MatchStore is the orchestrator's view of match persistence.
type MatchStore interface {
	Record(ctx context.Context, signalID, dealID string) (m model.Match, created bool, err error)
	HealthPing(ctx context.Context) error
}

// Publisher emits match events for downstream consumers (SSE gateway etc.).
// Publish failures are non-fatal: the match is already durable.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Notifier queues user-facing notifications for newly created matches.
// Enqueue failures are non-fatal for the same reason.
type Notifier interface {
	Enqueue(ctx context.Context, n store.Notification) error
}

// Config tunes retry and paging behaviour.
type Config struct {
	MaxAttempts int           // per store operation, transient errors only
	BaseBackoff time.Duration // first retry delay, doubled per attempt
	MaxBackoff  time.Duration // backoff cap
	PageSize    int           // candidate/deal pagination
	Workers     int           // sweep parallelism
}

func (c *Config) setDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.PageSize <= 0 {
		c.PageSize = 200
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

// Orchestrator owns the deal-arrival pipeline. Store handles are injected at
// construction; it holds no other mutable state, so one instance serves all
// workers concurrently.
type Orchestrator struct {
	deals   DealStore
	signals SignalStore
	matches MatchStore
	pub     Publisher
	notif   Notifier
	cfg     Config
	log     zerolog.Logger
}

// New constructs an Orchestrator. pub and notif may be nil when event
// publication or notifications are not wired (tests, match-only tooling).
func New(deals DealStore, signals SignalStore, matches MatchStore, pub Publisher, notif Notifier, cfg Config, log zerolog.Logger) *Orchestrator {
	cfg.setDefaults()
	return &Orchestrator{
		deals:   deals,
		signals: signals,
		matches: matches,
		pub:     pub,
		notif:   notif,
		cfg:     cfg,
		log:     log,
	}
}

// Result reports how far a deal-arrival event got and what it produced.
type Result struct {
	DealID      string
	DealCreated bool
	Stage       Stage
	MatchIDs    []string   // every match confirmed durable, new or pre-existing
	NewMatches  int        // matches created by this event
	Diagnostics []matcher.Evaluation
	PairErrors  map[string]error // signal id → record failure
	Err         error
}

// Done reports full pipeline completion. Zero matches is still done.
func (r Result) Done() bool {
	return r.Stage == StageDone && r.Err == nil
}

// advance moves the result to the next pipeline stage. A failed result
// reports the stage it was advancing into when the error hit.
func (r *Result) advance() {
	if next, ok := r.Stage.Next(); ok {
		r.Stage = next
	}
}

// SubmitDeal runs the full pipeline for one deal arrival: dedupe-resolve and
// upsert, candidate load, matching, and per-pair idempotent recording.
// Safe under at-least-once delivery: resubmitting the same payload never
// duplicates a deal row or a match row.
func (o *Orchestrator) SubmitDeal(ctx context.Context, d model.Deal) Result {
	res := Result{Stage: StageReceived}

	d.Normalize()
	if err := d.Validate(); err != nil {
		res.Err = err
		return res
	}
	if d.DedupeKey == "" {
		d.DedupeKey = dedupe.ForDeal(d)
	}

	// RESOLVED: the upsert must be durable before matching starts.
	err := o.withRetry(ctx, "deal upsert", func(ctx context.Context) error {
		id, created, err := o.deals.Upsert(ctx, d)
		if err != nil {
			return err
		}
		res.DealID = id
		res.DealCreated = created
		return nil
	})
	res.advance()
	if err != nil {
		res.Err = err
		return res
	}
	d.ID = res.DealID

	return o.matchAndRecord(ctx, d, res)
}

// MatchExisting runs the pipeline from CANDIDATES_LOADED for a deal that is
// already durable, used by the periodic re-match sweep.
func (o *Orchestrator) MatchExisting(ctx context.Context, d model.Deal) Result {
	res := Result{DealID: d.ID, Stage: StageResolved}
	return o.matchAndRecord(ctx, d, res)
}

func (o *Orchestrator) matchAndRecord(ctx context.Context, d model.Deal, res Result) Result {
	// CANDIDATES_LOADED: page through every active signal.
	var candidates []model.Signal
	err := o.withRetry(ctx, "candidate load", func(ctx context.Context) error {
		loaded, err := o.loadCandidates(ctx)
		if err != nil {
			return err
		}
		candidates = loaded
		return nil
	})
	res.advance()
	if err != nil {
		res.Err = err
		return res
	}

	// MATCHED: pure evaluation, never suspends.
	evals := matcher.Evaluate(d, candidates)
	res.Diagnostics = matcher.Diagnostics(evals)
	for _, diag := range res.Diagnostics {
		o.log.Warn().
			Str("dealId", res.DealID).
			Str("signalId", diag.SignalID).
			Str("reason", string(diag.Reason)).
			Msg("signal skipped: budget currency does not match deal currency")
	}
	matched := matcher.MatchedIDs(evals)
	res.advance()

	// RECORDED: each (signal, deal) pair independently; a failing pair never
	// rolls back its recorded siblings.
	res.PairErrors = make(map[string]error)
	for _, signalID := range matched {
		var (
			m       model.Match
			created bool
		)
		err := o.withRetry(ctx, "record match", func(ctx context.Context) error {
			var err error
			m, created, err = o.matches.Record(ctx, signalID, res.DealID)
			return err
		})
		if err != nil {
			res.PairErrors[signalID] = err
			continue
		}
		res.MatchIDs = append(res.MatchIDs, m.ID)
		if created {
			res.NewMatches++
			o.announceMatch(ctx, d, m)
		}
	}
	res.advance()

	if len(res.PairErrors) > 0 {
		errs := make([]error, 0, len(res.PairErrors))
		for signalID, pairErr := range res.PairErrors {
			errs = append(errs, fmt.Errorf("signal %s: %w", signalID, pairErr))
		}
		res.Err = fmt.Errorf("recorded %d of %d matches: %w",
			len(res.MatchIDs), len(matched), errors.Join(errs...))
		return res
	}

	res.advance()
	o.log.Info().
		Str("dealId", res.DealID).
		Int("candidates", len(candidates)).
		Int("matches", len(res.MatchIDs)).
		Int("newMatches", res.NewMatches).
		Msg("deal processed")
	return res
}

// announceMatch publishes the match event and queues a notification. Both
// are non-fatal: the match row is already durable and never retracted.
func (o *Orchestrator) announceMatch(ctx context.Context, d model.Deal, m model.Match) {
	if o.pub != nil {
		payload, _ := json.Marshal(map[string]string{
			"type":      EventDealMatched,
			"matchId":   m.ID,
			"signalId":  m.SignalID,
			"dealId":    m.DealID,
			"matchedAt": m.MatchedAt.UTC().Format(time.RFC3339),
		})
		if err := o.pub.Publish(ctx, EventDealMatched, payload); err != nil {
			o.log.Warn().Err(err).Str("matchId", m.ID).Msg("publish EVENT_DEAL_MATCHED failed")
		}
	}

	if o.notif != nil {
		n := store.Notification{
			SignalID: m.SignalID,
			MatchID:  m.ID,
			Channel:  store.ChannelLog,
			Subject: fmt.Sprintf("New deal: %s → %s from $%d %s",
				d.Origin, d.Destination, d.PriceCents/100, d.Currency),
			Body: fmt.Sprintf("%s → %s departing %s, %d nights, $%d %s. %s",
				d.Origin, d.Destination, d.DepartDate.Format("2006-01-02"),
				d.Nights(), d.PriceCents/100, d.Currency, d.DeeplinkURL),
		}
		if err := o.notif.Enqueue(ctx, n); err != nil {
			o.log.Warn().Err(err).Str("matchId", m.ID).Msg("notification enqueue failed")
		}
	}
}

func (o *Orchestrator) loadCandidates(ctx context.Context) ([]model.Signal, error) {
	var (
		all    []model.Signal
		cursor string
	)
	for {
		page, next, err := o.signals.ListActive(ctx, cursor, o.cfg.PageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

// Ready reports whether every store is reachable, for the health endpoint.
func (o *Orchestrator) Ready(ctx context.Context) error {
	if err := o.deals.HealthPing(ctx); err != nil {
		return fmt.Errorf("deal store: %w", err)
	}
	if err := o.signals.HealthPing(ctx); err != nil {
		return fmt.Errorf("signal store: %w", err)
	}
	if err := o.matches.HealthPing(ctx); err != nil {
		return fmt.Errorf("match store: %w", err)
	}
	return nil
}

// withRetry runs fn, retrying transient store errors with bounded
// exponential backoff. Non-transient errors propagate immediately.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	backoff := o.cfg.BaseBackoff
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !store.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == o.cfg.MaxAttempts {
			break
		}
		o.log.Warn().Err(lastErr).Str("op", op).Int("attempt", attempt).
			Dur("backoff", backoff).Msg("transient store error, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > o.cfg.MaxBackoff {
			backoff = o.cfg.MaxBackoff
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", op, o.cfg.MaxAttempts, lastErr)
}
