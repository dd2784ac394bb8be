package orchestrator

import (
	"context"
	"sync"

	"tripsignal/matcher-service/internal/model"
)

// SweepStats summarises one re-match pass over the active deal corpus.
type SweepStats struct {
	Deals      int
	NewMatches int
	Failed     int
}

// Sweep re-evaluates every active deal against the current signal set,
// recording any matches that did not exist yet. Deals are processed by a
// bounded worker pool; the idempotent match recording makes redundant
// evaluation harmless.
func (o *Orchestrator) Sweep(ctx context.Context) (SweepStats, error) {
	var (
		stats SweepStats
		mu    sync.Mutex
		wg    sync.WaitGroup
	)

	jobs := make(chan model.Deal)
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				res := o.MatchExisting(ctx, d)
				mu.Lock()
				stats.Deals++
				stats.NewMatches += res.NewMatches
				if !res.Done() {
					stats.Failed++
					o.log.Error().Err(res.Err).
						Str("dealId", d.ID).
						Str("stage", string(res.Stage)).
						Msg("sweep: deal failed")
				}
				mu.Unlock()
			}
		}()
	}

	var pageErr error
	cursor := ""
feed:
	for {
		page, next, err := o.deals.ListActive(ctx, cursor, o.cfg.PageSize)
		if err != nil {
			pageErr = err
			break
		}
		for _, d := range page {
			select {
			case jobs <- d:
			case <-ctx.Done():
				pageErr = ctx.Err()
				break feed
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	close(jobs)
	wg.Wait()

	return stats, pageErr
}
