// Package enrich overlays per-job detail records on search results.
package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/cyderes/jobs-ingestion-service/internal/metrics"
	"github.com/cyderes/jobs-ingestion-service/internal/models"
)

// Defaults applied when the Enricher is built with zero values.
const (
	DefaultConcurrency = 5
	DefaultGroupPause  = 200 * time.Millisecond
)

// DetailFetcher retrieves one job's detail record. ok is false when no detail
// is available; implementations never fail.
type DetailFetcher interface {
	Detail(ctx context.Context, jobID, country string) (models.RawJobRecord, bool)
}

// Enricher runs detail lookups in fixed-size groups. Every member of a group
// runs concurrently, the whole group is awaited, and a pause separates
// consecutive groups.
type Enricher struct {
	fetcher     DetailFetcher
	concurrency int
	pause       time.Duration
}

// NewEnricher creates a new Enricher
func NewEnricher(fetcher DetailFetcher, concurrency int, pause time.Duration) *Enricher {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if pause < 0 {
		pause = DefaultGroupPause
	}
	return &Enricher{
		fetcher:     fetcher,
		concurrency: concurrency,
		pause:       pause,
	}
}

// Enrich looks up every id and returns the details that were found, keyed by
// job id. Lookups that produce no detail are left out.
func (e *Enricher) Enrich(ctx context.Context, ids []string, country string) map[string]models.RawJobRecord {
	var (
		mu      sync.Mutex
		details = make(map[string]models.RawJobRecord, len(ids))
	)

	groups := chunk(ids, e.concurrency)
	for i, group := range groups {
		if i > 0 && e.pause > 0 {
			select {
			case <-ctx.Done():
				log.Warn().Err(ctx.Err()).Int("groups_done", i).Msg("enrichment stopped early")
				return details
			case <-time.After(e.pause):
			}
		}

		var g errgroup.Group
		g.SetLimit(e.concurrency)
		for _, id := range group {
			g.Go(func() error {
				rec, ok := e.fetcher.Detail(ctx, id, country)
				if !ok {
					metrics.DetailMisses.Inc()
					return nil
				}
				mu.Lock()
				details[id] = rec
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	log.Debug().Int("requested", len(ids)).Int("found", len(details)).Int("groups", len(groups)).
		Msg("enrichment finished")
	return details
}

// chunk splits items into consecutive groups of at most size items.
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 || size <= 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
