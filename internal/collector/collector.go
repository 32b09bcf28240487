// Package collector drives the enrichment use cases: it walks pending
// items out of the store, calls the API clients, and persists outcomes so
// every run is restartable.
package collector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/lix-it/prospector/internal/store"
	"github.com/lix-it/prospector/pkg/logging"
	"github.com/lix-it/prospector/pkg/retry"
)

var lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "prospector_lookups_total",
	Help: "Total per-item lookups by collection and outcome",
}, []string{"collection", "outcome"})

// Stats summarises one collector run.
type Stats struct {
	// Collected counts items enriched this run.
	Collected int

	// Unresolved counts items the API could not resolve, stamped so they
	// are not retried.
	Unresolved int

	// Skipped counts items abandoned for this run by a transient failure.
	// They stay pending and are picked up again on the next run.
	Skipped int
}

// LookupFunc fetches the enrichment payload for one natural key. A key the
// API cannot resolve returns an error wrapping retry.ErrSkip.
type LookupFunc func(ctx context.Context, link string) ([]byte, error)

// SourceCollector enriches a source table item by item. Completion is
// per-item: each enriched source is stamped immediately, so a restart
// resumes with the remaining items.
type SourceCollector struct {
	repo   *store.SourceRepository
	lookup LookupFunc
	logger zerolog.Logger
	name   string
}

// NewSourceCollector creates a collector over one source set.
func NewSourceCollector(repo *store.SourceRepository, name string, lookup LookupFunc) *SourceCollector {
	return &SourceCollector{
		repo:   repo,
		lookup: lookup,
		logger: logging.NewLogger("collector").With().Str("collection", name).Logger(),
		name:   name,
	}
}

// Run walks every pending source. A not-found item is marked unresolved so
// it is not retried; a transient skip leaves the item pending for the next
// run; any other lookup failure stops the run with progress intact.
func (c *SourceCollector) Run(ctx context.Context) (Stats, error) {
	sources, err := c.repo.ListUncollected(ctx)
	if err != nil {
		return Stats{}, err
	}

	c.logger.Info().Int("pending", len(sources)).Msg("Starting collection")

	var stats Stats
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		payload, err := c.lookup(ctx, src.Link)
		if errors.Is(err, retry.ErrSkip) {
			// Only a definitive not-found retires the item. A transient
			// skip leaves it pending so the next run picks it up again.
			if retry.Classify(err) != retry.ClassNotFound {
				c.logger.Warn().Err(err).Str("link", src.Link).Msg("Transient failure, item stays pending")
				lookupsTotal.WithLabelValues(c.name, "skipped").Inc()
				stats.Skipped++
				continue
			}
			c.logger.Warn().Str("link", src.Link).Msg("Item not found, marking unresolved")
			if err := c.repo.MarkUnresolved(ctx, src.ID); err != nil {
				return stats, err
			}
			lookupsTotal.WithLabelValues(c.name, "unresolved").Inc()
			stats.Unresolved++
			continue
		}
		if err != nil {
			lookupsTotal.WithLabelValues(c.name, "error").Inc()
			return stats, fmt.Errorf("lookup %s: %w", src.Link, err)
		}

		if err := c.repo.SaveEnrichment(ctx, src.ID, payload); err != nil {
			return stats, err
		}
		lookupsTotal.WithLabelValues(c.name, "collected").Inc()
		stats.Collected++

		c.logger.Debug().Str("link", src.Link).Msg("Item enriched")
	}

	c.logger.Info().
		Int("collected", stats.Collected).
		Int("unresolved", stats.Unresolved).
		Msg("Collection finished")

	return stats, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: true}
}
