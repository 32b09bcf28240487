package paginate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/lix-it/prospector/pkg/retry"
)

// Prometheus metrics for the fetch loop.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospector_pages_fetched_total",
		Help: "Total pages fetched by collection",
	}, []string{"collection"})

	itemsCollectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospector_items_collected_total",
		Help: "Total items persisted by collection",
	}, []string{"collection"})

	collectionsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospector_collections_completed_total",
		Help: "Total collections marked complete",
	}, []string{"collection"})
)

// Fetcher fetches one page at a cursor position. Implementations apply the
// shared retry policy, so an error returned here is final: either the item
// set is gone (retry.ErrSkip) or the run must stop.
type Fetcher interface {
	FetchPage(ctx context.Context, cur Cursor) (*Page, error)
}

// Sink persists every item of a page. Writes must be idempotent under the
// sink's natural key so a re-fetched page never duplicates rows.
type Sink interface {
	SavePage(ctx context.Context, cur Cursor, page *Page) error
}

// RunState persists the loop's resumption state for one parent entity.
type RunState interface {
	// Load returns the cursor to resume from and whether the collection
	// already completed.
	Load(ctx context.Context) (Cursor, bool, error)

	// Save durably records the next cursor. Called only after the page at
	// the previous cursor was persisted.
	Save(ctx context.Context, cur Cursor) error

	// MarkComplete flags the collection so future runs short-circuit.
	MarkComplete(ctx context.Context) error
}

// Config holds fetch loop configuration.
type Config struct {
	// Collection names the parent entity for logs and metrics.
	Collection string

	// MaxItems bounds the number of collected items. Zero means no bound.
	MaxItems int

	// Throttle is an additional fixed sleep after every successful page,
	// on top of whatever throttling the fetcher itself applies.
	Throttle time.Duration
}

// Loop drives a resumable paginated fetch: fetch a page, persist its items,
// persist the advanced cursor, repeat. Persisting items before the cursor
// means a crash between the two is safe: the page is re-fetched on resume
// and its items re-written idempotently.
type Loop struct {
	fetcher  Fetcher
	sink     Sink
	state    RunState
	strategy Strategy
	cfg      Config
	logger   zerolog.Logger
}

// NewLoop creates a fetch loop.
func NewLoop(fetcher Fetcher, sink Sink, state RunState, strategy Strategy, cfg Config, logger zerolog.Logger) *Loop {
	return &Loop{
		fetcher:  fetcher,
		sink:     sink,
		state:    state,
		strategy: strategy,
		cfg:      cfg,
		logger:   logger.With().Str("collection", cfg.Collection).Logger(),
	}
}

// Run walks the collection to completion and returns the number of items
// collected in this invocation. A previously completed collection returns
// immediately. The loop is restart-idempotent: partial progress is durable
// and re-invocation resumes from the last persisted cursor.
func (l *Loop) Run(ctx context.Context) (int, error) {
	cur, complete, err := l.state.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load run state: %w", err)
	}
	if complete {
		l.logger.Info().Msg("Collection already complete, skipping")
		return 0, nil
	}

	if !cur.IsZero() {
		l.logger.Info().
			Int("offset", cur.Offset).
			Int("page", cur.Page).
			Msg("Resuming collection from persisted cursor")
	}

	collected := 0
	for {
		page, err := l.fetcher.FetchPage(ctx, cur)
		if err != nil {
			if errors.Is(err, retry.ErrSkip) {
				// Terminal-empty: the parent entity has nothing to page.
				l.logger.Warn().Err(err).Msg("Collection ended by not-found response")
				if markErr := l.markComplete(ctx); markErr != nil {
					return collected, markErr
				}
				return collected, nil
			}
			return collected, err
		}
		pagesFetchedTotal.WithLabelValues(l.cfg.Collection).Inc()

		if len(page.Items) == 0 {
			l.logger.Info().Int("collected", collected).Msg("Empty page, collection complete")
			if err := l.markComplete(ctx); err != nil {
				return collected, err
			}
			return collected, nil
		}

		// Persist the page before advancing the cursor. A crash between
		// the two re-fetches this page on resume.
		if err := l.sink.SavePage(ctx, cur, page); err != nil {
			return collected, fmt.Errorf("persist page: %w", err)
		}
		collected += len(page.Items)
		itemsCollectedTotal.WithLabelValues(l.cfg.Collection).Add(float64(len(page.Items)))

		next, done, err := l.strategy.Advance(cur, page)
		if err != nil {
			return collected, fmt.Errorf("advance cursor: %w", err)
		}

		if err := l.state.Save(ctx, next); err != nil {
			return collected, fmt.Errorf("persist cursor: %w", err)
		}

		l.logger.Info().
			Int("page_items", len(page.Items)).
			Int("collected", collected).
			Int("total", page.Total).
			Msg("Page persisted")

		if done {
			l.logger.Info().Int("collected", collected).Msg("Collection complete")
			if err := l.markComplete(ctx); err != nil {
				return collected, err
			}
			return collected, nil
		}

		if l.cfg.MaxItems > 0 && collected >= l.cfg.MaxItems {
			l.logger.Info().
				Int("collected", collected).
				Int("max_items", l.cfg.MaxItems).
				Msg("Reached maximum results, stopping")
			return collected, nil
		}

		cur = next

		if l.cfg.Throttle > 0 {
			select {
			case <-ctx.Done():
				return collected, ctx.Err()
			case <-time.After(l.cfg.Throttle):
			}
		}
	}
}

func (l *Loop) markComplete(ctx context.Context) error {
	if err := l.state.MarkComplete(ctx); err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}
	collectionsCompletedTotal.WithLabelValues(l.cfg.Collection).Inc()
	return nil
}
