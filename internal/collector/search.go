package collector

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lix-it/prospector/internal/store"
	"github.com/lix-it/prospector/pkg/logging"
	"github.com/lix-it/prospector/pkg/paginate"
)

// SearchClient is the pair of search calls the search collector depends on.
type SearchClient interface {
	SearchPeoplePage(ctx context.Context, searchURL string, cur paginate.Cursor) (*paginate.Page, error)
	SearchLeadsPage(ctx context.Context, searchURL string, cur paginate.Cursor) (*paginate.Page, error)
}

// SearchCollector walks a LinkedIn search through the resumable fetch
// loop, persisting every result at its absolute position under the search
// key. Standard searches page by offset; Sales Navigator leads searches
// page by number with a server-issued sequence token.
type SearchCollector struct {
	client   SearchClient
	results  *store.SearchRepository
	runState *store.RunStateRepository
	throttle time.Duration
}

func NewSearchCollector(client SearchClient, results *store.SearchRepository, runState *store.RunStateRepository) *SearchCollector {
	return &SearchCollector{
		client:   client,
		results:  results,
		runState: runState,
	}
}

// RunPeople collects a standard people search, up to maxItems results
// (zero means the whole result set).
func (c *SearchCollector) RunPeople(ctx context.Context, searchKey, searchURL string, maxItems int) (int, error) {
	seed := uuid.NewString()
	fetcher := pageFunc(func(ctx context.Context, cur paginate.Cursor) (*paginate.Page, error) {
		return c.client.SearchPeoplePage(ctx, searchURL, seedSequence(cur, seed))
	})
	return c.run(ctx, "search", searchKey, fetcher, paginate.OffsetStrategy{}, maxItems)
}

// RunLeads collects a Sales Navigator leads search, up to maxItems results.
func (c *SearchCollector) RunLeads(ctx context.Context, searchKey, searchURL string, maxItems int) (int, error) {
	seed := uuid.NewString()
	fetcher := pageFunc(func(ctx context.Context, cur paginate.Cursor) (*paginate.Page, error) {
		return c.client.SearchLeadsPage(ctx, searchURL, seedSequence(cur, seed))
	})
	return c.run(ctx, "leads", searchKey, fetcher, paginate.SequenceStrategy{}, maxItems)
}

func (c *SearchCollector) run(ctx context.Context, collection, searchKey string, fetcher paginate.Fetcher, strategy paginate.Strategy, maxItems int) (int, error) {
	sink := &searchSink{repo: c.results, searchKey: searchKey}
	state := c.runState.ForParent(collection + ":" + searchKey)

	loop := paginate.NewLoop(fetcher, sink, state, strategy, paginate.Config{
		Collection: collection,
		MaxItems:   maxItems,
		Throttle:   c.throttle,
	}, logging.NewLogger("collector").With().Str("search_key", searchKey).Logger())

	return loop.Run(ctx)
}

// seedSequence fills in the initial sequence id. The search endpoints use
// it to pin collection settings across a walk, so every request of a fresh
// walk carries the same minted id until the server issues its own.
func seedSequence(cur paginate.Cursor, seed string) paginate.Cursor {
	if cur.Token == "" {
		cur.Token = seed
	}
	return cur
}

// pageFunc adapts a function to the paginate.Fetcher interface.
type pageFunc func(ctx context.Context, cur paginate.Cursor) (*paginate.Page, error)

func (f pageFunc) FetchPage(ctx context.Context, cur paginate.Cursor) (*paginate.Page, error) {
	return f(ctx, cur)
}

type searchSink struct {
	repo      *store.SearchRepository
	searchKey string
}

func (s *searchSink) SavePage(ctx context.Context, cur paginate.Cursor, page *paginate.Page) error {
	base := page.Start
	if base == 0 && cur.Offset > 0 {
		base = cur.Offset
	}

	for i, item := range page.Items {
		err := s.repo.Upsert(ctx, store.SearchResult{
			SearchKey: s.searchKey,
			Position:  base + i,
			Data:      string(item),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
