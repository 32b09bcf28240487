package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SearchResult is one collected search hit at an absolute result position.
type SearchResult struct {
	SearchKey   string    `db:"search_key"`
	Position    int       `db:"position"`
	Data        string    `db:"data"`
	CollectedAt time.Time `db:"collected_at"`
}

// SearchRepository handles database operations for search results.
type SearchRepository struct {
	db *sqlx.DB
}

func NewSearchRepository(db *sqlx.DB) *SearchRepository {
	return &SearchRepository{db: db}
}

// Upsert writes one result keyed by (search_key, position), so re-fetching
// a page after a restart overwrites rather than duplicates.
func (r *SearchRepository) Upsert(ctx context.Context, res SearchResult) error {
	res.CollectedAt = time.Now()

	const query = `
		insert into search_results (search_key, position, data, collected_at)
		values (:search_key, :position, :data, :collected_at)
		on conflict(search_key, position) do update set
			data = excluded.data,
			collected_at = excluded.collected_at`

	if _, err := r.db.NamedExecContext(ctx, query, res); err != nil {
		return fmt.Errorf("upsert search result %s/%d: %w", res.SearchKey, res.Position, err)
	}
	return nil
}

// List returns all results for one search in position order.
func (r *SearchRepository) List(ctx context.Context, searchKey string) ([]SearchResult, error) {
	const query = `
		select search_key, position, data, collected_at
		from search_results where search_key = ? order by position`

	var results []SearchResult
	if err := r.db.SelectContext(ctx, &results, query, searchKey); err != nil {
		return nil, fmt.Errorf("list search results: %w", err)
	}
	return results, nil
}
