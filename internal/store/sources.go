package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SourceSet names the table pair for one enrichment use case. All three
// per-item use cases share the same shape, so one repository serves them.
type SourceSet struct {
	// Table is the source table holding natural keys awaiting enrichment.
	Table string

	// EnrichedTable is the append-only payload table.
	EnrichedTable string

	// FKColumn is the enriched table's foreign key column.
	FKColumn string
}

// The built-in source sets.
var (
	OrgSources    = SourceSet{Table: "orgs", EnrichedTable: "orgs_enriched", FKColumn: "org_id"}
	PeopleSources = SourceSet{Table: "people", EnrichedTable: "people_enriched", FKColumn: "person_id"}
	DomainSources = SourceSet{Table: "domains", EnrichedTable: "domains_enriched", FKColumn: "domain_id"}
)

// Source is one record awaiting enrichment.
type Source struct {
	ID              int64          `db:"id"`
	Name            sql.NullString `db:"name"`
	Link            string         `db:"link"`
	LastCollectedAt *time.Time     `db:"last_collected_at"`
}

// SourceRepository handles database operations for one source set.
type SourceRepository struct {
	db  *sqlx.DB
	set SourceSet
}

// NewSourceRepository creates a repository over the given source set.
func NewSourceRepository(db *sqlx.DB, set SourceSet) *SourceRepository {
	return &SourceRepository{db: db, set: set}
}

// ListUncollected returns all sources with no successful collection yet.
func (r *SourceRepository) ListUncollected(ctx context.Context) ([]Source, error) {
	query := fmt.Sprintf(
		`select id, name, link, last_collected_at from %s where last_collected_at is null order by id`,
		r.set.Table,
	)

	var sources []Source
	if err := r.db.SelectContext(ctx, &sources, query); err != nil {
		return nil, fmt.Errorf("list uncollected %s: %w", r.set.Table, err)
	}
	return sources, nil
}

// Insert adds a source row, ignoring natural-key duplicates so repeated
// imports stay idempotent.
func (r *SourceRepository) Insert(ctx context.Context, name, link string) error {
	query := fmt.Sprintf(
		`insert into %s (name, link) values (?, ?) on conflict(link) do nothing`,
		r.set.Table,
	)

	if _, err := r.db.ExecContext(ctx, query, toNullString(name), link); err != nil {
		return fmt.Errorf("insert into %s: %w", r.set.Table, err)
	}
	return nil
}

// SaveEnrichment appends the payload row and stamps the source as
// collected, in one transaction so a crash never leaves a stamped source
// without its payload.
func (r *SourceRepository) SaveEnrichment(ctx context.Context, sourceID int64, payload []byte) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now()

	insert := fmt.Sprintf(
		`insert into %s (%s, data, collected_at) values (?, ?, ?)`,
		r.set.EnrichedTable, r.set.FKColumn,
	)
	if _, err := tx.ExecContext(ctx, insert, sourceID, string(payload), now); err != nil {
		return fmt.Errorf("insert into %s: %w", r.set.EnrichedTable, err)
	}

	update := fmt.Sprintf(`update %s set last_collected_at = ? where id = ?`, r.set.Table)
	if _, err := tx.ExecContext(ctx, update, now, sourceID); err != nil {
		return fmt.Errorf("stamp %s: %w", r.set.Table, err)
	}

	return tx.Commit()
}

// MarkUnresolved stamps a source as processed without a payload. Used for
// not-found items so they are not retried forever.
func (r *SourceRepository) MarkUnresolved(ctx context.Context, sourceID int64) error {
	query := fmt.Sprintf(`update %s set last_collected_at = ? where id = ?`, r.set.Table)
	if _, err := r.db.ExecContext(ctx, query, time.Now(), sourceID); err != nil {
		return fmt.Errorf("mark unresolved in %s: %w", r.set.Table, err)
	}
	return nil
}

// Payloads returns all enrichment payloads in collection order, for export.
func (r *SourceRepository) Payloads(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`select data from %s order by id`, r.set.EnrichedTable)

	var payloads []string
	if err := r.db.SelectContext(ctx, &payloads, query); err != nil {
		return nil, fmt.Errorf("read %s: %w", r.set.EnrichedTable, err)
	}
	return payloads, nil
}

func toNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
