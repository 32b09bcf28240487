package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lix-it/prospector/pkg/paginate"
)

// RunStateRepository persists pagination cursors keyed by parent entity.
type RunStateRepository struct {
	db *sqlx.DB
}

func NewRunStateRepository(db *sqlx.DB) *RunStateRepository {
	return &RunStateRepository{db: db}
}

type runStateRow struct {
	ParentKey       string     `db:"parent_key"`
	CursorOffset    int        `db:"cursor_offset"`
	CursorToken     string     `db:"cursor_token"`
	CursorPage      int        `db:"cursor_page"`
	LastCollectedAt *time.Time `db:"last_collected_at"`
	IsComplete      bool       `db:"is_complete"`
}

// Load returns the saved cursor for the parent key, a zero cursor if none
// was saved yet, and whether the collection already completed.
func (r *RunStateRepository) Load(ctx context.Context, parentKey string) (paginate.Cursor, bool, error) {
	var row runStateRow
	err := r.db.GetContext(ctx, &row,
		`select parent_key, cursor_offset, cursor_token, cursor_page, last_collected_at, is_complete
		 from run_state where parent_key = ?`,
		parentKey,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return paginate.Cursor{}, false, nil
	}
	if err != nil {
		return paginate.Cursor{}, false, fmt.Errorf("load run state %s: %w", parentKey, err)
	}

	cur := paginate.Cursor{
		Offset: row.CursorOffset,
		Token:  row.CursorToken,
		Page:   row.CursorPage,
	}
	return cur, row.IsComplete, nil
}

// Save upserts the cursor for the parent key.
func (r *RunStateRepository) Save(ctx context.Context, parentKey string, cur paginate.Cursor) error {
	_, err := r.db.ExecContext(ctx,
		`insert into run_state (parent_key, cursor_offset, cursor_token, cursor_page, last_collected_at, is_complete)
		 values (?, ?, ?, ?, ?, 0)
		 on conflict(parent_key) do update set
			cursor_offset = excluded.cursor_offset,
			cursor_token = excluded.cursor_token,
			cursor_page = excluded.cursor_page,
			last_collected_at = excluded.last_collected_at`,
		parentKey, cur.Offset, cur.Token, cur.Page, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("save run state %s: %w", parentKey, err)
	}
	return nil
}

// MarkComplete flags the parent key so future runs short-circuit.
func (r *RunStateRepository) MarkComplete(ctx context.Context, parentKey string) error {
	_, err := r.db.ExecContext(ctx,
		`insert into run_state (parent_key, last_collected_at, is_complete)
		 values (?, ?, 1)
		 on conflict(parent_key) do update set
			last_collected_at = excluded.last_collected_at,
			is_complete = 1`,
		parentKey, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("mark run state complete %s: %w", parentKey, err)
	}
	return nil
}

// ForParent binds the repository to one parent key, satisfying the fetch
// loop's state interface.
func (r *RunStateRepository) ForParent(parentKey string) *ParentRunState {
	return &ParentRunState{repo: r, parentKey: parentKey}
}

// ParentRunState is a RunStateRepository scoped to a single parent key.
type ParentRunState struct {
	repo      *RunStateRepository
	parentKey string
}

func (s *ParentRunState) Load(ctx context.Context) (paginate.Cursor, bool, error) {
	return s.repo.Load(ctx, s.parentKey)
}

func (s *ParentRunState) Save(ctx context.Context, cur paginate.Cursor) error {
	return s.repo.Save(ctx, s.parentKey, cur)
}

func (s *ParentRunState) MarkComplete(ctx context.Context) error {
	return s.repo.MarkComplete(ctx, s.parentKey)
}
