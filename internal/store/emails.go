package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// MaxEmailRetries bounds how many times a profile is re-attempted before
// it is given up on. Each run attempts an eligible profile at most once.
const MaxEmailRetries = 6

// Profile is one LinkedIn profile queued for email enrichment.
type Profile struct {
	ID              int64      `db:"id"`
	LinkedInURL     string     `db:"linkedin_url"`
	LastAttemptedAt *time.Time `db:"last_attempted_at"`
}

// EmailAttempt is the latest enrichment outcome for a profile.
type EmailAttempt struct {
	ProfileID    int64          `db:"profile_id"`
	Email        sql.NullString `db:"email"`
	Status       string         `db:"status"`
	Alternatives sql.NullString `db:"alternatives"`
	RetryCount   int            `db:"retry_count"`
	CollectedAt  time.Time      `db:"collected_at"`
}

// EmailRepository handles the profile queue and its attempt history.
type EmailRepository struct {
	db *sqlx.DB
}

func NewEmailRepository(db *sqlx.DB) *EmailRepository {
	return &EmailRepository{db: db}
}

// InsertProfile queues a profile, ignoring duplicates.
func (r *EmailRepository) InsertProfile(ctx context.Context, linkedinURL string) error {
	_, err := r.db.ExecContext(ctx,
		`insert into profiles (linkedin_url) values (?) on conflict(linkedin_url) do nothing`,
		linkedinURL,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// ListEligible returns profiles that still need an attempt: profiles with
// no attempt yet, plus profiles whose latest attempt is not VALID and has
// not exhausted its retries.
func (r *EmailRepository) ListEligible(ctx context.Context) ([]Profile, error) {
	const query = `
		select p.id, p.linkedin_url, p.last_attempted_at
		from profiles p
		left join (
			select profile_id, status, retry_count,
			       row_number() over (partition by profile_id order by id desc) as rn
			from email_enrichment
		) e on e.profile_id = p.id and e.rn = 1
		where e.profile_id is null
		   or (e.status != 'VALID' and e.retry_count < ?)
		order by p.id`

	var profiles []Profile
	if err := r.db.SelectContext(ctx, &profiles, query, MaxEmailRetries); err != nil {
		return nil, fmt.Errorf("list eligible profiles: %w", err)
	}
	return profiles, nil
}

// RetryCount returns how many attempts the profile has accumulated.
func (r *EmailRepository) RetryCount(ctx context.Context, profileID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`select coalesce(max(retry_count), 0) from email_enrichment where profile_id = ?`,
		profileID,
	)
	if err != nil {
		return 0, fmt.Errorf("read retry count: %w", err)
	}
	return count, nil
}

// SaveAttempt appends an attempt row and stamps the profile. History is
// append-only so earlier outcomes stay inspectable.
func (r *EmailRepository) SaveAttempt(ctx context.Context, profileID int64, email, status, alternatives string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var prev int
	err = tx.GetContext(ctx, &prev,
		`select coalesce(max(retry_count), 0) from email_enrichment where profile_id = ?`,
		profileID,
	)
	if err != nil {
		return fmt.Errorf("read retry count: %w", err)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`insert into email_enrichment (profile_id, email, status, alternatives, retry_count, collected_at)
		 values (?, ?, ?, ?, ?, ?)`,
		profileID, toNullString(email), status, toNullString(alternatives), prev+1, now,
	)
	if err != nil {
		return fmt.Errorf("insert email attempt: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`update profiles set last_attempted_at = ? where id = ?`, now, profileID,
	)
	if err != nil {
		return fmt.Errorf("stamp profile: %w", err)
	}

	return tx.Commit()
}

// LatestAttempts returns the newest attempt per profile, joined with the
// profile URL, for export.
type EmailExportRow struct {
	LinkedInURL  string         `db:"linkedin_url"`
	Email        sql.NullString `db:"email"`
	Status       string         `db:"status"`
	Alternatives sql.NullString `db:"alternatives"`
	RetryCount   int            `db:"retry_count"`
}

func (r *EmailRepository) LatestAttempts(ctx context.Context) ([]EmailExportRow, error) {
	const query = `
		select p.linkedin_url, e.email, e.status, e.alternatives, e.retry_count
		from profiles p
		join (
			select *, row_number() over (partition by profile_id order by id desc) as rn
			from email_enrichment
		) e on e.profile_id = p.id and e.rn = 1
		order by p.id`

	var rows []EmailExportRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("read email attempts: %w", err)
	}
	return rows, nil
}
