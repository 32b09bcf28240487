package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// EmployeeRecord is one denormalized employee row. Extracted columns make
// the set queryable; the raw payload is kept alongside so nothing is lost.
type EmployeeRecord struct {
	PersonID           string         `db:"person_id"`
	OrgID              string         `db:"org_id"`
	Name               sql.NullString `db:"name"`
	Title              sql.NullString `db:"title"`
	DateStarted        sql.NullString `db:"date_started"`
	DateEnded          sql.NullString `db:"date_ended"`
	Location           sql.NullString `db:"location"`
	Image              sql.NullString `db:"image"`
	CurrentOrgID       sql.NullString `db:"current_org_id"`
	CurrentOrgName     sql.NullString `db:"current_org_name"`
	LinksLinkedIn      sql.NullString `db:"links_linkedin"`
	LinksSalesNav      sql.NullString `db:"links_sales_nav"`
	TenureAtOrgMonths  sql.NullInt64  `db:"tenure_at_org_months"`
	TenureInRoleMonths sql.NullInt64  `db:"tenure_in_role_months"`
	Data               string         `db:"data"`
	CollectedAt        time.Time      `db:"collected_at"`
}

// EmployeeRepository handles database operations for collected employees.
type EmployeeRepository struct {
	db *sqlx.DB
}

func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// Upsert writes one employee keyed by (person_id, org_id). Re-collecting a
// page replaces the previous row, so restarts never duplicate.
func (r *EmployeeRepository) Upsert(ctx context.Context, rec EmployeeRecord) error {
	rec.CollectedAt = time.Now()

	const query = `
		insert into employees (
			person_id, org_id, name, title, date_started, date_ended,
			location, image, current_org_id, current_org_name,
			links_linkedin, links_sales_nav,
			tenure_at_org_months, tenure_in_role_months,
			data, collected_at
		) values (
			:person_id, :org_id, :name, :title, :date_started, :date_ended,
			:location, :image, :current_org_id, :current_org_name,
			:links_linkedin, :links_sales_nav,
			:tenure_at_org_months, :tenure_in_role_months,
			:data, :collected_at
		)
		on conflict(person_id, org_id) do update set
			name = excluded.name,
			title = excluded.title,
			date_started = excluded.date_started,
			date_ended = excluded.date_ended,
			location = excluded.location,
			image = excluded.image,
			current_org_id = excluded.current_org_id,
			current_org_name = excluded.current_org_name,
			links_linkedin = excluded.links_linkedin,
			links_sales_nav = excluded.links_sales_nav,
			tenure_at_org_months = excluded.tenure_at_org_months,
			tenure_in_role_months = excluded.tenure_in_role_months,
			data = excluded.data,
			collected_at = excluded.collected_at`

	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("upsert employee %s/%s: %w", rec.PersonID, rec.OrgID, err)
	}
	return nil
}

// ListByOrg returns all employees collected for one organisation.
func (r *EmployeeRepository) ListByOrg(ctx context.Context, orgID string) ([]EmployeeRecord, error) {
	const query = `
		select person_id, org_id, name, title, date_started, date_ended,
		       location, image, current_org_id, current_org_name,
		       links_linkedin, links_sales_nav,
		       tenure_at_org_months, tenure_in_role_months,
		       data, collected_at
		from employees where org_id = ? order by id`

	var recs []EmployeeRecord
	if err := r.db.SelectContext(ctx, &recs, query, orgID); err != nil {
		return nil, fmt.Errorf("list employees for org %s: %w", orgID, err)
	}
	return recs, nil
}

// ListAll returns every collected employee, for export.
func (r *EmployeeRepository) ListAll(ctx context.Context) ([]EmployeeRecord, error) {
	const query = `
		select person_id, org_id, name, title, date_started, date_ended,
		       location, image, current_org_id, current_org_name,
		       links_linkedin, links_sales_nav,
		       tenure_at_org_months, tenure_in_role_months,
		       data, collected_at
		from employees order by id`

	var recs []EmployeeRecord
	if err := r.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return recs, nil
}
