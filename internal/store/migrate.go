package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migrations is the full idempotent schema. Every source table follows the
// shape (id, natural key, last processed timestamp); every enriched table
// references its source and stores the raw payload with a collection
// timestamp.
var migrations = []string{
	`create table if not exists orgs (
		id integer primary key autoincrement,
		name text,
		link text not null unique,
		last_collected_at datetime
	)`,
	`create table if not exists orgs_enriched (
		id integer primary key autoincrement,
		org_id integer not null,
		data text not null,
		collected_at datetime not null,

		foreign key(org_id) references orgs(id)
	)`,
	`create table if not exists people (
		id integer primary key autoincrement,
		name text,
		link text not null unique,
		last_collected_at datetime
	)`,
	`create table if not exists people_enriched (
		id integer primary key autoincrement,
		person_id integer not null,
		data text not null,
		collected_at datetime not null,

		foreign key(person_id) references people(id)
	)`,
	`create table if not exists domains (
		id integer primary key autoincrement,
		name text,
		link text not null unique,
		last_collected_at datetime
	)`,
	`create table if not exists domains_enriched (
		id integer primary key autoincrement,
		domain_id integer not null,
		data text not null,
		collected_at datetime not null,

		foreign key(domain_id) references domains(id)
	)`,
	`create table if not exists profiles (
		id integer primary key autoincrement,
		name text,
		linkedin_url text not null unique,
		last_attempted_at datetime
	)`,
	`create table if not exists email_enrichment (
		id integer primary key autoincrement,
		profile_id integer not null,
		email text,
		status text not null,
		alternatives text,
		retry_count integer not null default 0,
		collected_at datetime not null,

		foreign key(profile_id) references profiles(id)
	)`,
	`create table if not exists employees (
		id integer primary key autoincrement,
		person_id text not null,
		org_id text not null,
		name text,
		title text,
		date_started text,
		date_ended text,
		location text,
		image text,
		current_org_id text,
		current_org_name text,
		links_linkedin text,
		links_sales_nav text,
		tenure_at_org_months integer,
		tenure_in_role_months integer,
		data text not null,
		collected_at datetime not null,
		unique(person_id, org_id)
	)`,
	`create table if not exists search_results (
		id integer primary key autoincrement,
		search_key text not null,
		position integer not null,
		data text not null,
		collected_at datetime not null,
		unique(search_key, position)
	)`,
	`create table if not exists run_state (
		parent_key text primary key,
		cursor_offset integer not null default 0,
		cursor_token text not null default '',
		cursor_page integer not null default 0,
		last_collected_at datetime,
		is_complete boolean not null default 0
	)`,
}

// Migrate creates the schema. Safe to run repeatedly.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
