package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/lix-it/prospector/pkg/paginate"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "prospector.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, Migrate(context.Background(), db))
}

func TestSourceLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewSourceRepository(newTestDB(t), OrgSources)

	require.NoError(t, repo.Insert(ctx, "Acme", "https://linkedin.com/company/acme"))
	require.NoError(t, repo.Insert(ctx, "Globex", "https://linkedin.com/company/globex"))
	// Duplicate natural key is a no-op.
	require.NoError(t, repo.Insert(ctx, "Acme again", "https://linkedin.com/company/acme"))

	sources, err := repo.ListUncollected(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	require.Equal(t, "Acme", sources[0].Name.String)
	require.Nil(t, sources[0].LastCollectedAt)

	require.NoError(t, repo.SaveEnrichment(ctx, sources[0].ID, []byte(`{"profile":{"name":"Acme"}}`)))

	sources, err = repo.ListUncollected(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, "Globex", sources[0].Name.String)

	payloads, err := repo.Payloads(ctx)
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	require.Contains(t, payloads[0], "Acme")
}

func TestSourceMarkUnresolved(t *testing.T) {
	ctx := context.Background()
	repo := NewSourceRepository(newTestDB(t), PeopleSources)

	require.NoError(t, repo.Insert(ctx, "", "https://linkedin.com/in/ghost"))

	sources, err := repo.ListUncollected(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)

	// A not-found item is stamped without a payload so it is not retried.
	require.NoError(t, repo.MarkUnresolved(ctx, sources[0].ID))

	sources, err = repo.ListUncollected(ctx)
	require.NoError(t, err)
	require.Empty(t, sources)

	payloads, err := repo.Payloads(ctx)
	require.NoError(t, err)
	require.Empty(t, payloads)
}

func TestEmailEligibility(t *testing.T) {
	ctx := context.Background()
	repo := NewEmailRepository(newTestDB(t))

	require.NoError(t, repo.InsertProfile(ctx, "https://linkedin.com/in/alice"))
	require.NoError(t, repo.InsertProfile(ctx, "https://linkedin.com/in/bob"))

	eligible, err := repo.ListEligible(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 2)

	// A VALID result retires the profile.
	require.NoError(t, repo.SaveAttempt(ctx, eligible[0].ID, "alice@acme.com", "VALID", ""))

	// A non-VALID result keeps it eligible until retries run out.
	bob := eligible[1].ID
	require.NoError(t, repo.SaveAttempt(ctx, bob, "", "UNKNOWN", ""))

	eligible, err = repo.ListEligible(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	require.Equal(t, "https://linkedin.com/in/bob", eligible[0].LinkedInURL)

	count, err := repo.RetryCount(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	for i := 0; i < MaxEmailRetries-1; i++ {
		require.NoError(t, repo.SaveAttempt(ctx, bob, "", "UNKNOWN", ""))
	}

	count, err = repo.RetryCount(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, MaxEmailRetries, count)

	eligible, err = repo.ListEligible(ctx)
	require.NoError(t, err)
	require.Empty(t, eligible)
}

func TestEmailLatestAttempts(t *testing.T) {
	ctx := context.Background()
	repo := NewEmailRepository(newTestDB(t))

	require.NoError(t, repo.InsertProfile(ctx, "https://linkedin.com/in/alice"))
	eligible, err := repo.ListEligible(ctx)
	require.NoError(t, err)

	id := eligible[0].ID
	require.NoError(t, repo.SaveAttempt(ctx, id, "", "UNKNOWN", ""))
	require.NoError(t, repo.SaveAttempt(ctx, id, "alice@acme.com", "PROBABLE", `["a.smith@acme.com"]`))

	rows, err := repo.LatestAttempts(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "PROBABLE", rows[0].Status)
	require.Equal(t, "alice@acme.com", rows[0].Email.String)
	require.Equal(t, 2, rows[0].RetryCount)
}

func TestEmployeeUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewEmployeeRepository(newTestDB(t))

	rec := EmployeeRecord{
		PersonID: "p-1",
		OrgID:    "org-1",
		Name:     toNullString("Alice Smith"),
		Title:    toNullString("Engineer"),
		Data:     `{"person_id":"p-1"}`,
	}
	require.NoError(t, repo.Upsert(ctx, rec))

	rec.Title = toNullString("Staff Engineer")
	require.NoError(t, repo.Upsert(ctx, rec))

	recs, err := repo.ListByOrg(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "Staff Engineer", recs[0].Title.String)
}

func TestSearchUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewSearchRepository(newTestDB(t))

	require.NoError(t, repo.Upsert(ctx, SearchResult{SearchKey: "s", Position: 0, Data: `{"name":"old"}`}))
	require.NoError(t, repo.Upsert(ctx, SearchResult{SearchKey: "s", Position: 1, Data: `{"name":"second"}`}))
	require.NoError(t, repo.Upsert(ctx, SearchResult{SearchKey: "s", Position: 0, Data: `{"name":"new"}`}))

	results, err := repo.List(ctx, "s")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, `{"name":"new"}`, results[0].Data)
}

func TestRunStateRoundtrip(t *testing.T) {
	ctx := context.Background()
	repo := NewRunStateRepository(newTestDB(t))

	cur, complete, err := repo.Load(ctx, "employees:org-1")
	require.NoError(t, err)
	require.False(t, complete)
	require.True(t, cur.IsZero())

	saved := paginate.Cursor{Offset: 50, Token: "abc123", Page: 2}
	require.NoError(t, repo.Save(ctx, "employees:org-1", saved))

	cur, complete, err = repo.Load(ctx, "employees:org-1")
	require.NoError(t, err)
	require.False(t, complete)
	require.Equal(t, saved, cur)

	require.NoError(t, repo.MarkComplete(ctx, "employees:org-1"))

	cur, complete, err = repo.Load(ctx, "employees:org-1")
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, saved, cur)

	// Other parent keys are untouched.
	_, complete, err = repo.Load(ctx, "employees:org-2")
	require.NoError(t, err)
	require.False(t, complete)
}

func TestParentRunStateAdapter(t *testing.T) {
	ctx := context.Background()
	repo := NewRunStateRepository(newTestDB(t))

	var state paginate.RunState = repo.ForParent("search:abc")

	require.NoError(t, state.Save(ctx, paginate.Cursor{Offset: 10}))
	require.NoError(t, state.MarkComplete(ctx))

	cur, complete, err := state.Load(ctx)
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, 10, cur.Offset)
}
