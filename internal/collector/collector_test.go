package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/lix-it/prospector/internal/store"
	"github.com/lix-it/prospector/pkg/lix"
	"github.com/lix-it/prospector/pkg/paginate"
	"github.com/lix-it/prospector/pkg/retry"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "prospector.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, store.Migrate(context.Background(), db))
	return db
}

// skipNotFound mimics a client skip on a 404: the not-found cause stays
// reachable behind retry.ErrSkip.
func skipNotFound(msg string) error {
	return fmt.Errorf("%w: %w", retry.ErrSkip, &retry.HTTPError{
		StatusCode: 404,
		Class:      retry.ClassNotFound,
		Message:    msg,
	})
}

// skipTransient mimics a client skip on a transport failure.
func skipTransient(msg string) error {
	return fmt.Errorf("%w: %w", retry.ErrSkip, &retry.HTTPError{
		Class:   retry.ClassNetwork,
		Message: msg,
		Err:     errors.New("connection reset by peer"),
	})
}

func TestSourceCollectorRun(t *testing.T) {
	ctx := context.Background()
	repo := store.NewSourceRepository(newTestDB(t), store.OrgSources)

	require.NoError(t, repo.Insert(ctx, "Acme", "https://linkedin.com/company/acme"))
	require.NoError(t, repo.Insert(ctx, "Ghost", "https://linkedin.com/company/ghost"))
	require.NoError(t, repo.Insert(ctx, "Globex", "https://linkedin.com/company/globex"))

	lookup := func(ctx context.Context, link string) ([]byte, error) {
		if link == "https://linkedin.com/company/ghost" {
			return nil, skipNotFound("organisation gone")
		}
		return []byte(`{"link":"` + link + `"}`), nil
	}

	stats, err := NewSourceCollector(repo, "orgs", lookup).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Collected)
	require.Equal(t, 1, stats.Unresolved)

	// Everything is stamped, so a second run has nothing to do.
	stats, err = NewSourceCollector(repo, "orgs", lookup).Run(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.Collected)
	require.Zero(t, stats.Unresolved)
}

func TestSourceCollectorAbortKeepsProgress(t *testing.T) {
	ctx := context.Background()
	repo := store.NewSourceRepository(newTestDB(t), store.PeopleSources)

	require.NoError(t, repo.Insert(ctx, "Alice", "https://linkedin.com/in/alice"))
	require.NoError(t, repo.Insert(ctx, "Bob", "https://linkedin.com/in/bob"))

	calls := 0
	lookup := func(ctx context.Context, link string) ([]byte, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("authorization rejected")
		}
		return []byte(`{}`), nil
	}

	stats, err := NewSourceCollector(repo, "people", lookup).Run(ctx)
	require.Error(t, err)
	require.Equal(t, 1, stats.Collected)

	// The failed item is still pending for the next run.
	pending, err := repo.ListUncollected(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "https://linkedin.com/in/bob", pending[0].Link)
}

func TestSourceCollectorTransientSkipStaysPending(t *testing.T) {
	ctx := context.Background()
	repo := store.NewSourceRepository(newTestDB(t), store.OrgSources)

	require.NoError(t, repo.Insert(ctx, "Acme", "https://linkedin.com/company/acme"))
	require.NoError(t, repo.Insert(ctx, "Globex", "https://linkedin.com/company/globex"))

	flaky := true
	lookup := func(ctx context.Context, link string) ([]byte, error) {
		if link == "https://linkedin.com/company/acme" && flaky {
			return nil, skipTransient("http request")
		}
		return []byte(`{"link":"` + link + `"}`), nil
	}

	stats, err := NewSourceCollector(repo, "orgs", lookup).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Collected)
	require.Equal(t, 1, stats.Skipped)
	require.Zero(t, stats.Unresolved)

	// The skipped item is neither stamped nor marked unresolved.
	pending, err := repo.ListUncollected(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "https://linkedin.com/company/acme", pending[0].Link)

	// Once the blip clears, the next run collects it.
	flaky = false
	stats, err = NewSourceCollector(repo, "orgs", lookup).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Collected)
	require.Zero(t, stats.Skipped)
}

type fakeEmailClient struct {
	results map[string]*lix.EmailResult
	errs    map[string]error
}

func (f *fakeEmailClient) GetEmailByLinkedIn(ctx context.Context, profileURL string) (*lix.EmailResult, error) {
	if err, ok := f.errs[profileURL]; ok {
		return nil, err
	}
	result, ok := f.results[profileURL]
	if !ok {
		return nil, skipNotFound("profile gone")
	}
	return result, nil
}

func TestEmailCollectorRun(t *testing.T) {
	ctx := context.Background()
	repo := store.NewEmailRepository(newTestDB(t))

	require.NoError(t, repo.InsertProfile(ctx, "https://linkedin.com/in/alice"))
	require.NoError(t, repo.InsertProfile(ctx, "https://linkedin.com/in/ghost"))

	client := &fakeEmailClient{results: map[string]*lix.EmailResult{
		"https://linkedin.com/in/alice": {
			Email:        "alice@acme.com",
			Status:       lix.EmailStatusValid,
			Alternatives: []string{"a.smith@acme.com"},
		},
	}}

	stats, err := NewEmailCollector(repo, client).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Collected)
	require.Equal(t, 1, stats.Unresolved)

	rows, err := repo.LatestAttempts(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, lix.EmailStatusValid, rows[0].Status)
	require.JSONEq(t, `["a.smith@acme.com"]`, rows[0].Alternatives.String)
	require.Equal(t, lix.EmailStatusUnknown, rows[1].Status)

	// The VALID profile retired; the unresolved one keeps consuming
	// attempts until the cap.
	eligible, err := repo.ListEligible(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	require.Equal(t, "https://linkedin.com/in/ghost", eligible[0].LinkedInURL)
}

func TestEmailCollectorTransientSkipKeepsAttempts(t *testing.T) {
	ctx := context.Background()
	repo := store.NewEmailRepository(newTestDB(t))

	require.NoError(t, repo.InsertProfile(ctx, "https://linkedin.com/in/alice"))

	client := &fakeEmailClient{errs: map[string]error{
		"https://linkedin.com/in/alice": skipTransient("http request"),
	}}

	stats, err := NewEmailCollector(repo, client).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Skipped)
	require.Zero(t, stats.Unresolved)

	// No attempt was recorded, so the failure did not count towards the cap.
	eligible, err := repo.ListEligible(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	count, err := repo.RetryCount(ctx, eligible[0].ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

type fakeEmployeeLister struct {
	pages map[string]*paginate.Page // keyed by after token
	calls int
}

func (f *fakeEmployeeLister) ListEmployeesPage(ctx context.Context, orgID string, pageSize int, cur paginate.Cursor) (*paginate.Page, error) {
	f.calls++
	page, ok := f.pages[cur.Token]
	if !ok {
		return nil, fmt.Errorf("unexpected cursor %q", cur.Token)
	}
	return page, nil
}

func employeeItems(ids ...string) []json.RawMessage {
	items := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		items = append(items, json.RawMessage(`{"personId":"`+id+`","name":"Employee `+id+`","tenureAtOrg":{"years":1,"months":2}}`))
	}
	return items
}

func TestEmployeeCollectorRun(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	employees := store.NewEmployeeRepository(db)
	runState := store.NewRunStateRepository(db)

	lister := &fakeEmployeeLister{pages: map[string]*paginate.Page{
		"": {
			Items:    employeeItems("p-1", "p-2"),
			Count:    2,
			NextLink: "/org/org-1/employees?after=tok-2",
		},
		"tok-2": {
			Items: employeeItems("p-3"),
			Count: 1,
		},
	}}

	collected, err := NewEmployeeCollector(lister, employees, runState).Run(ctx, "org-1")
	require.NoError(t, err)
	require.Equal(t, 3, collected)

	recs, err := employees.ListByOrg(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, int64(14), recs[0].TenureAtOrgMonths.Int64)
	// Open-ended stint at the collected org implies current employment.
	require.Equal(t, "org-1", recs[0].CurrentOrgID.String)

	// A second run short-circuits on the completed state.
	calls := lister.calls
	collected, err = NewEmployeeCollector(lister, employees, runState).Run(ctx, "org-1")
	require.NoError(t, err)
	require.Zero(t, collected)
	require.Equal(t, calls, lister.calls)
}

type fakeSearchClient struct {
	total     int
	pageSize  int
	sequences []string
}

func (f *fakeSearchClient) page(cur paginate.Cursor) *paginate.Page {
	f.sequences = append(f.sequences, cur.Token)

	start := cur.Offset
	count := f.pageSize
	if start+count > f.total {
		count = f.total - start
	}

	items := make([]json.RawMessage, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, json.RawMessage(fmt.Sprintf(`{"position":%d}`, start+i)))
	}
	return &paginate.Page{Items: items, Start: start, Count: count, Total: f.total}
}

func (f *fakeSearchClient) SearchPeoplePage(ctx context.Context, searchURL string, cur paginate.Cursor) (*paginate.Page, error) {
	return f.page(cur), nil
}

func (f *fakeSearchClient) SearchLeadsPage(ctx context.Context, searchURL string, cur paginate.Cursor) (*paginate.Page, error) {
	p := f.page(cur)
	p.Start = 0 // the sales endpoint reports positions relative to the page
	return p, nil
}

func TestSearchCollectorRunPeople(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	results := store.NewSearchRepository(db)
	runState := store.NewRunStateRepository(db)

	client := &fakeSearchClient{total: 25, pageSize: 10}

	collected, err := NewSearchCollector(client, results, runState).RunPeople(ctx, "ceo-search", "https://linkedin.com/search?keywords=ceo", 0)
	require.NoError(t, err)
	require.Equal(t, 25, collected)

	// Every request carried the minted sequence id.
	require.NotEmpty(t, client.sequences)
	for _, seq := range client.sequences {
		require.Equal(t, client.sequences[0], seq)
		require.NotEmpty(t, seq)
	}

	rows, err := results.List(ctx, "ceo-search")
	require.NoError(t, err)
	require.Len(t, rows, 25)
	require.Equal(t, 0, rows[0].Position)
	require.Equal(t, 24, rows[24].Position)
}

func TestSearchCollectorMaxItems(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	results := store.NewSearchRepository(db)
	runState := store.NewRunStateRepository(db)

	client := &fakeSearchClient{total: 100, pageSize: 10}

	collected, err := NewSearchCollector(client, results, runState).RunPeople(ctx, "bounded", "https://linkedin.com/search?keywords=cto", 30)
	require.NoError(t, err)
	require.Equal(t, 30, collected)

	// The bound stops the walk without completing it.
	cur, complete, err := runState.Load(ctx, "search:bounded")
	require.NoError(t, err)
	require.False(t, complete)
	require.Equal(t, 30, cur.Offset)
}
