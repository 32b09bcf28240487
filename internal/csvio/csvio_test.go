package csvio

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/lix-it/prospector/internal/store"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "prospector.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, store.Migrate(context.Background(), db))
	return db
}

func TestImportSources(t *testing.T) {
	ctx := context.Background()
	repo := store.NewSourceRepository(newTestDB(t), store.OrgSources)

	csvData := `name,link
Acme,https://linkedin.com/company/acme
Globex,https://linkedin.com/company/globex
,https://linkedin.com/company/anonymous
Skipped,
`
	imported, err := ImportSources(ctx, strings.NewReader(csvData), repo)
	require.NoError(t, err)
	require.Equal(t, 3, imported)

	sources, err := repo.ListUncollected(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 3)
	require.Equal(t, "Acme", sources[0].Name.String)
	require.False(t, sources[2].Name.Valid)
}

func TestImportSourcesDomainHeader(t *testing.T) {
	ctx := context.Background()
	repo := store.NewSourceRepository(newTestDB(t), store.DomainSources)

	csvData := "domain\nacme.com\nglobex.com\n"
	imported, err := ImportSources(ctx, strings.NewReader(csvData), repo)
	require.NoError(t, err)
	require.Equal(t, 2, imported)
}

func TestImportSourcesIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := store.NewSourceRepository(newTestDB(t), store.OrgSources)

	csvData := "link\nhttps://linkedin.com/company/acme\n"
	_, err := ImportSources(ctx, strings.NewReader(csvData), repo)
	require.NoError(t, err)
	_, err = ImportSources(ctx, strings.NewReader(csvData), repo)
	require.NoError(t, err)

	sources, err := repo.ListUncollected(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
}

func TestImportSourcesMissingKeyColumn(t *testing.T) {
	ctx := context.Background()
	repo := store.NewSourceRepository(newTestDB(t), store.OrgSources)

	_, err := ImportSources(ctx, strings.NewReader("title,company\nCEO,Acme\n"), repo)
	require.Error(t, err)
}

func TestImportProfiles(t *testing.T) {
	ctx := context.Background()
	repo := store.NewEmailRepository(newTestDB(t))

	csvData := "linkedin_url\nhttps://linkedin.com/in/alice\nhttps://linkedin.com/in/bob\n"
	imported, err := ImportProfiles(ctx, strings.NewReader(csvData), repo)
	require.NoError(t, err)
	require.Equal(t, 2, imported)

	eligible, err := repo.ListEligible(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 2)
}

func TestExportOrgs(t *testing.T) {
	ctx := context.Background()
	repo := store.NewSourceRepository(newTestDB(t), store.OrgSources)

	require.NoError(t, repo.Insert(ctx, "Acme", "https://linkedin.com/company/acme"))
	sources, err := repo.ListUncollected(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.SaveEnrichment(ctx, sources[0].ID, []byte(`{
		"profile": {
			"name": "Acme Corp",
			"linkedinUrl": "https://linkedin.com/company/acme",
			"industry": "Manufacturing",
			"description": "Quality anvils, est. 1949",
			"employeeCount": 250
		}
	}`)))

	var out strings.Builder
	require.NoError(t, ExportOrgs(ctx, &out, repo))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "name,linkedin_url,industry,description,employee_count", lines[0])
	require.Contains(t, lines[1], "Acme Corp")
	require.Contains(t, lines[1], "250")
}

func TestExportEmails(t *testing.T) {
	ctx := context.Background()
	repo := store.NewEmailRepository(newTestDB(t))

	require.NoError(t, repo.InsertProfile(ctx, "https://linkedin.com/in/alice"))
	eligible, err := repo.ListEligible(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.SaveAttempt(ctx, eligible[0].ID, "alice@acme.com", "VALID", ""))

	var out strings.Builder
	require.NoError(t, ExportEmails(ctx, &out, repo))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "https://linkedin.com/in/alice,alice@acme.com,VALID,,1", lines[1])
}

func TestExportEmployees(t *testing.T) {
	ctx := context.Background()
	repo := store.NewEmployeeRepository(newTestDB(t))

	rec := store.EmployeeRecord{
		PersonID: "p-1",
		OrgID:    "org-1",
		Data:     `{}`,
	}
	rec.Name.String, rec.Name.Valid = "Alice", true
	rec.TenureAtOrgMonths.Int64, rec.TenureAtOrgMonths.Valid = 27, true
	require.NoError(t, repo.Upsert(ctx, rec))

	var out strings.Builder
	require.NoError(t, ExportEmployees(ctx, &out, repo))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], "p-1,org-1,Alice")
	require.Contains(t, lines[1], ",27,")
}

func TestJSONPath(t *testing.T) {
	payload := `{"profile":{"name":"Acme","employeeCount":250,"public":true},"tags":["a"]}`

	tests := []struct {
		path string
		want string
	}{
		{"profile.name", "Acme"},
		{"profile.employeeCount", "250"},
		{"profile.public", "true"},
		{"profile.missing", ""},
		{"tags", ""},
		{"missing.deep", ""},
	}

	for _, tt := range tests {
		if got := jsonPath(payload, tt.path); got != tt.want {
			t.Errorf("jsonPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
