package csvio

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lix-it/prospector/internal/store"
)

// ExportOrgs writes collected organisation profiles as CSV, projecting the
// common profile fields out of the raw payloads.
func ExportOrgs(ctx context.Context, w io.Writer, repo *store.SourceRepository) error {
	payloads, err := repo.Payloads(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"name", "linkedin_url", "industry", "description", "employee_count"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, payload := range payloads {
		record := []string{
			jsonPath(payload, "profile.name"),
			jsonPath(payload, "profile.linkedinUrl"),
			jsonPath(payload, "profile.industry"),
			jsonPath(payload, "profile.description"),
			jsonPath(payload, "profile.employeeCount"),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportPeople writes collected person profiles as CSV.
func ExportPeople(ctx context.Context, w io.Writer, repo *store.SourceRepository) error {
	payloads, err := repo.Payloads(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"name", "link", "location"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, payload := range payloads {
		record := []string{
			jsonPath(payload, "name"),
			jsonPath(payload, "link"),
			jsonPath(payload, "location"),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportEmails writes the latest email attempt per profile as CSV.
func ExportEmails(ctx context.Context, w io.Writer, repo *store.EmailRepository) error {
	rows, err := repo.LatestAttempts(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"linkedin_url", "email", "status", "alternatives", "retry_count"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.LinkedInURL,
			row.Email.String,
			row.Status,
			row.Alternatives.String,
			strconv.Itoa(row.RetryCount),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportEmployees writes collected employees as CSV from the extracted
// columns.
func ExportEmployees(ctx context.Context, w io.Writer, repo *store.EmployeeRepository) error {
	recs, err := repo.ListAll(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	header := []string{
		"person_id", "org_id", "name", "title", "date_started", "date_ended",
		"location", "current_org_id", "current_org_name",
		"linkedin", "sales_nav", "tenure_at_org_months", "tenure_in_role_months",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, rec := range recs {
		record := []string{
			rec.PersonID,
			rec.OrgID,
			rec.Name.String,
			rec.Title.String,
			rec.DateStarted.String,
			rec.DateEnded.String,
			rec.Location.String,
			rec.CurrentOrgID.String,
			rec.CurrentOrgName.String,
			rec.LinksLinkedIn.String,
			rec.LinksSalesNav.String,
			nullInt(rec.TenureAtOrgMonths.Int64, rec.TenureAtOrgMonths.Valid),
			nullInt(rec.TenureInRoleMonths.Int64, rec.TenureInRoleMonths.Valid),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ExportSearchResults writes one search's results as CSV, projecting name
// and link out of the raw payloads.
func ExportSearchResults(ctx context.Context, w io.Writer, repo *store.SearchRepository, searchKey string) error {
	results, err := repo.List(ctx, searchKey)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"position", "name", "link"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, res := range results {
		record := []string{
			strconv.Itoa(res.Position),
			jsonPath(res.Data, "name"),
			jsonPath(res.Data, "link"),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// jsonPath extracts a dotted path from a JSON document as a string. Missing
// paths and non-scalar values come back empty; numbers render without an
// exponent.
func jsonPath(payload, path string) string {
	var doc any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return ""
	}

	for _, part := range strings.Split(path, ".") {
		obj, ok := doc.(map[string]any)
		if !ok {
			return ""
		}
		doc, ok = obj[part]
		if !ok {
			return ""
		}
	}

	switch v := doc.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func nullInt(v int64, valid bool) string {
	if !valid {
		return ""
	}
	return strconv.FormatInt(v, 10)
}
