// Package csvio reads seed CSVs into the store and writes collected data
// back out as CSV.
package csvio

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/lix-it/prospector/internal/store"
)

// keyColumns are the header names accepted for the natural-key column, in
// order of preference.
var keyColumns = []string{"link", "linkedin_url", "url", "domain"}

// ImportSources reads a headered CSV into a source table. The natural key
// is taken from the first recognised key column; a "name" column is
// optional. Returns the number of rows read.
func ImportSources(ctx context.Context, r io.Reader, repo *store.SourceRepository) (int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}

	keyIdx, nameIdx := -1, -1
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(col))
		if col == "name" {
			nameIdx = i
		}
		for _, key := range keyColumns {
			if col == key && keyIdx < 0 {
				keyIdx = i
			}
		}
	}
	if keyIdx < 0 {
		return 0, fmt.Errorf("csv header %v has no key column (one of %s)", header, strings.Join(keyColumns, ", "))
	}

	imported := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read csv row: %w", err)
		}

		link := strings.TrimSpace(record[keyIdx])
		if link == "" {
			continue
		}

		name := ""
		if nameIdx >= 0 && nameIdx < len(record) {
			name = strings.TrimSpace(record[nameIdx])
		}

		if err := repo.Insert(ctx, name, link); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

// ImportProfiles reads a headered CSV of LinkedIn profile URLs into the
// email enrichment queue.
func ImportProfiles(ctx context.Context, r io.Reader, repo *store.EmailRepository) (int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}

	keyIdx := -1
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(col))
		for _, key := range keyColumns {
			if col == key && keyIdx < 0 {
				keyIdx = i
			}
		}
	}
	if keyIdx < 0 {
		return 0, fmt.Errorf("csv header %v has no key column (one of %s)", header, strings.Join(keyColumns, ", "))
	}

	imported := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read csv row: %w", err)
		}

		link := strings.TrimSpace(record[keyIdx])
		if link == "" {
			continue
		}

		if err := repo.InsertProfile(ctx, link); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}
