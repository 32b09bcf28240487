package lix

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/lix-it/prospector/pkg/paginate"
)

func TestSearchPeoplePage(t *testing.T) {
	var gotURL, gotSequence string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/li/linkedin/search/people" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotURL = r.URL.Query().Get("url")
		gotSequence = r.URL.Query().Get("sequence_id")
		w.Write([]byte(`{
			"people": [{"name":"Alice"},{"name":"Bob"}],
			"response": {"paging": {"start": 20, "count": 2, "total": 22}},
			"meta": {"sequenceId": "seq-next"}
		}`))
	}))

	cur := paginate.Cursor{Offset: 20, Token: "seq-1"}
	page, err := client.SearchPeoplePage(context.Background(), "https://www.linkedin.com/search/results/people/?keywords=ceo", cur)
	if err != nil {
		t.Fatalf("SearchPeoplePage() error = %v", err)
	}

	// Offset 20 at 10 results per page is page 3.
	if !strings.Contains(gotURL, "page=3") {
		t.Errorf("search url = %q, want page=3", gotURL)
	}
	if !strings.Contains(gotURL, "keywords=ceo") {
		t.Errorf("search url dropped original query: %q", gotURL)
	}
	if gotSequence != "seq-1" {
		t.Errorf("sequence_id = %q, want seq-1", gotSequence)
	}

	if len(page.Items) != 2 || page.Start != 20 || page.Count != 2 || page.Total != 22 {
		t.Errorf("page = %+v", page)
	}
	if page.Sequence != "seq-next" {
		t.Errorf("sequence = %q", page.Sequence)
	}
}

func TestSearchLeadsPage(t *testing.T) {
	var gotMethod, gotContentType, gotFormURL, gotSequence string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		r.ParseForm()
		gotFormURL = r.PostForm.Get("url")
		gotSequence = r.PostForm.Get("sequence_id")
		w.Write([]byte(`{
			"people": [{"name":"Carol"}],
			"paging": {"start": 25, "count": 1, "total": 26},
			"meta": {"sequenceId": "seq-2"}
		}`))
	}))

	cur := paginate.Cursor{Offset: 25, Token: "seq-1", Page: 2}
	page, err := client.SearchLeadsPage(context.Background(), "https://www.linkedin.com/sales/search/people?query=(filters:List())", cur)
	if err != nil {
		t.Fatalf("SearchLeadsPage() error = %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("content type = %q", gotContentType)
	}
	if !strings.HasSuffix(gotFormURL, "&page=2") {
		t.Errorf("form url = %q, want &page=2 suffix", gotFormURL)
	}
	if gotSequence != "seq-1" {
		t.Errorf("sequence_id = %q", gotSequence)
	}
	if len(page.Items) != 1 || page.Start != 25 || page.Total != 26 {
		t.Errorf("page = %+v", page)
	}
}

func TestSearchLeadsPageDefaultsToPageOne(t *testing.T) {
	var gotFormURL string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotFormURL = r.PostForm.Get("url")
		w.Write([]byte(`{"people": [], "paging": {"start": 0, "count": 0, "total": 0}}`))
	}))

	_, err := client.SearchLeadsPage(context.Background(), "https://www.linkedin.com/sales/search/people?query=q", paginate.Cursor{})
	if err != nil {
		t.Fatalf("SearchLeadsPage() error = %v", err)
	}
	if !strings.HasSuffix(gotFormURL, "&page=1") {
		t.Errorf("form url = %q, want &page=1 suffix", gotFormURL)
	}
}

func TestParseSearchPage(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		cur       paginate.Cursor
		wantStart int
		wantCount int
		wantTotal int
	}{
		{
			name:      "top-level paging",
			body:      `{"people":[{}],"paging":{"start":50,"count":1,"total":51}}`,
			wantStart: 50, wantCount: 1, wantTotal: 51,
		},
		{
			name:      "nested paging",
			body:      `{"people":[{}],"response":{"paging":{"start":10,"count":1,"total":11}}}`,
			wantStart: 10, wantCount: 1, wantTotal: 11,
		},
		{
			name:      "no paging falls back to item count and cursor",
			body:      `{"people":[{},{}]}`,
			cur:       paginate.Cursor{Offset: 30},
			wantStart: 30, wantCount: 2, wantTotal: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := parseSearchPage([]byte(tt.body), tt.cur)
			if err != nil {
				t.Fatalf("parseSearchPage() error = %v", err)
			}
			if page.Start != tt.wantStart || page.Count != tt.wantCount || page.Total != tt.wantTotal {
				t.Errorf("page = start %d count %d total %d, want %d/%d/%d",
					page.Start, page.Count, page.Total, tt.wantStart, tt.wantCount, tt.wantTotal)
			}
		})
	}
}
