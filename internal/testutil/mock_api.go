// Package testutil provides a configurable mock API server for tests that
// exercise the full client/collector stack.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// MockAPI is a configurable mock of the upstream APIs. Handlers are
// registered per path; requests are counted so tests can assert on traffic.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount int
	lastHeader   http.Header
}

// NewMockAPI creates a started mock server. Unregistered paths return 404.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.lastHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if !exists {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
			return
		}
		handler(w, r)
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetHandler registers a handler for a path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetJSON registers a fixed JSON response for a path.
func (m *MockAPI) SetJSON(path string, status int, body string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

// RequestCount returns the number of requests received.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// LastHeader returns the headers of the most recent request.
func (m *MockAPI) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// FailFirst wraps a handler so the first n requests to it return the given
// status, then delegates.
func FailFirst(n int, status int, next http.HandlerFunc) http.HandlerFunc {
	var mu sync.Mutex
	var calls int
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		fail := calls <= n
		mu.Unlock()

		if fail {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":"transient"}`))
			return
		}
		next(w, r)
	}
}

// SetPeopleSearch registers a paginated people search endpoint serving
// `total` generated results 10 at a time, keyed by the "page" query
// parameter of the inner search URL.
func (m *MockAPI) SetPeopleSearch(path string, total int) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page := searchPageOf(r.URL.Query().Get("url"))
		start := (page - 1) * 10

		count := 10
		if start+count > total {
			count = total - start
		}
		if count < 0 {
			count = 0
		}

		people := make([]map[string]any, 0, count)
		for i := 0; i < count; i++ {
			people = append(people, map[string]any{
				"name": fmt.Sprintf("Person %d", start+i),
				"link": fmt.Sprintf("https://linkedin.com/in/person-%d", start+i),
			})
		}

		writeJSON(w, map[string]any{
			"people": people,
			"response": map[string]any{
				"paging": map[string]int{"start": start, "count": count, "total": total},
			},
			"meta": map[string]string{"sequenceId": r.URL.Query().Get("sequence_id")},
		})
	})
}

// SetEmployees registers an employee listing endpoint for one org serving
// `total` generated employees in pages of `pageSize`, linked by "after"
// cursors.
func (m *MockAPI) SetEmployees(orgID string, total, pageSize int) {
	m.SetHandler("/org/"+orgID+"/employees", m.EmployeesHandler(orgID, total, pageSize))
}

// EmployeesHandler builds the employee listing handler without registering
// it, for tests that wrap it with failure injection.
func (m *MockAPI) EmployeesHandler(orgID string, total, pageSize int) http.HandlerFunc {
	path := "/org/" + orgID + "/employees"
	return func(w http.ResponseWriter, r *http.Request) {
		start := 0
		if after := r.URL.Query().Get("after"); after != "" {
			start, _ = strconv.Atoi(after)
		}

		count := pageSize
		if start+count > total {
			count = total - start
		}
		if count < 0 {
			count = 0
		}

		employees := make([]map[string]any, 0, count)
		for i := 0; i < count; i++ {
			employees = append(employees, map[string]any{
				"personId": fmt.Sprintf("p-%d", start+i),
				"name":     fmt.Sprintf("Employee %d", start+i),
				"title":    "Engineer",
			})
		}

		links := map[string]string{}
		if start+count < total {
			links["next"] = fmt.Sprintf("%s?after=%d&page_size=%d", path, start+count, pageSize)
		}

		writeJSON(w, map[string]any{
			"employees": employees,
			"paging":    map[string]any{"_links": links},
		})
	}
}

// searchPageOf extracts the page number from a nested search URL value.
func searchPageOf(rawURL string) int {
	// The mock only needs the page parameter; tolerate anything else.
	for i := 0; i+5 < len(rawURL); i++ {
		if rawURL[i:i+5] == "page=" {
			end := i + 5
			for end < len(rawURL) && rawURL[end] >= '0' && rawURL[end] <= '9' {
				end++
			}
			if page, err := strconv.Atoi(rawURL[i+5 : end]); err == nil {
				return page
			}
		}
	}
	return 1
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
