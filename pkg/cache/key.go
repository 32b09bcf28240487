package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key represents a unique identifier for a cached API response.
type Key struct {
	// Endpoint is the endpoint path (e.g., "/v1/organisations/by-linkedin")
	Endpoint string

	// Query are the query parameters identifying the item
	Query url.Values
}

// String generates a deterministic cache key string.
// Format: prospector:endpoint:query1=val1:query2=val2
//
// Example:
//
//	prospector:v1/contact/email/by-linkedin:url=https%3A%2F%2F...
func (k Key) String() string {
	parts := []string{"prospector"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism
	if len(k.Query) > 0 {
		keys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, url.QueryEscape(k.Query.Get(key))))
		}
	}

	return strings.Join(parts, ":")
}
