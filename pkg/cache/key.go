package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies one cached storefront response.
type Key struct {
	// Endpoint is the storefront path (e.g., "/search/results/")
	Endpoint string

	// QueryParams are the request's query parameters
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: steam:endpoint:param1=val1:param2=val2
//
// Example:
//
//	steam:search/results:count=25:filter=globaltopsellers:start=0
func (k Key) String() string {
	parts := []string{"steam"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
