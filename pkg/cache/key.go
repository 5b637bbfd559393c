package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey identifies a cached response: one page of one query on one server.
type CacheKey struct {
	// Server is the host of the Sonar API (e.g., "sonarcloud.io")
	Server string

	// Endpoint is the request path (e.g., "/api/issues/search")
	Endpoint string

	// QueryParams are the query parameters, including the page number
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: sonar:server:endpoint:param1=v1,v2:param2=v3
//
// Example:
//
//	sonar:sonarcloud.io:api/rules/search:languages=java:p=2:ps=500
func (k CacheKey) String() string {
	parts := []string{"sonar"}

	if k.Server != "" {
		parts = append(parts, strings.ToLower(k.Server))
	}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params sorted for determinism; repeated values keep their order.
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.QueryParams[key], ",")))
		}
	}

	return strings.Join(parts, ":")
}
