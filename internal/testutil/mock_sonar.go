// Package testutil provides a mock Sonar Web API server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// APIPrefix is the path prefix every mock endpoint lives under.
const APIPrefix = "/api"

// Dataset is the full result set one endpoint serves, sliced into pages
// according to the request's page parameters.
type Dataset struct {
	// ItemsKey names the records array ("rules", "components", "issues", ...).
	ItemsKey string

	Items []any

	// Total overrides the reported total. Zero reports len(Items).
	Total int

	// PagingTotal reports the total as paging.total instead of a top-level total.
	PagingTotal bool

	// NoTotal omits the total entirely (single-response endpoints).
	NoTotal bool

	// Extra top-level fields, e.g. "baseComponent".
	Extra map[string]any

	// StatusCode, when set, makes every request fail with this status.
	StatusCode int

	// PageSizeParams names the page size parameters the endpoint honours.
	// Empty means both "ps" and "pageSize".
	PageSizeParams []string
}

// route selects a dataset for an endpoint by one query parameter value.
type route struct {
	param   string
	value   string
	dataset Dataset
}

// MockSonar is a configurable mock Sonar server for testing.
type MockSonar struct {
	server *httptest.Server
	mu     sync.RWMutex
	routes map[string][]route
	raw    map[string]MockResponse

	// HardCap makes pages starting at or past this record offset fail with
	// 400, the way SonarCloud refuses deep pagination. Zero disables it.
	HardCap int

	requests []*url.URL
}

// MockResponse is a fixed response for endpoints that are not JSON searches.
type MockResponse struct {
	StatusCode  int
	ContentType string
	Body        string
}

// NewMockSonar creates and starts a mock Sonar server.
func NewMockSonar() *MockSonar {
	mock := &MockSonar{
		routes: make(map[string][]route),
		raw:    make(map[string]MockResponse),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the API base URL (server URL plus /api).
func (m *MockSonar) URL() string {
	return m.server.URL + APIPrefix
}

// Close shuts down the mock server.
func (m *MockSonar) Close() {
	m.server.Close()
}

// Handle serves ds for every request to endpoint.
func (m *MockSonar) Handle(endpoint string, ds Dataset) {
	m.HandleFor(endpoint, "", "", ds)
}

// HandleFor serves ds for requests to endpoint whose query parameter param
// equals value. Routes are matched in registration order.
func (m *MockSonar) HandleFor(endpoint, param, value string, ds Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[endpoint] = append(m.routes[endpoint], route{param: param, value: value, dataset: ds})
}

// HandleRaw serves a fixed response for endpoint.
func (m *MockSonar) HandleRaw(endpoint string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[endpoint] = resp
}

// Requests returns the query of every request made to endpoint, in order.
func (m *MockSonar) Requests(endpoint string) []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []url.Values
	for _, u := range m.requests {
		if strings.TrimPrefix(u.Path, APIPrefix) == endpoint {
			out = append(out, u.Query())
		}
	}
	return out
}

// RequestCount returns the number of requests made to the server.
func (m *MockSonar) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Reset clears recorded requests.
func (m *MockSonar) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

func (m *MockSonar) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	u := *r.URL
	m.requests = append(m.requests, &u)
	m.mu.Unlock()

	endpoint := strings.TrimPrefix(r.URL.Path, APIPrefix)
	query := r.URL.Query()

	m.mu.RLock()
	resp, isRaw := m.raw[endpoint]
	ds, found := m.match(endpoint, query)
	hardCap := m.HardCap
	m.mu.RUnlock()

	if isRaw {
		if resp.ContentType != "" {
			w.Header().Set("Content-Type", resp.ContentType)
		}
		if resp.StatusCode != 0 {
			w.WriteHeader(resp.StatusCode)
		}
		w.Write([]byte(resp.Body))
		return
	}

	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown endpoint %s", endpoint))
		return
	}
	if ds.StatusCode != 0 {
		writeError(w, ds.StatusCode, "configured failure")
		return
	}

	page := intParam(query, 1, "p")
	sizeParams := ds.PageSizeParams
	if len(sizeParams) == 0 {
		sizeParams = []string{"ps", "pageSize"}
	}
	pageSize := intParam(query, 100, sizeParams...)
	offset := (page - 1) * pageSize

	if hardCap > 0 && offset >= hardCap {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Can return only the first %d results", hardCap))
		return
	}

	body := make(map[string]any, len(ds.Extra)+2)
	for k, v := range ds.Extra {
		body[k] = v
	}

	items := []any{}
	if offset < len(ds.Items) {
		end := offset + pageSize
		if end > len(ds.Items) || ds.NoTotal {
			end = len(ds.Items)
		}
		items = ds.Items[offset:end]
	}
	body[ds.ItemsKey] = items

	total := ds.Total
	if total == 0 {
		total = len(ds.Items)
	}
	switch {
	case ds.NoTotal:
	case ds.PagingTotal:
		body["paging"] = map[string]int{"pageIndex": page, "pageSize": pageSize, "total": total}
	default:
		body["total"] = total
		body["p"] = page
		body["ps"] = pageSize
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func (m *MockSonar) match(endpoint string, query url.Values) (Dataset, bool) {
	for _, rt := range m.routes[endpoint] {
		if rt.param == "" || query.Get(rt.param) == rt.value {
			return rt.dataset, true
		}
	}
	return Dataset{}, false
}

func intParam(query url.Values, def int, names ...string) int {
	for _, name := range names {
		if v := query.Get(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				return n
			}
		}
	}
	return def
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]string{{"msg": msg}},
	})
}

// Records builds n generic records {"key": "<prefix>-<i>"} for pagination tests.
func Records(prefix string, n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = map[string]any{"key": fmt.Sprintf("%s-%d", prefix, i+1)}
	}
	return out
}
