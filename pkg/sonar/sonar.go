// Package sonar retrieves rules, projects, project links, violations and file
// measures from a SonarQube or SonarCloud Web API.
//
// Each retriever is a fixed configuration of a pagination.Fetcher: endpoint,
// filter parameters, items key, limits and throttle. Retrievers own their
// fetcher and are not safe for concurrent use; build one per worker.
//
// Retrievers that walk a list of projects never stop at the first failure.
// A project whose request or decode fails is logged, reported as a Failure
// and skipped.
package sonar

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/sonar-harvest/pkg/logging"
	"github.com/Sternrassler/sonar-harvest/pkg/pagination"
	"github.com/Sternrassler/sonar-harvest/pkg/ratelimit"
	"github.com/rs/zerolog"
)

const (
	// DefaultPageSize is the largest page most Sonar search endpoints accept.
	DefaultPageSize = 500

	// SonarCloudHardCap is the number of records past which SonarCloud
	// refuses to paginate.
	SonarCloudHardCap = 10000
)

// Default throttles per retriever.
var (
	DefaultRulesThrottle      = ratelimit.Config{Every: 10, Wait: 6500 * time.Millisecond}
	DefaultProjectsThrottle   = ratelimit.Config{Every: 10, Wait: 6500 * time.Millisecond}
	DefaultViolationsThrottle = ratelimit.Config{Every: 15, Wait: 10 * time.Second}
	DefaultLinksThrottle      = ratelimit.Config{Every: 20, Wait: 5 * time.Second}
	DefaultFilesThrottle      = ratelimit.Config{Every: 25, Wait: 10 * time.Second}
)

// Dialect maps parameter names of /issues/search that changed between Sonar
// API versions. Every other endpoint takes "ps" on all versions.
type Dialect struct {
	Name          string
	PageSize      string
	ComponentKeys string
}

var (
	DialectCurrent = Dialect{Name: "current", PageSize: "ps", ComponentKeys: "componentKeys"}
	DialectLegacy  = Dialect{Name: "legacy", PageSize: "pageSize", ComponentKeys: "componentRoots"}
)

// ParseDialect returns the dialect named s. Empty means current.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", DialectCurrent.Name:
		return DialectCurrent, nil
	case DialectLegacy.Name, "older":
		return DialectLegacy, nil
	default:
		return Dialect{}, fmt.Errorf("unknown api dialect %q (want current or legacy)", s)
	}
}

// Options are shared by every retriever.
type Options struct {
	Dialect Dialect

	// SonarCloud applies SonarCloudHardCap to projects and violations.
	SonarCloud bool

	// PageSize defaults to DefaultPageSize.
	PageSize int

	// Throttle defaults to the retriever's own default when Every is 0.
	Throttle ratelimit.Config
}

func (o Options) withDefaults(throttle ratelimit.Config) Options {
	if o.Dialect == (Dialect{}) {
		o.Dialect = DialectCurrent
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Throttle.Every == 0 {
		o.Throttle = throttle
	}
	return o
}

func (o Options) hardCap() int {
	if o.SonarCloud {
		return SonarCloudHardCap
	}
	return 0
}

// Failure is a resource that could not be retrieved.
type Failure struct {
	Resource string
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Resource, f.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (f Failure) Unwrap() error {
	return f.Err
}

// base holds what every retriever shares.
type base struct {
	fetcher *pagination.Fetcher
	opts    Options
	logger  zerolog.Logger
}

func newBase(getter pagination.Getter, opts Options, defaultThrottle ratelimit.Config, name string) (base, error) {
	opts = opts.withDefaults(defaultThrottle)
	fetcher, err := pagination.NewFetcher(getter, opts.Throttle)
	if err != nil {
		return base{}, fmt.Errorf("%s retriever: %w", name, err)
	}
	return base{
		fetcher: fetcher,
		opts:    opts,
		logger:  logging.NewLogger(logging.ComponentRetriever).With().Str("retriever", name).Logger(),
	}, nil
}

// Fetcher exposes the retriever's fetcher (for testing).
func (b base) Fetcher() *pagination.Fetcher {
	return b.fetcher
}

func (b base) query(endpoint, itemsKey string, params map[string]string) pagination.Query {
	q := pagination.Query{
		Endpoint:      endpoint,
		Params:        make(url.Values, len(params)),
		ItemsKey:      itemsKey,
		PageSize:      b.opts.PageSize,
		PageSizeParam: "ps",
	}
	for k, v := range params {
		q.Params.Set(k, v)
	}
	return q
}

func decodeAll[T any](items []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, raw := range items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
