package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/Sternrassler/sonar-harvest/pkg/logging"
	"github.com/Sternrassler/sonar-harvest/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// PageParam is the query parameter carrying the 1-based page number.
const PageParam = "p"

var (
	// ErrMissingTotal is returned when a page carries neither "total" nor "paging.total".
	ErrMissingTotal = errors.New("response has no total count")

	// ErrInvalidQuery is returned for a query that cannot be paginated.
	ErrInvalidQuery = errors.New("invalid query")
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sonar_harvest_pages_fetched_total",
		Help: "Total pages fetched by endpoint",
	}, []string{"endpoint"})

	itemsFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sonar_harvest_items_fetched_total",
		Help: "Total records accumulated by endpoint",
	}, []string{"endpoint"})

	hardCapReachedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sonar_harvest_hard_cap_reached_total",
		Help: "Total queries stopped at the server hard cap",
	}, []string{"endpoint"})

	maxResultsReachedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sonar_harvest_max_results_reached_total",
		Help: "Total queries stopped at the caller's MaxResults ceiling",
	}, []string{"endpoint"})
)

// Getter issues a single GET and returns the response body.
// *client.Client implements it.
type Getter interface {
	Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error)
}

// Query describes one paginated search.
type Query struct {
	// Endpoint relative to the API base URL, e.g. "/issues/search".
	Endpoint string

	// Params are the fixed filter parameters. They are never modified.
	Params url.Values

	// ItemsKey names the array holding the records ("rules", "components", "issues").
	ItemsKey string

	PageSize int

	// PageSizeParam is the dialect's name for the page size ("ps" or "pageSize").
	// Empty means the page size is not sent.
	PageSizeParam string
}

// Validate checks the query.
func (q Query) Validate() error {
	if q.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidQuery)
	}
	if q.ItemsKey == "" {
		return fmt.Errorf("%w: items key is required", ErrInvalidQuery)
	}
	if q.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be > 0 (got %d)", ErrInvalidQuery, q.PageSize)
	}
	return nil
}

// Limits bound how many records a query may accumulate. Zero means unbounded.
type Limits struct {
	// HardCap is the server's own ceiling (SonarCloud refuses to page past 10000).
	HardCap int

	// MaxResults is a caller-chosen ceiling for this query.
	MaxResults int
}

// Fetcher runs paginated queries against one Getter with its own throttle.
type Fetcher struct {
	getter   Getter
	throttle *ratelimit.Throttle
	logger   zerolog.Logger
}

// NewFetcher creates a fetcher with a fresh throttle built from cfg.
func NewFetcher(getter Getter, cfg ratelimit.Config) (*Fetcher, error) {
	if getter == nil {
		return nil, fmt.Errorf("getter is required")
	}
	throttle, err := ratelimit.NewThrottle(cfg, logging.NewLogger(logging.ComponentThrottle))
	if err != nil {
		return nil, err
	}
	return &Fetcher{
		getter:   getter,
		throttle: throttle,
		logger:   logging.NewLogger(logging.ComponentFetcher),
	}, nil
}

// Throttle exposes the fetcher's throttle (for testing).
func (f *Fetcher) Throttle() *ratelimit.Throttle {
	return f.throttle
}

// Reset restarts the throttle count. Call it at the start of every top-level
// retrieval.
func (f *Fetcher) Reset() {
	f.throttle.Reset()
}

// Get issues one throttled request, for endpoints that are not paginated.
func (f *Fetcher) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := f.throttle.Wait(ctx); err != nil {
		return nil, err
	}
	return f.getter.Get(ctx, endpoint, params)
}

// Fetch accumulates every page of q in page order, subject to lim.
// Any failed page fails the whole query.
func (f *Fetcher) Fetch(ctx context.Context, q Query, lim Limits) ([]json.RawMessage, error) {
	p, err := f.Accumulate(ctx, q, lim)
	if err != nil {
		return nil, err
	}
	return p.Items, nil
}

// Accumulate is Fetch that also returns the total the server reported on the
// first page, which may exceed the number of items when a limit applied.
func (f *Fetcher) Accumulate(ctx context.Context, q Query, lim Limits) (Page, error) {
	if err := q.Validate(); err != nil {
		return Page{}, err
	}

	first, err := f.fetchPage(ctx, q, 1)
	if err != nil {
		return Page{}, err
	}

	accumulated := append([]json.RawMessage(nil), first.Items...)
	total := first.Total

	if total <= q.PageSize {
		return Page{Items: accumulated, Total: total}, nil
	}

	retrievedSoFar := q.PageSize
	for page := 2; retrievedSoFar < total; page++ {
		if lim.HardCap > 0 && retrievedSoFar >= lim.HardCap {
			f.logger.Warn().
				Str("endpoint", q.Endpoint).
				Int("total", total).
				Int("hard_cap", lim.HardCap).
				Msg("Reached maximum results the server will return")
			hardCapReachedTotal.WithLabelValues(q.Endpoint).Inc()
			break
		}
		if lim.MaxResults > 0 && retrievedSoFar >= lim.MaxResults {
			f.logger.Warn().
				Str("endpoint", q.Endpoint).
				Int("total", total).
				Int("max_results", lim.MaxResults).
				Msg("Reached maximum results for this query")
			maxResultsReachedTotal.WithLabelValues(q.Endpoint).Inc()
			break
		}

		p, err := f.fetchPage(ctx, q, page)
		if err != nil {
			return Page{}, err
		}
		accumulated = append(accumulated, p.Items...)
		retrievedSoFar += q.PageSize
	}

	f.logger.Debug().
		Str("endpoint", q.Endpoint).
		Int("total", total).
		Int("accumulated", len(accumulated)).
		Msg("Query complete")

	return Page{Items: accumulated, Total: total}, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, q Query, page int) (Page, error) {
	params := cloneValues(q.Params)
	if q.PageSizeParam != "" {
		params.Set(q.PageSizeParam, strconv.Itoa(q.PageSize))
	}
	if page > 1 {
		params.Set(PageParam, strconv.Itoa(page))
	}

	f.logger.Info().Str("endpoint", q.Endpoint).Int("page", page).Msg("Retrieving page")

	body, err := f.Get(ctx, q.Endpoint, params)
	if err != nil {
		return Page{}, fmt.Errorf("%s page %d: %w", q.Endpoint, page, err)
	}

	p, err := DecodePage(body, q.ItemsKey)
	if err != nil {
		return Page{}, fmt.Errorf("%s page %d: %w", q.Endpoint, page, err)
	}

	pagesFetchedTotal.WithLabelValues(q.Endpoint).Inc()
	itemsFetchedTotal.WithLabelValues(q.Endpoint).Add(float64(len(p.Items)))
	return p, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
