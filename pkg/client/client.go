// Package client provides the shared HTTP transport for the Sonar Web API:
// one timeout, one TLS policy and one user agent for every retriever, typed
// errors, and an optional Redis response cache.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/sonar-harvest/pkg/cache"
	"github.com/Sternrassler/sonar-harvest/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for Sonar API requests.
var (
	sonarRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sonar_requests_total",
		Help: "Total Sonar API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	sonarRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sonar_request_duration_seconds",
		Help:    "Sonar API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"endpoint"})

	sonarErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sonar_errors_total",
		Help: "Total Sonar API errors by class",
	}, []string{"class"})
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "sonar-harvest/1.0"

// Client is the shared Sonar API transport.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the transport configuration.
type Config struct {
	// BaseURL of the Web API, including the /api suffix
	// (e.g. "https://sonarcloud.io/api").
	BaseURL string

	// Timeout applies to the whole request including the body read.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS certificate checks for self-hosted
	// servers with private certificates.
	InsecureSkipVerify bool

	UserAgent string

	// Cache is optional. When nil every request goes to the server.
	Cache    *cache.Manager
	CacheTTL time.Duration
}

// DefaultConfig returns the configuration used when only the base URL is known.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		Timeout:   60 * time.Second,
		UserAgent: DefaultUserAgent,
		CacheTTL:  time.Hour,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: base url: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: base url must be http or https (got %q)", ErrInvalidConfig, c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be > 0 (got %s)", ErrInvalidConfig, c.Timeout)
	}
	if c.Cache != nil && c.CacheTTL <= 0 {
		return fmt.Errorf("%w: cache ttl must be > 0 when a cache is set", ErrInvalidConfig)
	}
	return nil
}

// New creates a Sonar API client.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	baseURL, _ := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-hosted servers
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL: baseURL,
		cache:   cfg.Cache,
		config:  cfg,
		logger:  logging.NewLogger(logging.ComponentClient),
	}, nil
}

// Get performs a GET request to endpoint (e.g. "/rules/search") and returns
// the response body. Non-2xx responses are returned as *APIError.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	var cacheKey cache.CacheKey
	if c.cache != nil {
		cacheKey = cache.CacheKey{
			Server:      c.baseURL.Host,
			Endpoint:    c.baseURL.Path + endpoint,
			QueryParams: params,
		}
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str("endpoint", endpoint).Str("key", cacheKey.String()).Msg("Cache hit")
			sonarRequestsTotal.WithLabelValues(endpoint, "cached").Inc()
			return entry.Data, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	body, err := c.do(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, cache.NewEntry(body, http.StatusOK, c.config.CacheTTL)); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
		}
	}

	return body, nil
}

func (c *Client) do(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := c.URL(endpoint, params)

	startTime := time.Now()
	defer func() {
		sonarRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("endpoint", endpoint).Str("url", reqURL).Msg("Executing Sonar request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(endpoint, 0, "network_error", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(endpoint, resp.StatusCode, "network_error", err)
	}

	status := strconv.Itoa(resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := c.fail(endpoint, resp.StatusCode, status, nil)
		apiErr.Message = resp.Status
		return nil, apiErr
	}

	sonarRequestsTotal.WithLabelValues(endpoint, status).Inc()
	return body, nil
}

func (c *Client) fail(endpoint string, statusCode int, statusLabel string, err error) *APIError {
	class := classifyError(statusCode, err)
	sonarErrorsTotal.WithLabelValues(string(class)).Inc()
	sonarRequestsTotal.WithLabelValues(endpoint, statusLabel).Inc()

	event := c.logger.Warn().Str("endpoint", endpoint).Str("error_class", string(class))
	if err != nil {
		event = event.Err(err)
	} else {
		event = event.Int("status", statusCode)
	}
	event.Msg("Sonar request error")

	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Class:      class,
		Err:        err,
	}
}

// URL builds the absolute request URL for endpoint and params.
func (c *Client) URL(endpoint string, params url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + endpoint
	u.RawQuery = params.Encode()
	return u.String()
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
