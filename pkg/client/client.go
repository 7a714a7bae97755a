// Package client provides the Steam storefront HTTP client with response
// caching and error classification.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/steam-topsellers/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for storefront client operations.
var (
	storeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steam_requests_total",
		Help: "Total storefront requests by endpoint and status",
	}, []string{"endpoint", "status"})

	storeRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "steam_request_duration_seconds",
		Help:    "Storefront request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	storeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steam_errors_total",
		Help: "Total storefront errors by kind",
	}, []string{"kind"})
)

// Storefront endpoint paths.
const (
	searchEndpoint  = "/search/results/"
	detailsEndpoint = "/api/appdetails/"
)

// Client is the storefront HTTP client. It performs a single exchange per
// call and never retries; retry policy belongs to the page fetch pool.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the storefront, without trailing slash.
	BaseURL string

	// UserAgent sent with every request.
	UserAgent string

	// Timeout bounds one HTTP exchange.
	Timeout time.Duration

	// Cache is an optional Redis-backed page cache. Nil disables caching.
	Cache *cache.Manager

	// CacheTTL is how long a cached page body stays fresh.
	CacheTTL time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://store.steampowered.com",
		UserAgent: "steam-topsellers/0.1.0",
		Timeout:   15 * time.Second,
		CacheTTL:  5 * time.Minute,
	}
}

// New creates a new storefront client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	logger := log.With().Str("component", "storefront-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:  cfg.Cache,
		config: cfg,
		logger: logger,
	}, nil
}

// FetchPage fetches one page of the global top sellers listing and returns
// its items in display order. On failure the error is always a *FetchError.
func (c *Client) FetchPage(ctx context.Context, index, pageSize int) ([]Item, error) {
	if index < 0 {
		return nil, fmt.Errorf("page index must be non-negative (got %d)", index)
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive (got %d)", pageSize)
	}

	params := url.Values{}
	params.Set("filter", "globaltopsellers")
	params.Set("category1", "998") // Games
	params.Set("start", strconv.Itoa(index*pageSize))
	params.Set("count", strconv.Itoa(pageSize))
	params.Set("json", "1")

	body, err := c.exchange(ctx, searchEndpoint, params)
	if err != nil {
		return nil, err
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		storeErrorsTotal.WithLabelValues(string(ErrorKindSchema)).Inc()
		return nil, schemaError("decode search payload", err)
	}
	if payload.Items == nil {
		storeErrorsTotal.WithLabelValues(string(ErrorKindSchema)).Inc()
		return nil, schemaError("search payload missing items list", nil)
	}
	for i, item := range payload.Items {
		if item.Name == "" {
			storeErrorsTotal.WithLabelValues(string(ErrorKindSchema)).Inc()
			return nil, schemaError(fmt.Sprintf("item %d has no name", i), nil)
		}
	}

	c.logger.Debug().
		Int("page", index).
		Int("items", len(payload.Items)).
		Msg("Fetched search page")

	return payload.Items, nil
}

// FetchAppDetails fetches the details payload for a single app. The body is
// returned verbatim after validation; its shape varies per app and is not
// interpreted here.
func (c *Client) FetchAppDetails(ctx context.Context, appID int64) (json.RawMessage, error) {
	if appID <= 0 {
		return nil, fmt.Errorf("appid must be positive (got %d)", appID)
	}

	params := url.Values{}
	params.Set("appids", strconv.FormatInt(appID, 10))

	body, err := c.exchange(ctx, detailsEndpoint, params)
	if err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		storeErrorsTotal.WithLabelValues(string(ErrorKindSchema)).Inc()
		return nil, schemaError("details payload is not valid JSON", nil)
	}

	return json.RawMessage(body), nil
}

// exchange performs one GET against the storefront, consulting the cache
// first when one is configured. The returned body is the raw 2xx payload.
func (c *Client) exchange(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		storeRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	cacheKey := cache.Key{Endpoint: endpoint, QueryParams: params}
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		if entry != nil {
			c.logger.Debug().Str("endpoint", endpoint).Msg("Cache hit")
			storeRequestsTotal.WithLabelValues(endpoint, "cached").Inc()
			return entry.Body, nil
		}
	}

	reqURL := c.config.BaseURL + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		storeErrorsTotal.WithLabelValues(string(ErrorKindTransport)).Inc()
		storeRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, transportError(0, "request failed", err)
	}
	defer resp.Body.Close()

	storeRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		storeErrorsTotal.WithLabelValues(string(ErrorKindTransport)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Storefront request error")
		return nil, transportError(resp.StatusCode, resp.Status, nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		storeErrorsTotal.WithLabelValues(string(ErrorKindTransport)).Inc()
		return nil, transportError(resp.StatusCode, "read response body", err)
	}

	if c.cache != nil {
		entry := cache.NewEntry(body, c.config.CacheTTL)
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
		}
	}

	return body, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
