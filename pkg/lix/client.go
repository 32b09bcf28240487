// Package lix provides the Lix API client: person/organisation enrichment,
// contact lookup, and LinkedIn search pagination, with rate limiting,
// optional response caching, and shared retry handling.
package lix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lix-it/prospector/pkg/cache"
	"github.com/lix-it/prospector/pkg/logging"
	"github.com/lix-it/prospector/pkg/retry"
)

// DefaultBaseURL is the production Lix API.
const DefaultBaseURL = "https://api.lix-it.com"

// Prometheus metrics for Lix API operations.
var (
	lixRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospector_lix_requests_total",
		Help: "Total Lix API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	lixRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "prospector_lix_request_duration_seconds",
		Help:    "Lix API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	lixErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospector_lix_errors_total",
		Help: "Total Lix API errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// APIKey is the Lix API key, sent as the Authorization header.
	APIKey string

	// BaseURL overrides the API base URL (tests).
	BaseURL string

	// Throttle is the fixed interval between requests, kept under the
	// endpoint's rate limit. It is also the fixed wait before transient
	// retries.
	Throttle time.Duration

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client

	// Cache, when set, is consulted for single-item GET lookups before a
	// request is issued.
	Cache *cache.Manager
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:   apiKey,
		BaseURL:  DefaultBaseURL,
		Throttle: 3 * time.Second,
	}
}

// Client is the Lix API client.
type Client struct {
	httpClient *http.Client
	cfg        Config
	limiter    *rate.Limiter
	cache      *cache.Manager
	logger     zerolog.Logger

	lookupPolicy     retry.Policy
	paginationPolicy retry.Policy
}

// New creates a new Lix client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = 3 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		httpClient:       httpClient,
		cfg:              cfg,
		limiter:          rate.NewLimiter(rate.Every(cfg.Throttle), 1),
		cache:            cfg.Cache,
		logger:           logging.NewLogger("lix-client"),
		lookupPolicy:     retry.LookupPolicy(cfg.Throttle),
		paginationPolicy: retry.PaginationPolicy(cfg.Throttle),
	}, nil
}

// getJSON performs a throttled GET under the given retry policy and returns
// the validated JSON body. Lookup responses are served from and written to
// the cache when one is configured.
func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, policy retry.Policy, cacheable bool) ([]byte, error) {
	if cacheable && c.cache != nil {
		key := cache.Key{Endpoint: endpoint, Query: query}
		if entry, err := c.cache.Get(ctx, key); err == nil {
			c.logger.Debug().Str("endpoint", endpoint).Msg("Lookup served from cache")
			return entry.Data, nil
		} else if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	body, err := c.roundTrip(ctx, http.MethodGet, endpoint, query, nil, policy)
	if err != nil {
		return nil, err
	}

	if cacheable && c.cache != nil {
		key := cache.Key{Endpoint: endpoint, Query: query}
		if err := c.cache.Set(ctx, key, http.StatusOK, body); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
		}
	}

	return body, nil
}

// postForm performs a throttled form POST under the given retry policy.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, policy retry.Policy) ([]byte, error) {
	return c.roundTrip(ctx, http.MethodPost, endpoint, nil, form, policy)
}

// roundTrip issues one logical request, retrying per policy. Every branch
// logs a diagnostic before deciding retry/skip/abort.
func (c *Client) roundTrip(ctx context.Context, method, endpoint string, query url.Values, form url.Values, policy retry.Policy) ([]byte, error) {
	var body []byte

	err := retry.Do(ctx, policy, retry.Classify, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("throttle wait: %w", err)
		}

		reqURL := c.cfg.BaseURL + endpoint
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}

		var reqBody io.Reader
		if form != nil {
			reqBody = strings.NewReader(form.Encode())
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return &retry.HTTPError{Class: retry.ClassClient, Message: "create request", Err: err}
		}
		req.Header.Set("Authorization", c.cfg.APIKey)
		req.Header.Set("Accept", "application/json")
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		lixRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

		if err != nil {
			c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			lixErrorsTotal.WithLabelValues(string(retry.ClassNetwork)).Inc()
			lixRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return &retry.HTTPError{Class: retry.ClassNetwork, Message: "http request", Err: err}
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Failed to read response body")
			lixErrorsTotal.WithLabelValues(string(retry.ClassNetwork)).Inc()
			return &retry.HTTPError{Class: retry.ClassNetwork, Message: "read body", Err: err}
		}

		lixRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode != http.StatusOK {
			class := retry.ClassifyStatus(resp.StatusCode, respBody)
			lixErrorsTotal.WithLabelValues(string(class)).Inc()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(class)).
				Str("body", truncate(respBody, 512)).
				Msg("Lix API error")
			return &retry.HTTPError{
				StatusCode: resp.StatusCode,
				Class:      class,
				Message:    resp.Status,
				Body:       respBody,
			}
		}

		if !json.Valid(respBody) {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Str("body", truncate(respBody, 512)).
				Msg("Malformed JSON response")
			lixErrorsTotal.WithLabelValues(string(retry.ClassDecode)).Inc()
			return &retry.HTTPError{
				StatusCode: resp.StatusCode,
				Class:      retry.ClassDecode,
				Message:    "malformed JSON body",
				Body:       respBody,
			}
		}

		body = respBody
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
