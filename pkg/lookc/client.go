// Package lookc provides the LookC employee-data API client. It shares the
// retry decision table with the Lix client but speaks an unrelated API:
// bearer token auth, credit-based billing, and next-link pagination.
package lookc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lix-it/prospector/pkg/logging"
	"github.com/lix-it/prospector/pkg/retry"
)

// DefaultBaseURL is the production LookC API.
const DefaultBaseURL = "https://api.lookc.io"

// DefaultThrottle keeps well under LookC's 50 req/s limit.
const DefaultThrottle = 50 * time.Millisecond

var (
	lookcRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospector_lookc_requests_total",
		Help: "Total LookC API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	lookcErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospector_lookc_errors_total",
		Help: "Total LookC API errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// APIToken is the LookC API token, sent as the Authorization header.
	APIToken string

	// BaseURL overrides the API base URL (tests).
	BaseURL string

	// Throttle is the fixed interval between requests.
	Throttle time.Duration

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}

// Client is the LookC API client.
type Client struct {
	httpClient *http.Client
	cfg        Config
	limiter    *rate.Limiter
	logger     zerolog.Logger
	policy     retry.Policy
}

// New creates a new LookC client.
func New(cfg Config) (*Client, error) {
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("api token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = DefaultThrottle
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Every(cfg.Throttle), 1),
		logger:     logging.NewLogger("lookc-client"),
		policy:     retry.PaginationPolicy(cfg.Throttle),
	}, nil
}

// getJSON performs a throttled GET under the shared retry policy and
// returns the validated JSON body.
func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	var body []byte

	err := retry.Do(ctx, c.policy, retry.Classify, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("throttle wait: %w", err)
		}

		reqURL := c.cfg.BaseURL + endpoint
		if len(query) > 0 {
			reqURL += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return &retry.HTTPError{Class: retry.ClassClient, Message: "create request", Err: err}
		}
		req.Header.Set("Authorization", c.cfg.APIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			lookcErrorsTotal.WithLabelValues(string(retry.ClassNetwork)).Inc()
			lookcRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return &retry.HTTPError{Class: retry.ClassNetwork, Message: "http request", Err: err}
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			lookcErrorsTotal.WithLabelValues(string(retry.ClassNetwork)).Inc()
			return &retry.HTTPError{Class: retry.ClassNetwork, Message: "read body", Err: err}
		}

		lookcRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode != http.StatusOK {
			class := retry.ClassifyStatus(resp.StatusCode, respBody)
			lookcErrorsTotal.WithLabelValues(string(class)).Inc()

			// 401 and 402 get operator hints: both mean the run cannot
			// proceed until the account is fixed.
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				c.logger.Error().Str("endpoint", endpoint).
					Msg("Authentication failed, check the LookC API token")
			case http.StatusPaymentRequired:
				c.logger.Error().Str("endpoint", endpoint).
					Msg("Payment required, LookC credits must be purchased in advance")
			default:
				c.logger.Warn().
					Str("endpoint", endpoint).
					Int("status", resp.StatusCode).
					Str("error_class", string(class)).
					Msg("LookC API error")
			}

			return &retry.HTTPError{
				StatusCode: resp.StatusCode,
				Class:      class,
				Message:    resp.Status,
				Body:       respBody,
			}
		}

		if !json.Valid(respBody) {
			lookcErrorsTotal.WithLabelValues(string(retry.ClassDecode)).Inc()
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
