// Package client provides the HTTP client for the eBay Finding service with
// retry, error classification and response normalisation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/ebay-data-client/pkg/apierr"
	"github.com/Sternrassler/ebay-data-client/pkg/logging"
	"github.com/Sternrassler/ebay-data-client/pkg/metrics"
	"github.com/Sternrassler/ebay-data-client/pkg/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Prometheus metrics for Finding service requests.
var (
	requestsTotal = metrics.Factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ebay_requests_total",
		Help: "Total Finding service requests by operation and status",
	}, []string{"operation", "status"})

	requestDuration = metrics.Factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ebay_request_duration_seconds",
		Help:    "Finding service request duration in seconds by operation, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	errorsTotal = metrics.Factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ebay_errors_total",
		Help: "Total Finding service errors by class",
	}, []string{"class"})
)

// OperationFindItemsAdvanced is the Finding service operation used for searches.
const OperationFindItemsAdvanced = "findItemsAdvanced"

// DefaultEndpoint is the production Finding service endpoint.
const DefaultEndpoint = "https://svcs.ebay.com/services/search/FindingService/v1"

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Config holds the client configuration.
type Config struct {
	// AppID is the application id sent with every call (REQUIRED).
	AppID string

	// Endpoint is the Finding service URL.
	Endpoint string

	// GlobalID selects the eBay site, e.g. "EBAY-US".
	GlobalID string

	// ServiceVersion is the Finding API version header.
	ServiceVersion string

	// UserAgent header.
	UserAgent string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Retry
	MaxRetries     int // attempts including the first one
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(appID string) Config {
	return Config{
		AppID:          appID,
		Endpoint:       DefaultEndpoint,
		GlobalID:       "EBAY-US",
		ServiceVersion: "1.13.0",
		UserAgent:      "ebay-data-client/0.1.0",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Client talks to the Finding service.
type Client struct {
	httpClient *http.Client
	config     Config
	retry      RetryConfig
	logger     zerolog.Logger
}

// New creates a new Finding service client.
func New(cfg Config) (*Client, error) {
	if cfg.AppID == "" {
		return nil, fmt.Errorf("app id is required")
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("endpoint must include a host")
	}

	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("max_retries must be >= 1 (got %d)", cfg.MaxRetries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		retry: RetryConfig{
			MaxAttempts:       cfg.MaxRetries,
			InitialBackoff:    cfg.InitialBackoff,
			MaxBackoff:        cfg.MaxBackoff,
			BackoffMultiplier: 2.0,
		},
		logger: logging.NewLogger("ebay-client"),
	}, nil
}

// FindItemsAdvanced runs one findItemsAdvanced call and returns the
// normalised response object.
func (c *Client) FindItemsAdvanced(ctx context.Context, req query.Request) (map[string]any, error) {
	return c.Execute(ctx, OperationFindItemsAdvanced, req)
}

// Execute posts payload as the given operation. Transport failures are
// reported as apierr.ErrConnection, rejected requests as apierr.ErrAPI.
// Network errors, 429 and 5xx responses are retried with backoff.
func (c *Client) Execute(ctx context.Context, operation string, payload any) (map[string]any, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", operation, err)
	}

	c.logger.Debug().
		Str("operation", operation).
		Msg("Executing Finding request")

	var (
		status int
		body   []byte
	)

	retryErr := retryWithBackoff(ctx, c.retry, func() (ErrorClass, error) {
		var reqErr error
		status, body, reqErr = c.post(ctx, operation, data)

		if reqErr != nil {
			c.logger.Error().Err(reqErr).Str("operation", operation).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(operation, "network_error").Inc()
			return ErrorClassNetwork, reqErr
		}

		requestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()

		if status >= 400 {
			errClass := classifyStatus(status)
			errorsTotal.WithLabelValues(string(errClass)).Inc()

			c.logger.Warn().
				Str("operation", operation).
				Int("status", status).
				Str("error_class", string(errClass)).
				Msg("Finding request error")

			if shouldRetry(errClass) {
				return errClass, &StatusError{
					StatusCode: status,
					ErrorClass: errClass,
					Message:    http.StatusText(status),
				}
			}
		}
		return "", nil
	})

	if retryErr != nil {
		if status == 0 || errors.Is(retryErr, ErrContextCancelled) {
			return nil, apierr.New(apierr.TagConnection, operation, retryErr)
		}
		return nil, apierr.New(apierr.TagAPI, failureMessage(status, body), retryErr)
	}

	if status >= 400 {
		return nil, apierr.New(apierr.TagAPI, failureMessage(status, body), nil)
	}

	resp, err := decodeResponse(operation, body)
	if err != nil {
		return nil, apierr.New(apierr.TagAPI, "malformed response", err)
	}
	return resp, nil
}

// post issues a single attempt. A non-nil error means the service was not
// reached or the body could not be read.
func (c *Client) post(ctx context.Context, operation string, data []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("X-EBAY-SOA-OPERATION-NAME", operation)
	req.Header.Set("X-EBAY-SOA-SECURITY-APPNAME", c.config.AppID)
	req.Header.Set("X-EBAY-SOA-SERVICE-VERSION", c.config.ServiceVersion)
	req.Header.Set("X-EBAY-SOA-GLOBAL-ID", c.config.GlobalID)
	req.Header.Set("X-EBAY-SOA-REQUEST-DATA-FORMAT", "JSON")
	req.Header.Set("X-EBAY-SOA-RESPONSE-DATA-FORMAT", "JSON")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// classifyStatus categorizes an HTTP failure status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// failureMessage prefers the service's own error text over the HTTP status.
func failureMessage(status int, body []byte) string {
	var raw any
	if err := json.Unmarshal(body, &raw); err == nil {
		if m, ok := unwrapOperation(Normalize(raw)).(map[string]any); ok {
			if msg := ErrorMessage(m); msg != "" {
				return msg
			}
		}
	}
	return fmt.Sprintf("status %d: %s", status, http.StatusText(status))
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
