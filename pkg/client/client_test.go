package client

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/ebay-data-client/internal/testutil"
	"github.com/Sternrassler/ebay-data-client/pkg/apierr"
	"github.com/Sternrassler/ebay-data-client/pkg/query"
	"github.com/jarcoal/httpmock"
)

const mockEndpoint = "https://svcs.example.test/services/search/FindingService/v1"

// testConfig returns a configuration with millisecond backoff.
func testConfig(endpoint string) Config {
	cfg := DefaultConfig("test-app-id")
	cfg.Endpoint = endpoint
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func testRequest(t *testing.T, page int) query.Request {
	t.Helper()
	b, err := query.NewBuilder(query.SearchConfig{Keywords: "film camera"})
	if err != nil {
		t.Fatalf("NewBuilder() error: %v", err)
	}
	return b.Request(page, false)
}

// newMockedClient returns a client whose transport is an httpmock transport.
func newMockedClient(t *testing.T, responder httpmock.Responder) (*Client, *httpmock.MockTransport) {
	t.Helper()
	c, err := New(testConfig(mockEndpoint))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost, mockEndpoint, responder)
	c.SetHTTPClient(&http.Client{Transport: transport})
	return c, transport
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("app"),
		},
		{
			name:        "missing app id",
			config:      DefaultConfig(""),
			expectError: true,
			errorMsg:    "app id is required",
		},
		{
			name: "endpoint without host",
			config: func() Config {
				c := DefaultConfig("app")
				c.Endpoint = "/relative/path"
				return c
			}(),
			expectError: true,
			errorMsg:    "endpoint must include a host",
		},
		{
			name: "zero retries",
			config: func() Config {
				c := DefaultConfig("app")
				c.MaxRetries = 0
				return c
			}(),
			expectError: true,
			errorMsg:    "max_retries must be >= 1 (got 0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Error("Client is nil")
			}
		})
	}
}

func TestNew_EmptyEndpointUsesDefault(t *testing.T) {
	cfg := DefaultConfig("app")
	cfg.Endpoint = ""

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if c.config.Endpoint != DefaultEndpoint {
		t.Errorf("Endpoint = %q, want %q", c.config.Endpoint, DefaultEndpoint)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("app")

	if cfg.AppID != "app" {
		t.Errorf("AppID = %q, want %q", cfg.AppID, "app")
	}
	if cfg.Endpoint != DefaultEndpoint {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.GlobalID != "EBAY-US" {
		t.Errorf("GlobalID = %q, want EBAY-US", cfg.GlobalID)
	}
}

func TestFindItemsAdvanced_Success(t *testing.T) {
	mock := testutil.NewMockFinding()
	defer mock.Close()
	mock.SetResponse(2, testutil.NewPageResponse(2, 7, testutil.Item("1", "Canon AE-1", "120.0")))

	c, err := New(testConfig(mock.URL()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	resp, err := c.FindItemsAdvanced(context.Background(), testRequest(t, 2))
	if err != nil {
		t.Fatalf("FindItemsAdvanced() error: %v", err)
	}

	if resp["ack"] != "Success" {
		t.Errorf("ack = %v, want Success", resp["ack"])
	}
	pagination, ok := resp["paginationOutput"].(map[string]any)
	if !ok {
		t.Fatalf("paginationOutput = %T, want object", resp["paginationOutput"])
	}
	if pagination["totalPages"] != "7" {
		t.Errorf("totalPages = %v, want 7", pagination["totalPages"])
	}

	item := resp["searchResult"].(map[string]any)["item"].(map[string]any)
	price := item["sellingStatus"].(map[string]any)["currentPrice"].(map[string]any)
	if price["currencyId"] != "USD" || price["value"] != "120.0" {
		t.Errorf("currentPrice = %v, want normalised currencyId/value", price)
	}

	header := mock.LastHeader
	if got := header.Get("X-EBAY-SOA-OPERATION-NAME"); got != OperationFindItemsAdvanced {
		t.Errorf("operation header = %q", got)
	}
	if got := header.Get("X-EBAY-SOA-SECURITY-APPNAME"); got != "test-app-id" {
		t.Errorf("app name header = %q", got)
	}
	if got := header.Get("X-EBAY-SOA-RESPONSE-DATA-FORMAT"); got != "JSON" {
		t.Errorf("response format header = %q", got)
	}
	if got := mock.RequestedPages(); len(got) != 1 || got[0] != 2 {
		t.Errorf("requested pages = %v, want [2]", got)
	}
}

func TestFindItemsAdvanced_FailureAckIsReturned(t *testing.T) {
	mock := testutil.NewMockFinding()
	defer mock.Close()
	mock.SetResponse(1, testutil.NewFailureResponse("Invalid keywords"))

	c, err := New(testConfig(mock.URL()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	resp, err := c.FindItemsAdvanced(context.Background(), testRequest(t, 1))
	if err != nil {
		t.Fatalf("FindItemsAdvanced() error: %v", err)
	}
	if resp["ack"] != "Failure" {
		t.Errorf("ack = %v, want Failure", resp["ack"])
	}
	if msg := ErrorMessage(resp); msg != "Invalid keywords" {
		t.Errorf("ErrorMessage() = %q", msg)
	}
}

func TestFindItemsAdvanced_ServerErrorRetriedThenAPIError(t *testing.T) {
	mock := testutil.NewMockFinding()
	defer mock.Close()
	mock.SetResponse(1, testutil.NewServerErrorResponse())

	c, err := New(testConfig(mock.URL()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	_, err = c.FindItemsAdvanced(context.Background(), testRequest(t, 1))
	if !errors.Is(err, apierr.ErrAPI) {
		t.Fatalf("error = %v, want APIError", err)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("error = %v, want ErrRetryExhausted in chain", err)
	}

	var e *apierr.Error
	if errors.As(err, &e) && e.Message != "Internal server error" {
		t.Errorf("message = %q, want service message", e.Message)
	}
	if got := mock.GetRequestCount(); got != 3 {
		t.Errorf("request count = %d, want 3", got)
	}
}

func TestExecute_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	c, _ := newMockedClient(t, func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return httpmock.NewStringResponse(http.StatusBadRequest, "not json"), nil
	})

	_, err := c.FindItemsAdvanced(context.Background(), testRequest(t, 1))
	if !errors.Is(err, apierr.ErrAPI) {
		t.Fatalf("error = %v, want APIError", err)
	}

	var e *apierr.Error
	if errors.As(err, &e) && e.Message != "status 400: Bad Request" {
		t.Errorf("message = %q, want generic status message", e.Message)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestExecute_NetworkErrorIsConnectionError(t *testing.T) {
	c, transport := newMockedClient(t, httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := c.FindItemsAdvanced(context.Background(), testRequest(t, 1))
	if !errors.Is(err, apierr.ErrConnection) {
		t.Fatalf("error = %v, want ConnectionError", err)
	}
	if got := transport.GetTotalCallCount(); got != 3 {
		t.Errorf("calls = %d, want 3 (retried)", got)
	}
}

func TestExecute_RecoversAfterServerError(t *testing.T) {
	var calls int32
	c, _ := newMockedClient(t, func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return httpmock.NewStringResponse(http.StatusServiceUnavailable, ""), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, testutil.ItemsBody(1, 1, 0, nil)), nil
	})

	resp, err := c.FindItemsAdvanced(context.Background(), testRequest(t, 1))
	if err != nil {
		t.Fatalf("FindItemsAdvanced() error: %v", err)
	}
	if resp["ack"] != "Success" {
		t.Errorf("ack = %v", resp["ack"])
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestExecute_MalformedBody(t *testing.T) {
	c, _ := newMockedClient(t, httpmock.NewStringResponder(http.StatusOK, "<html>maintenance</html>"))

	_, err := c.FindItemsAdvanced(context.Background(), testRequest(t, 1))
	if !errors.Is(err, apierr.ErrAPI) {
		t.Fatalf("error = %v, want APIError", err)
	}
}

func TestExecute_CancelledContext(t *testing.T) {
	mock := testutil.NewMockFinding()
	defer mock.Close()

	c, err := New(testConfig(mock.URL()))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.FindItemsAdvanced(ctx, testRequest(t, 1))
	if !errors.Is(err, apierr.ErrConnection) {
		t.Fatalf("error = %v, want ConnectionError", err)
	}
	if got := mock.GetRequestCount(); got != 0 {
		t.Errorf("request count = %d, want 0", got)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{http.StatusOK, ""},
		{http.StatusBadRequest, ErrorClassClient},
		{http.StatusNotFound, ErrorClassClient},
		{http.StatusTooManyRequests, ErrorClassRateLimit},
		{http.StatusInternalServerError, ErrorClassServer},
		{http.StatusServiceUnavailable, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.expected {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}
