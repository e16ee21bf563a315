package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/ebay-data-client/internal/testutil"
	"github.com/Sternrassler/ebay-data-client/pkg/export"
	"github.com/Sternrassler/ebay-data-client/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func baseArgs(mock *testutil.MockFinding) []string {
	return []string{
		"-app-id", "test-app-id",
		"-endpoint", mock.URL(),
		"-keywords", "film camera",
		"-log-level", "disabled",
	}
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		errorMsg string
	}{
		{
			name:     "missing keywords",
			args:     []string{"-app-id", "x"},
			errorMsg: "-keywords is required",
		},
		{
			name:     "unknown format",
			args:     []string{"-keywords", "film camera", "-format", "xlsx"},
			errorMsg: `unknown output format "xlsx"`,
		},
		{
			name:     "concurrent without pages",
			args:     []string{"-keywords", "film camera", "-concurrent"},
			errorMsg: "-pages is required with -concurrent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args, io.Discard)
			if err == nil {
				t.Fatal("Expected error but got nil")
			}
			if err.Error() != tt.errorMsg {
				t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
			}
		})
	}
}

func TestParseFlags_EnvironmentDefaults(t *testing.T) {
	t.Setenv("EBAY_APP_ID", "env-app-id")
	t.Setenv("LOG_LEVEL", "debug")

	opts, err := parseFlags([]string{"-keywords", "film camera"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags() error: %v", err)
	}
	if opts.appID != "env-app-id" {
		t.Errorf("appID = %q, want env-app-id", opts.appID)
	}
	if opts.logLevel != "debug" {
		t.Errorf("logLevel = %q, want debug", opts.logLevel)
	}
	if opts.format != export.FormatCSV {
		t.Errorf("format = %q, want csv", opts.format)
	}
	if !opts.search.USAOnly {
		t.Error("usa-only should default to true")
	}

	opts, err = parseFlags([]string{"-keywords", "film camera", "-app-id", "flag-app-id"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags() error: %v", err)
	}
	if opts.appID != "flag-app-id" {
		t.Errorf("appID = %q, flag should override environment", opts.appID)
	}
}

func TestRun_SequentialCSV(t *testing.T) {
	mock := testutil.NewMockFinding()
	defer mock.Close()
	mock.SetResponse(1, testutil.NewPageResponse(1, 1,
		testutil.Item("1", "Canon AE-1", "120.0"),
		testutil.Item("2", "Nikon FM2", "240.0"),
	))

	var stdout bytes.Buffer
	if err := run(context.Background(), baseArgs(mock), &stdout, io.Discard); err != nil {
		t.Fatalf("run() error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows:\n%s", len(lines), stdout.String())
	}
	if !strings.Contains(lines[0], "currentPrice_value") || !strings.Contains(lines[0], "itemId") {
		t.Errorf("header = %q", lines[0])
	}

	// The run above has recorded page and request metrics.
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.Gatherer, promhttp.HandlerOpts{}).
		ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	for _, name := range []string{"ebay_pages_total", "ebay_requests_total", "ebay_records_collected_total"} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestRun_ConcurrentJSONFile(t *testing.T) {
	mock := testutil.NewMockFinding()
	defer mock.Close()
	for page := 1; page <= 3; page++ {
		mock.SetResponse(page, testutil.NewPageResponse(page, 3, testutil.Item(string(rune('0'+page)), "item", "10.0")))
	}

	output := filepath.Join(t.TempDir(), "out", "items.jsonl")
	args := append(baseArgs(mock), "-concurrent", "-pages", "3", "-workers", "2", "-format", "json", "-output", output)

	if err := run(context.Background(), args, io.Discard, io.Discard); err != nil {
		t.Fatalf("run() error: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	for i, line := range lines {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("line %d: %v", i+1, err)
		}
		if want := string(rune('1' + i)); rec["itemId"] != want {
			t.Errorf("line %d itemId = %v, want %s", i+1, rec["itemId"], want)
		}
	}
}

func TestRun_TestConnection(t *testing.T) {
	mock := testutil.NewMockFinding()
	defer mock.Close()
	mock.SetResponse(1, testutil.NewPageResponse(1, 4, testutil.Item("1", "Canon AE-1", "120.0")))

	var stdout bytes.Buffer
	args := append(baseArgs(mock), "-test-connection")
	if err := run(context.Background(), args, &stdout, io.Discard); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if got := stdout.String(); got != "connected: 4 pages, 4 entries\n" {
		t.Errorf("output = %q", got)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("requests = %d, want 1", mock.GetRequestCount())
	}
}

func TestRun_FirstPageFailure(t *testing.T) {
	mock := testutil.NewMockFinding()
	defer mock.Close()
	mock.SetResponse(1, testutil.NewFailureResponse("Invalid application id"))

	err := run(context.Background(), baseArgs(mock), io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "Invalid application id") {
		t.Errorf("run() error = %v, want service message", err)
	}
}
