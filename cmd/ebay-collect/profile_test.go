package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/ebay-data-client/pkg/export"
	"github.com/Sternrassler/ebay-data-client/pkg/query"
)

const testProfile = `
app_id: profile-app
search:
  keywords: rangefinder camera
  exclude: broken parts
  min_price: 50
  max_price: 800
  sort: BidCountMost
  usa_only: false
collect:
  pages: 12
  workers: 4
  delay: 250ms
  max_failures: 3
output:
  format: json
  file: out/rangefinders.jsonl
`

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestParseFlags_Profile(t *testing.T) {
	path := writeProfile(t, testProfile)

	opts, err := parseFlags([]string{"-config", path, "-pages", "3"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags() error: %v", err)
	}

	if opts.appID != "profile-app" {
		t.Errorf("appID = %q", opts.appID)
	}
	if opts.search.Keywords != "rangefinder camera" || opts.search.ExcludeWords != "broken parts" {
		t.Errorf("search = %+v", opts.search)
	}
	if opts.search.MinPrice != 50 || opts.search.MaxPrice != 800 {
		t.Errorf("prices = %v/%v", opts.search.MinPrice, opts.search.MaxPrice)
	}
	if opts.search.SortOrder != query.SortBidCountMost {
		t.Errorf("SortOrder = %q", opts.search.SortOrder)
	}
	if opts.search.USAOnly {
		t.Error("USAOnly should come from the profile")
	}
	if opts.pages != 3 {
		t.Errorf("pages = %d, flag should win over profile", opts.pages)
	}
	if opts.workers != 4 || opts.maxFailures != 3 {
		t.Errorf("workers = %d, maxFailures = %d", opts.workers, opts.maxFailures)
	}
	if opts.delay != 250*time.Millisecond {
		t.Errorf("delay = %v, want 250ms", opts.delay)
	}
	if opts.format != export.FormatJSON || opts.output != "out/rangefinders.jsonl" {
		t.Errorf("format = %q, output = %q", opts.format, opts.output)
	}
}

func TestParseFlags_ProfileErrors(t *testing.T) {
	if _, err := parseFlags([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}, io.Discard); err == nil {
		t.Error("expected error for missing profile")
	}

	path := writeProfile(t, "search: [not, a, mapping")
	if _, err := parseFlags([]string{"-config", path}, io.Discard); err == nil {
		t.Error("expected error for malformed profile")
	}
}
