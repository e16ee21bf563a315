package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/ebay-data-client/pkg/apierr"
	"github.com/Sternrassler/ebay-data-client/pkg/fetcher"
	"github.com/Sternrassler/ebay-data-client/pkg/logging"
	"github.com/Sternrassler/ebay-data-client/pkg/metrics"
	"github.com/Sternrassler/ebay-data-client/pkg/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Collection modes, used as the "mode" metric label.
const (
	ModeSequential = "sequential"
	ModeConcurrent = "concurrent"
)

var (
	recordsCollected = metrics.Factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ebay_records_collected_total",
		Help: "Total flattened records collected by collection mode",
	}, []string{"mode"})

	earlyStops = metrics.Factory.NewCounter(prometheus.CounterOpts{
		Name: "ebay_collection_early_stops_total",
		Help: "Sequential collections stopped by consecutive page failures",
	})

	collectionDuration = metrics.Factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ebay_collection_duration_seconds",
		Help:    "Duration of a collection run by mode",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"mode"})
)

// MaxPages is the hard ceiling on pages pulled by one collection run.
const MaxPages = 100

// Config holds collector configuration.
type Config struct {
	// MaxConsecutiveFailures stops a sequential run after this many
	// failed pages in a row.
	MaxConsecutiveFailures int

	// Delay is waited between sequential page requests. Zero disables it.
	Delay time.Duration

	// PageTimeout bounds one page fetch. Zero leaves the caller's context
	// as the only bound.
	PageTimeout time.Duration

	// ProgressInterval logs progress every this many pages.
	ProgressInterval int
}

// DefaultConfig returns the default collector configuration.
func DefaultConfig() Config {
	return Config{
		MaxConsecutiveFailures: 2,
		ProgressInterval:       10,
	}
}

// PageFetcher fetches one page. *fetcher.Fetcher implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, req query.Request) fetcher.PageResult
}

// RequestBuilder builds the request for one page. *query.Builder implements it.
type RequestBuilder interface {
	Request(page int, includeMetadata bool) query.Request
}

// Collector drives a PageFetcher across a page range.
type Collector struct {
	fetcher  PageFetcher
	requests RequestBuilder
	config   Config
	logger   zerolog.Logger
}

// NewCollector creates a collector. Zero config values fall back to defaults.
func NewCollector(f PageFetcher, requests RequestBuilder, config Config) *Collector {
	if f == nil || requests == nil {
		panic("page fetcher and request builder cannot be nil")
	}
	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = 2
	}
	if config.ProgressInterval <= 0 {
		config.ProgressInterval = 10
	}

	return &Collector{
		fetcher:  f,
		requests: requests,
		config:   config,
		logger:   logging.NewLogger("collector"),
	}
}

// PagesToPull returns how many pages a sequential run fetches:
// min(totalPages, pagesWanted, MaxPages), where pagesWanted <= 0 means all.
func PagesToPull(totalPages, pagesWanted int) int {
	n := totalPages
	if pagesWanted > 0 && pagesWanted < n {
		n = pagesWanted
	}
	if n > MaxPages {
		n = MaxPages
	}
	return n
}

// Collect fetches page 1 with metadata, then pages 2..PagesToPull in order.
// A failure on page 1 is returned as-is with no dataset. Later failures are
// tolerated until MaxConsecutiveFailures occur in a row; the run then stops
// with StoppedEarly set and a nil error, since the service gives no way to
// tell throttling from exhausted results. An InputError aborts the run.
func (c *Collector) Collect(ctx context.Context, pagesWanted int) (*Dataset, error) {
	start := time.Now()
	defer func() {
		collectionDuration.WithLabelValues(ModeSequential).Observe(time.Since(start).Seconds())
	}()

	first := c.fetch(ctx, 1, true)
	if first.Err != nil {
		c.logger.Error().
			Err(first.Err).
			Str("error_tag", string(apierr.TagOf(first.Err))).
			Msg("First page failed")
		return nil, first.Err
	}

	ds := &Dataset{
		TotalPages:     first.TotalPages,
		TotalEntries:   first.TotalEntries,
		SearchURL:      first.SearchURL,
		PagesRequested: 1,
		PagesFetched:   1,
	}
	if first.Metadata != nil {
		ds.Category = first.Metadata.Category
		ds.Aspects = first.Metadata.Aspects
	}
	ds.Records = append(ds.Records, first.Records...)

	pagesToPull := PagesToPull(first.TotalPages, pagesWanted)
	c.logger.Info().
		Int("total_pages", first.TotalPages).
		Int("total_entries", first.TotalEntries).
		Int("pages_to_pull", pagesToPull).
		Msg("Starting sequential collection")

	failures := 0
	for page := 2; page <= pagesToPull; page++ {
		c.wait(ctx)

		result := c.fetch(ctx, page, false)
		ds.PagesRequested++

		if result.Err != nil {
			if errors.Is(result.Err, apierr.ErrInput) {
				return nil, fmt.Errorf("page %d: %w", page, result.Err)
			}

			failures++
			c.logger.Warn().
				Err(result.Err).
				Int("page", page).
				Str("error_tag", string(apierr.TagOf(result.Err))).
				Int("consecutive_failures", failures).
				Msg("Page failed")

			if failures >= c.config.MaxConsecutiveFailures {
				ds.StoppedEarly = true
				earlyStops.Inc()
				c.logger.Warn().
					Int("page", page).
					Int("consecutive_failures", failures).
					Int("records", len(ds.Records)).
					Msg("Stopping early after consecutive failures")
				break
			}
			continue
		}

		failures = 0
		ds.PagesFetched++
		ds.Records = append(ds.Records, result.Records...)

		if page%c.config.ProgressInterval == 0 {
			c.logger.Info().
				Int("page", page).
				Int("pages_to_pull", pagesToPull).
				Float64("progress_pct", float64(page)/float64(pagesToPull)*100).
				Msg("Collection progress")
		}
	}

	recordsCollected.WithLabelValues(ModeSequential).Add(float64(len(ds.Records)))
	c.logger.Info().
		Int("pages", ds.PagesFetched).
		Int("records", len(ds.Records)).
		Bool("stopped_early", ds.StoppedEarly).
		Dur("duration", time.Since(start)).
		Msg("Sequential collection complete")

	return ds, nil
}

// CollectConcurrent fetches pages startPage..pagesWanted, capped at MaxPages,
// with maxWorkers goroutines and no metadata. Records are returned in page
// order; a failed page contributes nothing. An error is returned only for
// invalid arguments.
func (c *Collector) CollectConcurrent(ctx context.Context, pagesWanted, maxWorkers, startPage int) (*Dataset, error) {
	switch {
	case startPage < 1:
		return nil, fmt.Errorf("start page must be >= 1 (got %d)", startPage)
	case maxWorkers < 1:
		return nil, fmt.Errorf("max workers must be >= 1 (got %d)", maxWorkers)
	case pagesWanted < startPage:
		return nil, fmt.Errorf("pages wanted (%d) must be >= start page (%d)", pagesWanted, startPage)
	case startPage > MaxPages:
		return nil, fmt.Errorf("start page %d is beyond the %d-page ceiling", startPage, MaxPages)
	}

	start := time.Now()
	defer func() {
		collectionDuration.WithLabelValues(ModeConcurrent).Observe(time.Since(start).Seconds())
	}()

	lastPage := pagesWanted
	if lastPage > MaxPages {
		lastPage = MaxPages
	}
	pageCount := lastPage - startPage + 1
	if maxWorkers > pageCount {
		maxWorkers = pageCount
	}

	c.logger.Info().
		Int("start_page", startPage).
		Int("last_page", lastPage).
		Int("workers", maxWorkers).
		Msg("Starting concurrent collection")

	// Each worker writes only its own page's slot.
	results := make([]fetcher.PageResult, pageCount)

	pageQueue := make(chan int, pageCount)
	for page := startPage; page <= lastPage; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	var wg sync.WaitGroup
	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go c.worker(ctx, i, startPage, pageQueue, results, &wg)
	}
	wg.Wait()

	ds := &Dataset{PagesRequested: pageCount}
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		ds.PagesFetched++
		ds.Records = append(ds.Records, result.Records...)
		if result.TotalPages > ds.TotalPages {
			ds.TotalPages = result.TotalPages
			ds.TotalEntries = result.TotalEntries
		}
		if ds.SearchURL == "" {
			ds.SearchURL = result.SearchURL
		}
	}

	recordsCollected.WithLabelValues(ModeConcurrent).Add(float64(len(ds.Records)))
	c.logger.Info().
		Int("pages", ds.PagesFetched).
		Int("failed_pages", pageCount-ds.PagesFetched).
		Int("records", len(ds.Records)).
		Dur("duration", time.Since(start)).
		Msg("Concurrent collection complete")

	return ds, nil
}

// worker processes pages from the queue.
func (c *Collector) worker(ctx context.Context, workerID, startPage int, pageQueue <-chan int, results []fetcher.PageResult, wg *sync.WaitGroup) {
	defer wg.Done()
	pagesProcessed := 0

	for page := range pageQueue {
		result := c.fetch(ctx, page, false)
		if result.Err != nil {
			c.logger.Debug().
				Err(result.Err).
				Int("worker_id", workerID).
				Int("page", page).
				Str("error_tag", string(apierr.TagOf(result.Err))).
				Msg("Page dropped")
		}
		results[page-startPage] = result
		pagesProcessed++
	}

	c.logger.Debug().
		Int("worker_id", workerID).
		Int("pages_processed", pagesProcessed).
		Msg("Worker completed")
}

func (c *Collector) fetch(ctx context.Context, page int, includeMetadata bool) fetcher.PageResult {
	if c.config.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.PageTimeout)
		defer cancel()
	}
	return c.fetcher.FetchPage(ctx, c.requests.Request(page, includeMetadata))
}

// wait sleeps for the configured delay. A cancelled context cuts the wait
// short; the next request then fails on its own.
func (c *Collector) wait(ctx context.Context) {
	if c.config.Delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(c.config.Delay):
	}
}
