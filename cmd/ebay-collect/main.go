// Command ebay-collect runs a keyword search against the eBay Finding
// service and writes the flattened results as CSV or JSON lines.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/ebay-data-client/pkg/ebaydata"
	"github.com/Sternrassler/ebay-data-client/pkg/export"
	"github.com/Sternrassler/ebay-data-client/pkg/logging"
	"github.com/Sternrassler/ebay-data-client/pkg/metrics"
	"github.com/Sternrassler/ebay-data-client/pkg/pagination"
	"github.com/Sternrassler/ebay-data-client/pkg/query"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// options is the parsed command line.
type options struct {
	appID       string
	endpoint    string
	search      query.SearchConfig
	pages       int
	concurrent  bool
	workers     int
	startPage   int
	delay       time.Duration
	maxFailures int
	format      export.Format
	output      string
	logLevel    string
	logPretty   bool
	metricsAddr string
	testOnly    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "ebay-collect: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(opts.logLevel),
		Pretty: opts.logPretty,
		Output: stderr,
	})
	logger := logging.NewLogger("cli")

	if opts.metricsAddr != "" {
		srv := startMetricsServer(opts.metricsAddr, logger)
		defer srv.Close()
	}

	collectorCfg := pagination.DefaultConfig()
	collectorCfg.Delay = opts.delay
	if opts.maxFailures > 0 {
		collectorCfg.MaxConsecutiveFailures = opts.maxFailures
	}

	session, err := ebaydata.New(ebaydata.Config{
		AppID:     opts.appID,
		Endpoint:  opts.endpoint,
		Search:    opts.search,
		Collector: collectorCfg,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	if opts.testOnly {
		report, err := session.TestConnection(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "connected: %d pages, %d entries\n", report.TotalPages, report.TotalEntries)
		return nil
	}

	var ds *pagination.Dataset
	if opts.concurrent {
		ds, err = session.CollectConcurrent(ctx, opts.pages, opts.workers, opts.startPage)
	} else {
		ds, err = session.Collect(ctx, opts.pages)
	}
	if err != nil {
		return err
	}

	logger.Info().
		Int("records", ds.Len()).
		Int("pages", ds.PagesFetched).
		Bool("stopped_early", ds.StoppedEarly).
		Str("format", string(opts.format)).
		Msg("Collection finished")

	if opts.output == "" || opts.output == "-" {
		return export.Write(stdout, opts.format, ds)
	}
	return export.WriteFile(opts.output, opts.format, ds)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var (
		opts        options
		format      string
		profilePath string
	)

	fs := flag.NewFlagSet("ebay-collect", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.appID, "app-id", getEnv("EBAY_APP_ID", ""), "Finding service application id (env EBAY_APP_ID)")
	fs.StringVar(&opts.endpoint, "endpoint", getEnv("EBAY_ENDPOINT", ""), "Finding service URL (env EBAY_ENDPOINT)")

	fs.StringVar(&opts.search.Keywords, "keywords", "", "search keywords (required)")
	fs.StringVar(&opts.search.ExcludeWords, "exclude", "", "space separated words to exclude")
	fs.Float64Var(&opts.search.MinPrice, "min-price", 0, "minimum price")
	fs.Float64Var(&opts.search.MaxPrice, "max-price", 0, "maximum price, ignored unless above min-price")
	fs.StringVar(&opts.search.ListingType, "listing-type", "", "listing type filter, e.g. Auction or FixedPrice")
	fs.StringVar(&opts.search.Condition, "condition", "", "condition filter, e.g. New or Used")
	fs.StringVar(&opts.search.SortOrder, "sort", query.SortBestMatch, "sort order")
	fs.BoolVar(&opts.search.USAOnly, "usa-only", true, "only items located in the US")
	fs.StringVar(&opts.search.CategoryID, "category", "", "restrict to a category id")

	fs.IntVar(&opts.pages, "pages", 0, "pages to collect, 0 for all (at most 100)")
	fs.BoolVar(&opts.concurrent, "concurrent", false, "fetch pages with a worker pool")
	fs.IntVar(&opts.workers, "workers", 5, "worker pool size in concurrent mode")
	fs.IntVar(&opts.startPage, "start-page", 1, "first page in concurrent mode")
	fs.DurationVar(&opts.delay, "delay", 0, "wait between sequential requests")
	fs.IntVar(&opts.maxFailures, "max-failures", 0, "consecutive page failures before stopping (default 2)")

	fs.StringVar(&format, "format", "csv", "output format: csv or json")
	fs.StringVar(&opts.output, "output", "", "output file, stdout when empty")

	fs.StringVar(&opts.logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level (env LOG_LEVEL)")
	fs.BoolVar(&opts.logPretty, "log-pretty", false, "human-readable logs")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", getEnv("METRICS_ADDR", ""), "serve /metrics on this address (env METRICS_ADDR)")
	fs.BoolVar(&opts.testOnly, "test-connection", false, "only check that the service answers")
	fs.StringVar(&profilePath, "config", getEnv("EBAY_PROFILE", ""), "YAML search profile (env EBAY_PROFILE)")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if profilePath != "" {
		p, err := loadProfile(profilePath)
		if err != nil {
			return opts, err
		}
		set := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		p.apply(&opts, &format, set)
	}

	if opts.search.Keywords == "" {
		return opts, fmt.Errorf("-keywords is required")
	}

	f, err := export.ParseFormat(format)
	if err != nil {
		return opts, err
	}
	opts.format = f

	if opts.concurrent && opts.pages == 0 {
		return opts, fmt.Errorf("-pages is required with -concurrent")
	}

	return opts, nil
}

func startMetricsServer(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", healthHandler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return srv
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
