// Package ebaydata wires the Finding client, query builder, page fetcher and
// collector into a search session.
//
// Example:
//
//	session, err := ebaydata.New(ebaydata.Config{
//		AppID:  os.Getenv("EBAY_APP_ID"),
//		Search: query.DefaultSearchConfig("film camera"),
//	})
//	if err != nil {
//		return err
//	}
//	defer session.Close()
//
//	ds, err := session.Collect(ctx, 10)
package ebaydata

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/ebay-data-client/pkg/apierr"
	"github.com/Sternrassler/ebay-data-client/pkg/client"
	"github.com/Sternrassler/ebay-data-client/pkg/fetcher"
	"github.com/Sternrassler/ebay-data-client/pkg/logging"
	"github.com/Sternrassler/ebay-data-client/pkg/pagination"
	"github.com/Sternrassler/ebay-data-client/pkg/query"
	"github.com/rs/zerolog"
)

// Config holds the session configuration.
type Config struct {
	// AppID is the Finding service application id (REQUIRED unless
	// Client.AppID is set).
	AppID string

	// Endpoint overrides the Finding service URL.
	Endpoint string

	// Search describes the query. Keywords are required.
	Search query.SearchConfig

	// Client tunes the HTTP client. Zero fields keep the value from
	// client.DefaultConfig(AppID).
	Client client.Config

	// Collector tunes collection. The zero value means
	// pagination.DefaultConfig().
	Collector pagination.Config
}

// ConnectionReport summarises a successful connection test.
type ConnectionReport struct {
	TotalPages   int
	TotalEntries int
	SearchURL    string
}

// Session runs collections for one search. Its search configuration and
// item filter are fixed at construction.
type Session struct {
	client    *client.Client
	builder   *query.Builder
	fetcher   *fetcher.Fetcher
	collector *pagination.Collector
	logger    zerolog.Logger
}

// New validates cfg and builds a session.
func New(cfg Config) (*Session, error) {
	builder, err := query.NewBuilder(cfg.Search)
	if err != nil {
		return nil, fmt.Errorf("invalid search config: %w", err)
	}

	c, err := client.New(clientConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	collectorCfg := cfg.Collector
	if collectorCfg == (pagination.Config{}) {
		collectorCfg = pagination.DefaultConfig()
	}

	f := fetcher.New(c)
	return &Session{
		client:    c,
		builder:   builder,
		fetcher:   f,
		collector: pagination.NewCollector(f, builder, collectorCfg),
		logger:    logging.NewLogger("session"),
	}, nil
}

// clientConfig lays the non-zero fields of cfg.Client over
// client.DefaultConfig. AppID and Endpoint on cfg take precedence.
func clientConfig(cfg Config) client.Config {
	merged := client.DefaultConfig(cfg.AppID)
	override := cfg.Client

	if override.AppID != "" && cfg.AppID == "" {
		merged.AppID = override.AppID
	}
	if override.Endpoint != "" {
		merged.Endpoint = override.Endpoint
	}
	if override.GlobalID != "" {
		merged.GlobalID = override.GlobalID
	}
	if override.ServiceVersion != "" {
		merged.ServiceVersion = override.ServiceVersion
	}
	if override.UserAgent != "" {
		merged.UserAgent = override.UserAgent
	}
	if override.Timeout > 0 {
		merged.Timeout = override.Timeout
	}
	if override.MaxRetries > 0 {
		merged.MaxRetries = override.MaxRetries
	}
	if override.InitialBackoff > 0 {
		merged.InitialBackoff = override.InitialBackoff
	}
	if override.MaxBackoff > 0 {
		merged.MaxBackoff = override.MaxBackoff
	}

	if cfg.Endpoint != "" {
		merged.Endpoint = cfg.Endpoint
	}
	return merged
}

// Search returns the normalized search configuration.
func (s *Session) Search() query.SearchConfig {
	return s.builder.Config()
}

// Filter returns the item filter derived for this session.
func (s *Session) Filter() query.ItemFilter {
	return s.builder.Filter()
}

// Collect runs a sequential collection. pagesWanted <= 0 means all pages.
func (s *Session) Collect(ctx context.Context, pagesWanted int) (*pagination.Dataset, error) {
	return s.collector.Collect(ctx, pagesWanted)
}

// CollectConcurrent runs a concurrent collection over
// startPage..pagesWanted with maxWorkers in-flight requests.
func (s *Session) CollectConcurrent(ctx context.Context, pagesWanted, maxWorkers, startPage int) (*pagination.Dataset, error) {
	return s.collector.CollectConcurrent(ctx, pagesWanted, maxWorkers, startPage)
}

// TestConnection fetches page 1 and reports what the service returned. A
// query with no results still counts as connected.
func (s *Session) TestConnection(ctx context.Context) (*ConnectionReport, error) {
	result := s.fetcher.FetchPage(ctx, s.builder.Request(1, false))
	if result.Err != nil && !errors.Is(result.Err, apierr.ErrNoResults) {
		s.logger.Error().
			Err(result.Err).
			Str("error_tag", string(apierr.TagOf(result.Err))).
			Msg("Connection test failed")
		return nil, result.Err
	}

	report := &ConnectionReport{
		TotalPages:   result.TotalPages,
		TotalEntries: result.TotalEntries,
		SearchURL:    result.SearchURL,
	}
	s.logger.Info().
		Int("total_pages", report.TotalPages).
		Int("total_entries", report.TotalEntries).
		Msg("Connected to Finding service")
	return report, nil
}

// Close releases idle connections.
func (s *Session) Close() error {
	return s.client.Close()
}
