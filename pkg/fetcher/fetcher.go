// Package fetcher retrieves one page of search results and interprets the
// Finding service response envelope.
package fetcher

import (
	"context"
	"fmt"

	"github.com/Sternrassler/ebay-data-client/pkg/apierr"
	"github.com/Sternrassler/ebay-data-client/pkg/client"
	"github.com/Sternrassler/ebay-data-client/pkg/flatten"
	"github.com/Sternrassler/ebay-data-client/pkg/logging"
	"github.com/Sternrassler/ebay-data-client/pkg/metrics"
	"github.com/Sternrassler/ebay-data-client/pkg/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var pagesTotal = metrics.Factory.NewCounterVec(prometheus.CounterOpts{
	Name: "ebay_pages_total",
	Help: "Total result pages fetched by outcome",
}, []string{"result"})

// Acknowledgement values that carry usable results.
const (
	AckSuccess = "Success"
	AckWarning = "Warning"
)

// Searcher performs a findItemsAdvanced call. *client.Client implements it.
type Searcher interface {
	FindItemsAdvanced(ctx context.Context, req query.Request) (map[string]any, error)
}

// PageResult is the outcome of fetching one page. Err is nil on success.
type PageResult struct {
	Page         int
	Records      []flatten.Record
	TotalPages   int
	TotalEntries int
	SearchURL    string

	// Metadata is set only when the request asked for histograms.
	Metadata *Metadata

	Err error
}

// OK reports whether the page was fetched successfully.
func (r PageResult) OK() bool {
	return r.Err == nil
}

// Fetcher turns search responses into PageResults.
type Fetcher struct {
	searcher Searcher
	logger   zerolog.Logger
}

// New creates a Fetcher backed by searcher.
func New(searcher Searcher) *Fetcher {
	if searcher == nil {
		panic("searcher cannot be nil")
	}
	return &Fetcher{
		searcher: searcher,
		logger:   logging.NewLogger("fetcher"),
	}
}

// FetchPage issues req and returns the flattened items with pagination
// metadata, or a PageResult whose Err carries an apierr tag.
func (f *Fetcher) FetchPage(ctx context.Context, req query.Request) PageResult {
	page := req.PaginationInput.PageNumber
	result := f.fetch(ctx, req)
	result.Page = page

	if result.Err != nil {
		tag := apierr.TagOf(result.Err)
		pagesTotal.WithLabelValues(string(tag)).Inc()
		f.logger.Debug().
			Err(result.Err).
			Int("page", page).
			Str("error_tag", string(tag)).
			Msg("Page fetch failed")
		return result
	}

	pagesTotal.WithLabelValues("success").Inc()
	f.logger.Debug().
		Int("page", page).
		Int("records", len(result.Records)).
		Int("total_pages", result.TotalPages).
		Msg("Page fetched")
	return result
}

func (f *Fetcher) fetch(ctx context.Context, req query.Request) PageResult {
	resp, err := f.searcher.FindItemsAdvanced(ctx, req)
	if err != nil {
		if apierr.TagOf(err) == "" {
			err = apierr.New(apierr.TagConnection, "", err)
		}
		return PageResult{Err: err}
	}

	ack, _ := resp["ack"].(string)
	if ack != AckSuccess && ack != AckWarning {
		msg := client.ErrorMessage(resp)
		if msg == "" {
			msg = fmt.Sprintf("request failed with ack %q", ack)
		}
		return PageResult{Err: apierr.New(apierr.TagAPI, msg, nil)}
	}

	pagination, _ := resp["paginationOutput"].(map[string]any)
	totalPages := toInt(pagination["totalPages"])
	if totalPages == 0 {
		return PageResult{Err: apierr.New(apierr.TagNoResults, fmt.Sprintf("no results for %q", req.Keywords), nil)}
	}

	var items []any
	if sr, ok := resp["searchResult"].(map[string]any); ok {
		items = asList(sr["item"])
	}

	records, err := flatten.FlattenAll(items)
	if err != nil {
		return PageResult{Err: err}
	}

	result := PageResult{
		Records:      records,
		TotalPages:   totalPages,
		TotalEntries: toInt(pagination["totalEntries"]),
	}
	result.SearchURL, _ = resp["itemSearchURL"].(string)

	if req.IncludesMetadata() {
		result.Metadata = &Metadata{
			Category: parseCategoryHistogram(resp["categoryHistogramContainer"]),
			Aspects:  parseAspectHistogram(resp["aspectHistogramContainer"]),
		}
	}
	return result
}
