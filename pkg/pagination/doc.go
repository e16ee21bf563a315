// Package pagination collects search result pages into a Dataset, either one
// page at a time with a consecutive-failure cutoff or through a bounded
// worker pool.
//
// Sequential runs fetch page 1 with category and aspect histograms, derive
// the number of pages to pull from the reported total (never more than
// MaxPages) and walk the remaining pages in order:
//
//	collector := pagination.NewCollector(fetcher.New(client), builder, pagination.DefaultConfig())
//	ds, err := collector.Collect(ctx, 0)
//
// Concurrent runs spread a page range over a fixed worker pool and reassemble
// the results in page order:
//
//	ds, err := collector.CollectConcurrent(ctx, 20, 5, 1)
//
// Failure handling differs between the modes. Sequential runs return the
// page-1 error, absorb later failures and stop after
// Config.MaxConsecutiveFailures in a row. Concurrent runs drop failed pages.
package pagination
