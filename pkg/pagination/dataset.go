package pagination

import (
	"sort"

	"github.com/Sternrassler/ebay-data-client/pkg/fetcher"
	"github.com/Sternrassler/ebay-data-client/pkg/flatten"
)

// Dataset is the result of one collection run. It is owned by the caller.
type Dataset struct {
	Records []flatten.Record

	PagesRequested int
	PagesFetched   int
	TotalPages     int
	TotalEntries   int
	SearchURL      string

	// Set by sequential runs from the page-1 histograms.
	Category *fetcher.CategorySummary
	Aspects  fetcher.AspectSummary

	// StoppedEarly reports a sequential run cut short by consecutive failures.
	StoppedEarly bool
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Columns returns the sorted union of record keys. Records are maps, so
// the order keys were first seen in is not available.
func (d *Dataset) Columns() []string {
	seen := make(map[string]struct{})
	for _, r := range d.Records {
		for k := range r {
			seen[k] = struct{}{}
		}
	}

	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Rows returns one row per record with values aligned to Columns. A record
// without a column yields nil in that cell.
func (d *Dataset) Rows() [][]any {
	cols := d.Columns()
	rows := make([][]any, len(d.Records))
	for i, r := range d.Records {
		row := make([]any, len(cols))
		for j, col := range cols {
			row[j] = r[col]
		}
		rows[i] = row
	}
	return rows
}
