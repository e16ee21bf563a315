package query

import (
	"strconv"
	"strings"
)

// EntriesPerPage is the fixed page size requested from the service.
const EntriesPerPage = 100

// Output selectors.
const (
	SelectorSellerInfo        = "SellerInfo"
	SelectorStoreInfo         = "StoreInfo"
	SelectorCategoryHistogram = "CategoryHistogram"
	SelectorAspectHistogram   = "AspectHistogram"
)

// Item filter names.
const (
	FilterMinPrice    = "MinPrice"
	FilterMaxPrice    = "MaxPrice"
	FilterListingType = "ListingType"
	FilterCondition   = "Condition"
	FilterLocatedIn   = "LocatedIn"
)

// FilterEntry is one named search constraint.
type FilterEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ItemFilter is the ordered list of constraints sent with every request.
type ItemFilter []FilterEntry

// Get returns the value of the named filter and whether it is present.
func (f ItemFilter) Get(name string) (string, bool) {
	for _, e := range f {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// Pagination selects one page of results.
type Pagination struct {
	PageNumber     int `json:"pageNumber"`
	EntriesPerPage int `json:"entriesPerPage"`
}

// Request is the parameter set of one findItemsAdvanced call.
type Request struct {
	Keywords        string     `json:"keywords"`
	PaginationInput Pagination `json:"paginationInput"`
	ItemFilter      ItemFilter `json:"itemFilter"`
	SortOrder       string     `json:"sortOrder"`
	OutputSelector  []string   `json:"outputSelector"`
	CategoryID      string     `json:"categoryId,omitempty"`
}

// IncludesMetadata reports whether the request asks for histogram data.
func (r Request) IncludesMetadata() bool {
	for _, s := range r.OutputSelector {
		if s == SelectorCategoryHistogram || s == SelectorAspectHistogram {
			return true
		}
	}
	return false
}

// Builder derives requests from a validated, normalized SearchConfig. It is
// read-only after construction and safe for concurrent use.
type Builder struct {
	config    SearchConfig
	filter    ItemFilter
	fullQuery string
}

// NewBuilder validates cfg and derives its item filter once.
func NewBuilder(cfg SearchConfig) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg = cfg.normalized()
	return &Builder{
		config:    cfg,
		filter:    BuildFilter(cfg),
		fullQuery: FullQuery(cfg.Keywords, cfg.ExcludeWords),
	}, nil
}

// Config returns the normalized configuration the builder was created with.
func (b *Builder) Config() SearchConfig {
	return b.config
}

// Filter returns a copy of the derived item filter.
func (b *Builder) Filter() ItemFilter {
	out := make(ItemFilter, len(b.filter))
	copy(out, b.filter)
	return out
}

// Request builds the parameters for one page.
func (b *Builder) Request(page int, includeMetadata bool) Request {
	selectors := []string{SelectorSellerInfo, SelectorStoreInfo}
	if includeMetadata {
		selectors = append(selectors, SelectorCategoryHistogram, SelectorAspectHistogram)
	}

	return Request{
		Keywords: b.fullQuery,
		PaginationInput: Pagination{
			PageNumber:     page,
			EntriesPerPage: EntriesPerPage,
		},
		ItemFilter:     b.Filter(),
		SortOrder:      b.config.SortOrder,
		OutputSelector: selectors,
		CategoryID:     b.config.CategoryID,
	}
}

// BuildFilter derives the item filter for cfg. The bid-count coercion is
// applied first, so the ListingType entry reflects it.
func BuildFilter(cfg SearchConfig) ItemFilter {
	cfg = cfg.normalized()

	filter := ItemFilter{{Name: FilterMinPrice, Value: formatPrice(cfg.MinPrice)}}
	if cfg.MaxPrice > cfg.MinPrice {
		filter = append(filter, FilterEntry{Name: FilterMaxPrice, Value: formatPrice(cfg.MaxPrice)})
	}
	if cfg.ListingType != "" {
		filter = append(filter, FilterEntry{Name: FilterListingType, Value: cfg.ListingType})
	}
	if cfg.Condition != "" {
		filter = append(filter, FilterEntry{Name: FilterCondition, Value: cfg.Condition})
	}
	if cfg.USAOnly {
		filter = append(filter, FilterEntry{Name: FilterLocatedIn, Value: "US"})
	}
	return filter
}

// FullQuery combines keywords with an exclusion clause. Excluded words are
// only applied when the trimmed list is longer than two characters; they are
// grouped as -(w1,w2,...), which the service reads as "none of".
func FullQuery(keywords, exclude string) string {
	exclude = strings.TrimSpace(exclude)
	if len(exclude) <= 2 {
		return keywords
	}
	return keywords + " -(" + strings.Join(strings.Fields(exclude), ",") + ")"
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
