// Package query builds findItemsAdvanced request parameters from a search
// configuration.
package query

import (
	"fmt"
	"strings"
)

// Keyword length limits enforced by the Finding service.
const (
	MinKeywordsLength = 2
	MaxKeywordsLength = 350
)

// Sort orders accepted by findItemsAdvanced.
const (
	SortBestMatch                = "BestMatch"
	SortBidCountFewest           = "BidCountFewest"
	SortBidCountMost             = "BidCountMost"
	SortCountryAscending         = "CountryAscending"
	SortCountryDescending        = "CountryDescending"
	SortCurrentPriceHighest      = "CurrentPriceHighest"
	SortDistanceNearest          = "DistanceNearest"
	SortEndTimeSoonest           = "EndTimeSoonest"
	SortPricePlusShippingHighest = "PricePlusShippingHighest"
	SortPricePlusShippingLowest  = "PricePlusShippingLowest"
	SortStartTimeNewest          = "StartTimeNewest"
	SortWatchCountDecrease       = "WatchCountDecreaseSort"
)

// Listing types accepted by the ListingType item filter.
const (
	ListingAuction        = "Auction"
	ListingAuctionWithBIN = "AuctionWithBIN"
	ListingClassified     = "Classified"
	ListingFixedPrice     = "FixedPrice"
	ListingStoreInventory = "StoreInventory"
	ListingAll            = "All"
)

var validSortOrders = map[string]bool{
	SortBestMatch:                true,
	SortBidCountFewest:           true,
	SortBidCountMost:             true,
	SortCountryAscending:         true,
	SortCountryDescending:        true,
	SortCurrentPriceHighest:      true,
	SortDistanceNearest:          true,
	SortEndTimeSoonest:           true,
	SortPricePlusShippingHighest: true,
	SortPricePlusShippingLowest:  true,
	SortStartTimeNewest:          true,
	SortWatchCountDecrease:       true,
}

var validListingTypes = map[string]bool{
	ListingAuction:        true,
	ListingAuctionWithBIN: true,
	ListingClassified:     true,
	ListingFixedPrice:     true,
	ListingStoreInventory: true,
	ListingAll:            true,
}

// SearchConfig holds the user's search settings. Only Keywords is required.
type SearchConfig struct {
	// Keywords is the search phrase (2-350 characters).
	Keywords string

	// ExcludeWords is a whitespace separated list of words to exclude.
	ExcludeWords string

	// Price bounds. MaxPrice is only sent when greater than MinPrice.
	MinPrice float64
	MaxPrice float64

	// ListingType restricts the listing format; empty means any.
	ListingType string

	// Condition restricts item condition (e.g. "New", "Used", "1000"); empty means any.
	Condition string

	// SortOrder defaults to BestMatch.
	SortOrder string

	// USAOnly restricts results to items located in the US.
	USAOnly bool

	// CategoryID restricts results to one category; empty means all.
	CategoryID string
}

// DefaultSearchConfig returns a configuration for keywords with default settings.
func DefaultSearchConfig(keywords string) SearchConfig {
	return SearchConfig{
		Keywords:  keywords,
		SortOrder: SortBestMatch,
		USAOnly:   true,
	}
}

// Validate checks the configuration against the service's constraints.
func (c SearchConfig) Validate() error {
	n := len([]rune(strings.TrimSpace(c.Keywords)))
	if n < MinKeywordsLength || n > MaxKeywordsLength {
		return fmt.Errorf("keywords must be %d-%d characters (got %d)", MinKeywordsLength, MaxKeywordsLength, n)
	}
	if c.MinPrice < 0 {
		return fmt.Errorf("min_price cannot be negative")
	}
	if c.MaxPrice < 0 {
		return fmt.Errorf("max_price cannot be negative")
	}
	if c.SortOrder != "" && !validSortOrders[c.SortOrder] {
		return fmt.Errorf("unknown sort order %q", c.SortOrder)
	}
	if c.ListingType != "" && !validListingTypes[c.ListingType] {
		return fmt.Errorf("unknown listing type %q", c.ListingType)
	}
	return nil
}

// normalized applies defaults and the bid-count coercion: sorting by bid
// count only makes sense for auctions, so a non-auction listing type is
// replaced by Auction.
func (c SearchConfig) normalized() SearchConfig {
	if c.SortOrder == "" {
		c.SortOrder = SortBestMatch
	}
	if isBidCountSort(c.SortOrder) && !isAuctionType(c.ListingType) {
		c.ListingType = ListingAuction
	}
	return c
}

func isBidCountSort(order string) bool {
	return order == SortBidCountMost || order == SortBidCountFewest
}

func isAuctionType(listingType string) bool {
	return listingType == ListingAuction || listingType == ListingAuctionWithBIN
}
