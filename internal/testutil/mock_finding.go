// Package testutil provides testing utilities for the Finding service client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/ebay-data-client/pkg/query"
)

// MockResponse defines the behavior for one mocked page.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockFinding is a configurable mock Finding service keyed by page number.
type MockFinding struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[int]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	LastHeader   http.Header
	Requests     []query.Request
}

// NewMockFinding creates a new mock Finding server. Pages without a
// configured response answer with zero results.
func NewMockFinding() *MockFinding {
	mock := &MockFinding{
		handlers: make(map[int]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req query.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}

		mock.mu.Lock()
		mock.RequestCount++
		mock.LastHeader = r.Header.Clone()
		mock.Requests = append(mock.Requests, req)
		handler, exists := mock.handlers[req.PaginationInput.PageNumber]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(ItemsBody(req.PaginationInput.PageNumber, 0, 0, nil)))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockFinding) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockFinding) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a page.
func (m *MockFinding) SetHandler(page int, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[page] = handler
}

// SetResponse configures a fixed response for a page.
func (m *MockFinding) SetResponse(page int, resp MockResponse) {
	m.SetHandler(page, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockFinding) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// RequestedPages returns the page numbers in arrival order.
func (m *MockFinding) RequestedPages() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pages := make([]int, len(m.Requests))
	for i, r := range m.Requests {
		pages[i] = r.PaginationInput.PageNumber
	}
	return pages
}

// NewPageResponse creates a 200 response carrying items for a page.
func NewPageResponse(page, totalPages int, items ...map[string]any) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       ItemsBody(page, totalPages, totalPages*len(items), items),
	}
}

// NewFailureResponse creates a 200 response with a Failure acknowledgement.
func NewFailureResponse(message string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       FailureBody(message),
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       FailureBody("Internal server error"),
	}
}

// Item builds a search result item in the service's wire format: every
// field wrapped in an array, prices as {"@currencyId", "__value__"}.
func Item(id, title, price string) map[string]any {
	return map[string]any{
		"itemId": []any{id},
		"title":  []any{title},
		"sellingStatus": []any{map[string]any{
			"currentPrice": []any{map[string]any{"@currencyId": "USD", "__value__": price}},
			"sellingState": []any{"Active"},
		}},
		"shippingInfo": []any{map[string]any{
			"shippingServiceCost": []any{map[string]any{"@currencyId": "USD", "__value__": "0.0"}},
			"shippingType":        []any{"Free"},
		}},
		"sellerInfo": []any{map[string]any{
			"sellerUserName": []any{"seller-" + id},
		}},
	}
}

// ItemsBody renders a successful findItemsAdvanced response.
func ItemsBody(page, totalPages, totalEntries int, items []map[string]any) string {
	wireItems := make([]any, len(items))
	for i, it := range items {
		wireItems[i] = it
	}

	resp := map[string]any{
		"ack":       []any{"Success"},
		"version":   []any{"1.13.0"},
		"timestamp": []any{"2026-10-19T12:00:00.000Z"},
		"searchResult": []any{map[string]any{
			"@count": strconv.Itoa(len(items)),
			"item":   wireItems,
		}},
		"paginationOutput": []any{map[string]any{
			"pageNumber":     []any{strconv.Itoa(page)},
			"entriesPerPage": []any{"100"},
			"totalPages":     []any{strconv.Itoa(totalPages)},
			"totalEntries":   []any{strconv.Itoa(totalEntries)},
		}},
		"itemSearchURL": []any{fmt.Sprintf("https://www.ebay.com/sch/i.html?_pgn=%d", page)},
	}
	return render(resp)
}

// ItemsBodyWithHistograms renders a page-1 response carrying category and
// aspect histograms.
func ItemsBodyWithHistograms(totalPages int, items []map[string]any) string {
	var raw map[string]any
	json.Unmarshal([]byte(ItemsBody(1, totalPages, totalPages*len(items), items)), &raw)
	inner := raw["findItemsAdvancedResponse"].([]any)[0].(map[string]any)

	inner["categoryHistogramContainer"] = []any{map[string]any{
		"categoryHistogram": []any{
			map[string]any{
				"categoryId":   []any{"625"},
				"categoryName": []any{"Cameras & Photo"},
				"count":        []any{"120"},
				"childCategoryHistogram": []any{
					map[string]any{"categoryId": []any{"15230"}, "categoryName": []any{"Film Cameras"}, "count": []any{"80"}},
					map[string]any{"categoryId": []any{"3323"}, "categoryName": []any{"Lenses"}, "count": []any{"40"}},
				},
			},
			map[string]any{
				"categoryId":   []any{"293"},
				"categoryName": []any{"Consumer Electronics"},
				"count":        []any{"15"},
			},
		},
	}}
	inner["aspectHistogramContainer"] = []any{map[string]any{
		"aspect": []any{
			map[string]any{
				"@name": "Brand",
				"valueHistogram": []any{
					map[string]any{"@valueName": "Canon", "count": []any{"50"}},
					map[string]any{"@valueName": "Nikon", "count": []any{"30"}},
				},
			},
		},
	}}
	return render(raw)
}

// FailureBody renders a Failure acknowledgement with one error message.
func FailureBody(message string) string {
	return render(map[string]any{
		"ack": []any{"Failure"},
		"errorMessage": []any{map[string]any{
			"error": []any{map[string]any{
				"errorId":  []any{"11002"},
				"domain":   []any{"Security"},
				"severity": []any{"Error"},
				"message":  []any{message},
			}},
		}},
	})
}

func render(resp map[string]any) string {
	if _, wrapped := resp["findItemsAdvancedResponse"]; !wrapped {
		resp = map[string]any{"findItemsAdvancedResponse": []any{resp}}
	}
	data, err := json.Marshal(resp)
	if err != nil {
		panic(err)
	}
	return string(data)
}
