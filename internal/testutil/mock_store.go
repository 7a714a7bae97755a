// Package testutil provides testing utilities for the top-sellers fetcher.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock storefront response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockStore is a configurable mock storefront server for testing.
type MockStore struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	LastQuery    map[string]string
}

// NewMockStore creates a new mock storefront server.
func NewMockStore() *MockStore {
	mock := &MockStore{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastQuery = make(map[string]string)
		for key := range r.URL.Query() {
			mock.LastQuery[key] = r.URL.Query().Get(key)
		}
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockStore) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockStore) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockStore) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockStore) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockStore) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// defaultHandler serves a search payload derived from the request's start
// and count parameters, so unconfigured tests get consistent paged data.
func (m *MockStore) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	start, _ := strconv.Atoi(r.URL.Query().Get("start"))
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count <= 0 {
		count = 25
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(SearchPayload(start, count)))
}

// SearchPayload builds a storefront search response of count items whose
// ranks start at start+1. Item names and appids are derived from the rank
// so pages are distinguishable and deterministic.
func SearchPayload(start, count int) string {
	items := make([]map[string]string, 0, count)
	for i := 0; i < count; i++ {
		rank := start + i + 1
		items = append(items, map[string]string{
			"name": fmt.Sprintf("Game %d", rank),
			"logo": LogoURL(int64(1000 + rank)),
		})
	}

	payload := map[string]any{
		"desc":        "",
		"items":       items,
		"total_count": 10000,
		"start":       start,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return string(body)
}

// LogoURL builds a CDN logo URL embedding the given appid.
func LogoURL(appID int64) string {
	return fmt.Sprintf("https://shared.cdn.example/store_item_assets/steam/apps/%d/capsule_sm_120.jpg", appID)
}

// DetailsPayload builds an appdetails response for the given appid.
func DetailsPayload(appID int64) string {
	return fmt.Sprintf(`{"%d": {"success": true, "data": {"steam_appid": %d, "name": "Game"}}}`, appID, appID)
}

// NewSearchResponse creates a 200 OK search response for one page.
func NewSearchResponse(start, count int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       SearchPayload(start, count),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewMalformedResponse creates a 200 OK response with a body that does not
// match the search schema.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"desc": "no items field here"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
