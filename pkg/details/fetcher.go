// Package details fetches per-app detail payloads for the items of a
// top-sellers document.
//
// Each item's appid is derived from its logo URL, then the appdetails
// endpoint is queried with a bounded worker pool. The stage is best-effort
// by design: an item whose details cannot be fetched is logged and omitted,
// it never fails the run. Result order follows item order, not completion
// order.
package details

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Sternrassler/steam-topsellers/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var detailsFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "steam_details_fetched_total",
	Help: "Total app details fetch outcomes by status",
}, []string{"status"}) // "success", "failure", "skipped"

// Config holds details fetcher configuration.
type Config struct {
	// Concurrency is the number of parallel detail fetches.
	Concurrency int

	// Timeout bounds each detail fetch.
	Timeout time.Duration
}

// DefaultConfig returns safe defaults for the appdetails endpoint.
func DefaultConfig() Config {
	return Config{
		Concurrency: 10,
		Timeout:     15 * time.Second,
	}
}

// DetailsFetcher is the interface the storefront client implements for
// single-app detail fetching.
type DetailsFetcher interface {
	FetchAppDetails(ctx context.Context, appID int64) (json.RawMessage, error)
}

// Result is the outcome of one item's detail fetch.
type Result struct {
	Name    string
	AppID   int64
	Details json.RawMessage
	Err     error
}

// Fetcher fetches app details for a list of items.
type Fetcher struct {
	client DetailsFetcher
	config Config
}

// NewFetcher creates a details fetcher.
func NewFetcher(client DetailsFetcher, config Config) *Fetcher {
	if config.Concurrency <= 0 {
		config.Concurrency = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &Fetcher{
		client: client,
		config: config,
	}
}

// FetchAll fetches details for every item, one result per item in item
// order. Workers write to disjoint slice indices, so the pre-sized result
// slice needs no lock.
func (f *Fetcher) FetchAll(ctx context.Context, items []client.Item) []Result {
	results := make([]Result, len(items))

	queue := make(chan int, len(items))
	for i := range items {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	for w := 0; w < f.config.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				results[i] = f.fetchOne(ctx, items[i])
			}
		}()
	}
	wg.Wait()

	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, item client.Item) Result {
	result := Result{Name: item.Name}

	appID, err := client.ExtractAppID(item.Logo)
	if err != nil {
		log.Warn().Err(err).Str("name", item.Name).Msg("Skipping item without appid")
		detailsFetchedTotal.WithLabelValues("skipped").Inc()
		result.Err = err
		return result
	}
	result.AppID = appID

	if err := ctx.Err(); err != nil {
		detailsFetchedTotal.WithLabelValues("failure").Inc()
		result.Err = err
		return result
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	payload, err := f.client.FetchAppDetails(fetchCtx, appID)
	if err != nil {
		log.Warn().Err(err).Str("name", item.Name).Int64("appid", appID).Msg("Details fetch failed")
		detailsFetchedTotal.WithLabelValues("failure").Inc()
		result.Err = err
		return result
	}

	log.Debug().Str("name", item.Name).Int64("appid", appID).Msg("Fetched app details")
	detailsFetchedTotal.WithLabelValues("success").Inc()
	result.Details = payload
	return result
}

// Documents returns the successful detail payloads in item order.
func Documents(results []Result) []json.RawMessage {
	docs := make([]json.RawMessage, 0, len(results))
	for _, result := range results {
		if result.Err == nil {
			docs = append(docs, result.Details)
		}
	}
	return docs
}
