package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/steam-topsellers/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for the page fetch pool.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steam_pages_fetched_total",
		Help: "Total page fetch outcomes by status",
	}, []string{"status"}) // "success", "failure"
)

// Config holds batch fetcher configuration.
type Config struct {
	// Concurrency is the fixed number of workers. Must be positive.
	Concurrency int

	// PageSize is the number of items per page (storefront contract: 25).
	PageSize int

	// Timeout bounds each page fetch attempt.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after a transport
	// failure. Schema failures are never retried.
	MaxRetries int

	// InitialBackoff is the first retry delay; it doubles per attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration
}

// DefaultConfig returns safe defaults for the storefront.
func DefaultConfig() Config {
	return Config{
		Concurrency:    4,
		PageSize:       25,
		Timeout:        15 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     10 * time.Second,
	}
}

// PageFetcher is the interface the storefront client implements for
// single-page fetching.
type PageFetcher interface {
	FetchPage(ctx context.Context, index, pageSize int) ([]client.Item, error)
}

// PageRequest is the immutable dispatch value for one page.
type PageRequest struct {
	Index    int
	PageSize int
}

// PageResult is the outcome of fetching a single page. Err is nil on
// success; failures produced by the pool itself carry a *client.FetchError
// in their chain.
type PageResult struct {
	Index int
	Items []client.Item
	Err   error
}

// BatchFetcher handles parallel fetching of a fixed set of pages.
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if config.PageSize <= 0 {
		config.PageSize = 25
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = 1 * time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 10 * time.Second
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// Run fetches pages 0..totalPages-1 in parallel and streams results in
// completion order. The channel closes only after every index has produced
// exactly one PageResult. Concurrency must be positive; zero workers is a
// configuration error, not an empty run.
func (bf *BatchFetcher) Run(ctx context.Context, totalPages int) (<-chan PageResult, error) {
	if totalPages < 0 {
		return nil, fmt.Errorf("total pages must be non-negative (got %d)", totalPages)
	}
	if bf.config.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive (got %d)", bf.config.Concurrency)
	}

	log.Info().
		Int("total_pages", totalPages).
		Int("concurrency", bf.config.Concurrency).
		Int("page_size", bf.config.PageSize).
		Msg("Starting parallel page fetch")

	// The queue is the sole claim point: a receive is an atomic claim.
	queue := make(chan PageRequest, totalPages)
	for index := 0; index < totalPages; index++ {
		queue <- PageRequest{Index: index, PageSize: bf.config.PageSize}
	}
	close(queue)

	// Buffered to totalPages so workers never block on emission and the
	// stream drains fully even if the consumer falls behind.
	results := make(chan PageResult, totalPages)

	var wg sync.WaitGroup
	for i := 0; i < bf.config.Concurrency; i++ {
		wg.Add(1)
		go bf.worker(ctx, queue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results, nil
}

// FetchAll runs the pool and collects the full result set.
func (bf *BatchFetcher) FetchAll(ctx context.Context, totalPages int) ([]PageResult, error) {
	start := time.Now()

	stream, err := bf.Run(ctx, totalPages)
	if err != nil {
		return nil, err
	}

	collected := make([]PageResult, 0, totalPages)
	failed := 0
	for result := range stream {
		if result.Err != nil {
			failed++
		}
		collected = append(collected, result)
	}

	log.Info().
		Int("pages", len(collected)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return collected, nil
}

// worker claims requests from the queue until it is empty. Every claimed
// index emits exactly one result. After cancellation the remaining queue is
// drained into Failures so no index is left unresolved.
func (bf *BatchFetcher) worker(ctx context.Context, queue <-chan PageRequest, results chan<- PageResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for req := range queue {
		if err := ctx.Err(); err != nil {
			results <- PageResult{Index: req.Index, Err: &client.FetchError{
				Kind:    client.ErrorKindTransport,
				Message: "run cancelled before page was fetched",
				Err:     err,
			}}
			pagesFetchedTotal.WithLabelValues("failure").Inc()
			continue
		}

		items, err := bf.fetchWithRetry(ctx, req)
		if err != nil {
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Int("page", req.Index).
				Msg("Page fetch failed")
			results <- PageResult{Index: req.Index, Err: err}
			pagesFetchedTotal.WithLabelValues("failure").Inc()
			continue
		}

		results <- PageResult{Index: req.Index, Items: items}
		pagesFetchedTotal.WithLabelValues("success").Inc()
		pagesProcessed++
	}

	if pagesProcessed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
}
