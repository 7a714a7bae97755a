package pagination

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Sternrassler/steam-topsellers/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steam_retries_total",
		Help: "Total number of page retry attempts by error kind",
	}, []string{"kind"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "steam_retry_backoff_seconds",
		Help:    "Backoff duration for page retries by error kind",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"kind"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "steam_retry_exhausted_total",
		Help: "Total number of pages that exhausted retry attempts by error kind",
	}, []string{"kind"})
)

// fetchWithRetry performs one page fetch with exponential backoff retries.
// Only transport-kind failures are retried; a malformed payload will not
// improve on a second attempt. Each attempt gets its own timeout.
func (bf *BatchFetcher) fetchWithRetry(ctx context.Context, req PageRequest) ([]client.Item, error) {
	var lastErr error
	backoff := bf.config.InitialBackoff
	maxAttempts := bf.config.MaxRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		items, err := bf.fetcher.FetchPage(pageCtx, req.Index, req.PageSize)
		cancel()

		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("page", req.Index).
					Int("attempt", attempt).
					Msg("Page fetch succeeded after retry")
			}
			return items, nil
		}

		lastErr = err

		fetchErr, ok := client.AsFetchError(err)
		if !ok || !fetchErr.Retryable() {
			return nil, lastErr
		}

		if attempt >= maxAttempts {
			break
		}

		kind := string(fetchErr.Kind)
		retriesTotal.WithLabelValues(kind).Inc()

		// Jitter of ±20% to avoid lockstep retries across workers
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.WithLabelValues(kind).Observe(jitter.Seconds())

		log.Debug().
			Int("page", req.Index).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying page fetch after backoff")

		select {
		case <-ctx.Done():
			return nil, &client.FetchError{
				Kind:    client.ErrorKindTransport,
				Message: fmt.Sprintf("page %d cancelled during retry backoff", req.Index),
				Err:     ctx.Err(),
			}
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * 2)
		if backoff > bf.config.MaxBackoff {
			backoff = bf.config.MaxBackoff
		}
	}

	if fetchErr, ok := client.AsFetchError(lastErr); ok {
		retryExhaustedTotal.WithLabelValues(string(fetchErr.Kind)).Inc()
	}
	log.Warn().
		Int("page", req.Index).
		Int("max_attempts", maxAttempts).
		Msg("Page retry attempts exhausted")

	return nil, fmt.Errorf("page %d failed after %d attempts: %w", req.Index, maxAttempts, lastErr)
}
