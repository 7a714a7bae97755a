// Package pagination provides parallel batch fetching of storefront search
// pages with a fixed-size worker pool.
//
// The page count is known up front (the tool is a one-shot batch fetch), so
// the pool pre-fills a queue with indices 0..totalPages-1, spawns exactly
// Concurrency workers, and streams one PageResult per index in completion
// order. Emission order is not the merge order; the aggregator re-orders by
// index.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(storeClient, pagination.DefaultConfig())
//	results, err := fetcher.Run(ctx, totalPages)
//	for result := range results {
//		// record result
//	}
//
// The batch fetcher:
//   - Claims each index exactly once (channel receive is the claim)
//   - Applies a per-page timeout, never a global one
//   - Retries transport failures with exponential backoff and jitter
//   - Resolves every index with exactly one result, Failure included,
//     even when the run context is cancelled mid-flight
package pagination
