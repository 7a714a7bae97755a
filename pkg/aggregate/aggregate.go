// Package aggregate merges per-page fetch results into one ordered document.
//
// Workers complete in arbitrary order; Record is the single synchronization
// point where their results meet. Finalize imposes the only ordering that
// matters: ascending page index, which defines display rank.
package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Sternrassler/steam-topsellers/pkg/client"
	"github.com/Sternrassler/steam-topsellers/pkg/pagination"
	"github.com/rs/zerolog/log"
)

// AggregationError reports which pages permanently failed.
type AggregationError struct {
	FailedIndices []int // sorted ascending
	Causes        map[int]error
}

// Error implements the error interface.
func (e *AggregationError) Error() string {
	parts := make([]string, 0, len(e.FailedIndices))
	for _, index := range e.FailedIndices {
		parts = append(parts, fmt.Sprintf("page %d: %v", index, e.Causes[index]))
	}
	return fmt.Sprintf("%d page(s) failed: %s", len(e.FailedIndices), strings.Join(parts, "; "))
}

// PageFailure names one permanently failed page.
type PageFailure struct {
	Index int
	Err   error
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithBestEffort makes Finalize emit the successful subset instead of
// failing the run when some pages failed. The caller is expected to inspect
// Failures and report a partial-failure status.
func WithBestEffort() Option {
	return func(a *Aggregator) {
		a.bestEffort = true
	}
}

// Aggregator accumulates page results. Safe for concurrent Record calls.
type Aggregator struct {
	mu         sync.Mutex
	totalPages int
	bestEffort bool
	results    map[int]pagination.PageResult
}

// New creates an aggregator expecting one result per index in [0, totalPages).
func New(totalPages int, opts ...Option) *Aggregator {
	a := &Aggregator{
		totalPages: totalPages,
		results:    make(map[int]pagination.PageResult, totalPages),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record stores one page result. A duplicate index or an index outside
// [0, totalPages) violates the at-most-once invariant and fails fast.
func (a *Aggregator) Record(result pagination.PageResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if result.Index < 0 || result.Index >= a.totalPages {
		return fmt.Errorf("page index %d out of range [0, %d)", result.Index, a.totalPages)
	}
	if _, exists := a.results[result.Index]; exists {
		return fmt.Errorf("duplicate result for page index %d", result.Index)
	}

	a.results[result.Index] = result
	return nil
}

// IsComplete reports whether every index in [0, totalPages) has been recorded.
func (a *Aggregator) IsComplete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results) == a.totalPages
}

// Failures returns the permanently failed pages, sorted by index.
func (a *Aggregator) Failures() []PageFailure {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failuresLocked()
}

func (a *Aggregator) failuresLocked() []PageFailure {
	failures := make([]PageFailure, 0)
	for index, result := range a.results {
		if result.Err != nil {
			failures = append(failures, PageFailure{Index: index, Err: result.Err})
		}
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Index < failures[j].Index })
	return failures
}

// Finalize flattens the recorded pages into one item list in ascending
// index order. In strict mode (the default) any recorded failure aborts with
// an *AggregationError and no document is produced. In best-effort mode the
// successful subset is returned and Failures exposes what is missing.
func (a *Aggregator) Finalize() ([]client.Item, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.results) != a.totalPages {
		return nil, fmt.Errorf("finalize before completion: %d of %d pages recorded", len(a.results), a.totalPages)
	}

	failures := a.failuresLocked()
	if len(failures) > 0 && !a.bestEffort {
		aggErr := &AggregationError{
			FailedIndices: make([]int, 0, len(failures)),
			Causes:        make(map[int]error, len(failures)),
		}
		for _, failure := range failures {
			aggErr.FailedIndices = append(aggErr.FailedIndices, failure.Index)
			aggErr.Causes[failure.Index] = failure.Err
		}
		return nil, aggErr
	}

	capacity := 0
	for _, result := range a.results {
		capacity += len(result.Items)
	}

	items := make([]client.Item, 0, capacity)
	for index := 0; index < a.totalPages; index++ {
		result := a.results[index]
		if result.Err != nil {
			// best-effort: skip failed page
			continue
		}
		items = append(items, result.Items...)
	}

	if len(failures) > 0 {
		log.Warn().
			Int("failed_pages", len(failures)).
			Int("total_pages", a.totalPages).
			Msg("Emitting partial document (best-effort mode)")
	}

	return items, nil
}
