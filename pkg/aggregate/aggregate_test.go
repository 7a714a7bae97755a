package aggregate

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/steam-topsellers/pkg/client"
	"github.com/Sternrassler/steam-topsellers/pkg/pagination"
)

// page builds a successful result whose items encode index and rank.
func page(index, size int) pagination.PageResult {
	items := make([]client.Item, 0, size)
	for i := 0; i < size; i++ {
		items = append(items, client.Item{Name: fmt.Sprintf("Game %d", index*size+i+1)})
	}
	return pagination.PageResult{Index: index, Items: items}
}

func failure(index int, kind client.ErrorKind) pagination.PageResult {
	return pagination.PageResult{
		Index: index,
		Err:   &client.FetchError{Kind: kind, Message: "boom"},
	}
}

func TestRecord_RejectsDuplicatesAndOutOfRange(t *testing.T) {
	agg := New(3)

	require.NoError(t, agg.Record(page(0, 2)))
	require.NoError(t, agg.Record(page(2, 2)))

	assert.Error(t, agg.Record(page(0, 2)), "duplicate index must be rejected")
	assert.Error(t, agg.Record(page(3, 2)), "index >= totalPages must be rejected")
	assert.Error(t, agg.Record(page(-1, 2)), "negative index must be rejected")

	assert.False(t, agg.IsComplete())
	require.NoError(t, agg.Record(page(1, 2)))
	assert.True(t, agg.IsComplete())
}

func TestFinalize_OrdersByIndexNotCompletion(t *testing.T) {
	agg := New(4)

	// Record in scrambled completion order
	for _, index := range []int{2, 0, 3, 1} {
		require.NoError(t, agg.Record(page(index, 3)))
	}

	items, err := agg.Finalize()
	require.NoError(t, err)
	require.Len(t, items, 12)

	for i, item := range items {
		assert.Equal(t, fmt.Sprintf("Game %d", i+1), item.Name)
	}
}

func TestFinalize_BeforeCompletionFails(t *testing.T) {
	agg := New(2)
	require.NoError(t, agg.Record(page(0, 1)))

	_, err := agg.Finalize()
	assert.Error(t, err)
}

func TestFinalize_StrictNamesExactlyTheFailedIndices(t *testing.T) {
	agg := New(5)

	require.NoError(t, agg.Record(page(0, 1)))
	require.NoError(t, agg.Record(failure(3, client.ErrorKindTransport)))
	require.NoError(t, agg.Record(page(2, 1)))
	require.NoError(t, agg.Record(failure(1, client.ErrorKindSchema)))
	require.NoError(t, agg.Record(page(4, 1)))

	items, err := agg.Finalize()
	assert.Nil(t, items, "strict mode must not emit a document")

	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, []int{1, 3}, aggErr.FailedIndices)
	assert.Contains(t, aggErr.Error(), "page 1")
	assert.Contains(t, aggErr.Error(), "page 3")

	var fetchErr *client.FetchError
	require.ErrorAs(t, aggErr.Causes[3], &fetchErr)
	assert.Equal(t, client.ErrorKindTransport, fetchErr.Kind)
}

func TestFinalize_BestEffortEmitsSuccessfulSubset(t *testing.T) {
	agg := New(3, WithBestEffort())

	require.NoError(t, agg.Record(page(0, 2)))
	require.NoError(t, agg.Record(failure(1, client.ErrorKindTransport)))
	require.NoError(t, agg.Record(page(2, 2)))

	items, err := agg.Finalize()
	require.NoError(t, err)
	require.Len(t, items, 4)

	// Pages 0 and 2 only, still in index order
	assert.Equal(t, "Game 1", items[0].Name)
	assert.Equal(t, "Game 2", items[1].Name)
	assert.Equal(t, "Game 5", items[2].Name)
	assert.Equal(t, "Game 6", items[3].Name)

	failures := agg.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
}

// Example scenario from the worked examples: two pages of 25 arriving in
// either order yield ranks 1..50.
func TestFinalize_TwoPageExample(t *testing.T) {
	for _, order := range [][]int{{0, 1}, {1, 0}} {
		agg := New(2)
		for _, index := range order {
			require.NoError(t, agg.Record(page(index, 25)))
		}

		items, err := agg.Finalize()
		require.NoError(t, err)
		require.Len(t, items, 50)
		assert.Equal(t, "Game 1", items[0].Name)
		assert.Equal(t, "Game 26", items[25].Name)
		assert.Equal(t, "Game 50", items[49].Name)
	}
}

func TestRecord_ConcurrentStress(t *testing.T) {
	const (
		totalPages  = 50
		repetitions = 100
	)

	for rep := 0; rep < repetitions; rep++ {
		agg := New(totalPages)

		indices := rand.Perm(totalPages)
		var wg sync.WaitGroup
		errs := make(chan error, totalPages)

		for _, index := range indices {
			wg.Add(1)
			go func(index int) {
				defer wg.Done()
				errs <- agg.Record(page(index, 1))
			}(index)
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Fatalf("rep %d: unexpected record error: %v", rep, err)
			}
		}

		if !agg.IsComplete() {
			t.Fatalf("rep %d: lost entries under concurrent record", rep)
		}
		items, err := agg.Finalize()
		if err != nil {
			t.Fatalf("rep %d: finalize failed: %v", rep, err)
		}
		if len(items) != totalPages {
			t.Fatalf("rep %d: expected %d items, got %d", rep, totalPages, len(items))
		}
	}
}

func TestRecord_ConcurrentDuplicatesRejectedExactlyOnce(t *testing.T) {
	const totalPages = 10

	agg := New(totalPages)

	// Two goroutines per index race to record; exactly one must win.
	var wg sync.WaitGroup
	var mu sync.Mutex
	rejected := 0

	for index := 0; index < totalPages; index++ {
		for g := 0; g < 2; g++ {
			wg.Add(1)
			go func(index int) {
				defer wg.Done()
				if err := agg.Record(page(index, 1)); err != nil {
					mu.Lock()
					rejected++
					mu.Unlock()
				}
			}(index)
		}
	}
	wg.Wait()

	assert.Equal(t, totalPages, rejected, "one record per index must be rejected")
	assert.True(t, agg.IsComplete())
}

func TestAggregationError_IsError(t *testing.T) {
	err := error(&AggregationError{
		FailedIndices: []int{2},
		Causes:        map[int]error{2: errors.New("timeout")},
	})
	assert.Contains(t, err.Error(), "1 page(s) failed")
	assert.Contains(t, err.Error(), "timeout")
}
