package details

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/steam-topsellers/pkg/client"
)

// fakeDetailsClient returns a canned payload per appid.
type fakeDetailsClient struct {
	mu      sync.Mutex
	calls   map[int64]int
	failFor map[int64]bool
}

func newFakeDetailsClient(failFor map[int64]bool) *fakeDetailsClient {
	return &fakeDetailsClient{
		calls:   make(map[int64]int),
		failFor: failFor,
	}
}

func (f *fakeDetailsClient) FetchAppDetails(ctx context.Context, appID int64) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls[appID]++
	f.mu.Unlock()

	if f.failFor[appID] {
		return nil, &client.FetchError{Kind: client.ErrorKindTransport, Message: "unreachable"}
	}
	return json.RawMessage(fmt.Sprintf(`{"appid": %d}`, appID)), nil
}

func itemWithAppID(appID int64) client.Item {
	return client.Item{
		Name: fmt.Sprintf("Game %d", appID),
		Logo: fmt.Sprintf("https://cdn.example/steam/apps/%d/capsule.jpg", appID),
	}
}

func TestFetchAll_ResultsFollowItemOrder(t *testing.T) {
	fake := newFakeDetailsClient(nil)
	fetcher := NewFetcher(fake, Config{Concurrency: 4, Timeout: time.Second})

	items := []client.Item{
		itemWithAppID(30),
		itemWithAppID(10),
		itemWithAppID(20),
	}

	results := fetcher.FetchAll(context.Background(), items)
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	wantOrder := []int64{30, 10, 20}
	for i, want := range wantOrder {
		if results[i].AppID != want {
			t.Errorf("Result %d: expected appid %d, got %d", i, want, results[i].AppID)
		}
		if results[i].Err != nil {
			t.Errorf("Result %d failed: %v", i, results[i].Err)
		}
	}
}

func TestFetchAll_SkipsItemsWithoutAppID(t *testing.T) {
	fake := newFakeDetailsClient(nil)
	fetcher := NewFetcher(fake, Config{Concurrency: 2, Timeout: time.Second})

	items := []client.Item{
		itemWithAppID(100),
		{Name: "No Logo Game", Logo: "https://cdn.example/bundles/7/x.jpg"},
	}

	results := fetcher.FetchAll(context.Background(), items)
	if results[0].Err != nil {
		t.Errorf("First item should succeed, got %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Error("Item without extractable appid should carry an error")
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.calls) != 1 {
		t.Errorf("Expected exactly one details request, got %d", len(fake.calls))
	}
}

func TestFetchAll_FailuresAreBestEffort(t *testing.T) {
	fake := newFakeDetailsClient(map[int64]bool{20: true})
	fetcher := NewFetcher(fake, Config{Concurrency: 3, Timeout: time.Second})

	items := []client.Item{
		itemWithAppID(10),
		itemWithAppID(20),
		itemWithAppID(30),
	}

	results := fetcher.FetchAll(context.Background(), items)
	docs := Documents(results)

	if len(docs) != 2 {
		t.Fatalf("Expected 2 successful documents, got %d", len(docs))
	}

	// Order preserved with the failed item omitted
	var first, second struct {
		AppID int64 `json:"appid"`
	}
	if err := json.Unmarshal(docs[0], &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(docs[1], &second); err != nil {
		t.Fatal(err)
	}
	if first.AppID != 10 || second.AppID != 30 {
		t.Errorf("Expected appids 10 and 30, got %d and %d", first.AppID, second.AppID)
	}
}

func TestFetchAll_EmptyInput(t *testing.T) {
	fetcher := NewFetcher(newFakeDetailsClient(nil), DefaultConfig())

	results := fetcher.FetchAll(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}
