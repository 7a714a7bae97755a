package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/steam-topsellers/internal/testutil"
	"github.com/Sternrassler/steam-topsellers/pkg/aggregate"
	"github.com/Sternrassler/steam-topsellers/pkg/cache"
	"github.com/Sternrassler/steam-topsellers/pkg/client"
	"github.com/Sternrassler/steam-topsellers/pkg/pagination"
	"github.com/Sternrassler/steam-topsellers/pkg/sink"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newCachedClient(t *testing.T, baseURL string, redisClient *redis.Client) *client.Client {
	t.Helper()

	c, err := client.New(client.Config{
		BaseURL:   baseURL,
		UserAgent: "steam-topsellers-integration/0.0.1",
		Timeout:   5 * time.Second,
		Cache:     cache.NewManager(redisClient),
		CacheTTL:  time.Minute,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestClient_SecondFetchServedFromCache(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockStore()
	defer mock.Close()

	c := newCachedClient(t, mock.URL(), redisClient)
	ctx := context.Background()

	first, err := c.FetchPage(ctx, 0, 25)
	if err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}

	second, err := c.FetchPage(ctx, 0, 25)
	if err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}

	if mock.GetRequestCount() != 1 {
		t.Errorf("Expected 1 upstream request, got %d", mock.GetRequestCount())
	}
	if len(first) != len(second) || first[0].Name != second[0].Name {
		t.Error("Cached page differs from fetched page")
	}
}

func TestClient_DistinctPagesAreCachedSeparately(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockStore()
	defer mock.Close()

	c := newCachedClient(t, mock.URL(), redisClient)
	ctx := context.Background()

	page0, err := c.FetchPage(ctx, 0, 25)
	if err != nil {
		t.Fatal(err)
	}
	page1, err := c.FetchPage(ctx, 1, 25)
	if err != nil {
		t.Fatal(err)
	}

	if mock.GetRequestCount() != 2 {
		t.Errorf("Expected 2 upstream requests, got %d", mock.GetRequestCount())
	}
	if page0[0].Name == page1[0].Name {
		t.Error("Pages 0 and 1 returned identical content; cache keys likely collide")
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockStore()
	defer mock.Close()

	c := newCachedClient(t, mock.URL(), redisClient)
	ctx := context.Background()

	const totalPages = 3

	fetcher := pagination.NewBatchFetcher(c, pagination.Config{
		Concurrency: 3,
		PageSize:    25,
		Timeout:     5 * time.Second,
	})

	run := func() []client.Item {
		stream, err := fetcher.Run(ctx, totalPages)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		agg := aggregate.New(totalPages)
		for result := range stream {
			if err := agg.Record(result); err != nil {
				t.Fatalf("Record failed: %v", err)
			}
		}

		items, err := agg.Finalize()
		if err != nil {
			t.Fatalf("Finalize failed: %v", err)
		}
		return items
	}

	items := run()
	if len(items) != 75 {
		t.Fatalf("Expected 75 items, got %d", len(items))
	}
	if items[0].Name != "Game 1" || items[74].Name != "Game 75" {
		t.Errorf("Items out of rank order: %q .. %q", items[0].Name, items[74].Name)
	}

	upstreamAfterFirstRun := mock.GetRequestCount()

	// Second run within the TTL is served entirely from Redis.
	rerun := run()
	if mock.GetRequestCount() != upstreamAfterFirstRun {
		t.Errorf("Expected no new upstream requests, got %d extra",
			mock.GetRequestCount()-upstreamAfterFirstRun)
	}
	if len(rerun) != 75 {
		t.Fatalf("Cached rerun returned %d items", len(rerun))
	}

	// Persist and verify the artifact
	outputPath := filepath.Join(t.TempDir(), "search_results.json")
	if err := sink.NewWriter().Write(outputPath, items); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []client.Item
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Decode artifact: %v", err)
	}
	if len(decoded) != 75 {
		t.Errorf("Artifact has %d items, expected 75", len(decoded))
	}
}
