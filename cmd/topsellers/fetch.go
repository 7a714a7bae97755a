package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sternrassler/steam-topsellers/internal/config"
	"github.com/Sternrassler/steam-topsellers/pkg/aggregate"
	"github.com/Sternrassler/steam-topsellers/pkg/cache"
	"github.com/Sternrassler/steam-topsellers/pkg/client"
	"github.com/Sternrassler/steam-topsellers/pkg/details"
	"github.com/Sternrassler/steam-topsellers/pkg/logging"
	"github.com/Sternrassler/steam-topsellers/pkg/pagination"
	"github.com/Sternrassler/steam-topsellers/pkg/sink"
)

// newFetchCmd creates the fetch command.
func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the top sellers listing and write the output document.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(cfgFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runFetch(cmd.Context(), cfg)
		},
	}

	cmd.Flags().Int("pages", 0, "number of pages to fetch")
	cmd.Flags().Int("concurrency", 0, "number of parallel page fetch workers")
	cmd.Flags().String("output", "", "output file path")
	cmd.Flags().Bool("allow-partial", false, "write the successful subset when some pages fail (exit 2)")
	cmd.Flags().Bool("details", false, "also fetch per-app details and write those instead")

	_ = viper.BindPFlag("fetch.total_pages", cmd.Flags().Lookup("pages"))
	_ = viper.BindPFlag("fetch.concurrency", cmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("output.path", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("fetch.allow_partial", cmd.Flags().Lookup("allow-partial"))
	_ = viper.BindPFlag("details.enabled", cmd.Flags().Lookup("details"))

	return cmd
}

// runFetch executes the fetch pipeline: pool -> aggregator -> sink.
func runFetch(parent context.Context, cfg config.Config) error {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional Redis page cache. A missing Redis never fails the run; pages
	// are fetched directly.
	var pageCache *cache.Manager
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, caching disabled")
		} else {
			pageCache = cache.NewManager(redisClient)
			logger.Info().Str("addr", cfg.RedisAddr).Msg("Page cache enabled")
		}
	}

	storeClient, err := client.New(client.Config{
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		Cache:     pageCache,
		CacheTTL:  cfg.CacheTTL,
	})
	if err != nil {
		return fmt.Errorf("create storefront client: %w", err)
	}

	fetcher := pagination.NewBatchFetcher(storeClient, pagination.Config{
		Concurrency:    cfg.Concurrency,
		PageSize:       cfg.PageSize,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: 1 * time.Second,
	})

	start := time.Now()
	results, err := fetcher.Run(ctx, cfg.TotalPages)
	if err != nil {
		return fmt.Errorf("start page fetch: %w", err)
	}

	opts := []aggregate.Option{}
	if cfg.AllowPartial {
		opts = append(opts, aggregate.WithBestEffort())
	}
	agg := aggregate.New(cfg.TotalPages, opts...)

	for result := range results {
		if err := agg.Record(result); err != nil {
			// Duplicate or out-of-range index: invariant violation, not a
			// recoverable fetch failure.
			return fmt.Errorf("record page result: %w", err)
		}
	}

	items, err := agg.Finalize()
	if err != nil {
		logger.Error().Err(err).Msg("Aggregation failed, no output written")
		return err
	}

	logger.Info().
		Int("items", len(items)).
		Int("pages", cfg.TotalPages).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	writer := sink.NewWriter()
	if cfg.FetchDetails {
		detailsFetcher := details.NewFetcher(storeClient, details.Config{
			Concurrency: cfg.DetailsConcurrency,
			Timeout:     cfg.Timeout,
		})
		detailResults := detailsFetcher.FetchAll(ctx, items)
		docs := details.Documents(detailResults)
		logger.Info().
			Int("fetched", len(docs)).
			Int("items", len(items)).
			Msg("Details stage complete")
		if err := writer.Write(cfg.OutputPath, docs); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	} else {
		if err := writer.Write(cfg.OutputPath, items); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}

	if failures := agg.Failures(); len(failures) > 0 {
		for _, failure := range failures {
			logger.Warn().Int("page", failure.Index).Err(failure.Err).Msg("Page missing from output")
		}
		return fmt.Errorf("%w: %d of %d pages missing", errPartialFailure, len(failures), cfg.TotalPages)
	}

	return nil
}
