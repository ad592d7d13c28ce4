// Command nvd-connector fetches one page of CVE records from the NVD API and
// writes them to MongoDB, stamped with an ingestion timestamp. It is a
// single-shot batch job intended to run under cron or a scheduler.
package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ssn-data/nvd-etl-connector/pkg/cache"
	"github.com/ssn-data/nvd-etl-connector/pkg/config"
	"github.com/ssn-data/nvd-etl-connector/pkg/fetcher"
	"github.com/ssn-data/nvd-etl-connector/pkg/loader"
	"github.com/ssn-data/nvd-etl-connector/pkg/logging"
	"github.com/ssn-data/nvd-etl-connector/pkg/storage/mongodb"
)

func main() {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		logger := logging.Setup(logging.Config{})
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Setup(logging.Config{Level: cfg.LogLevel})
	ctx := context.Background()

	client, err := mongodb.Connect(ctx, cfg.MongoURI, mongodb.DefaultServerSelectionTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("Cannot connect to MongoDB")
	}
	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			logger.Warn().Err(err).Msg("MongoDB disconnect failed")
		}
	}()

	collection := mongodb.NewCollection(client, cfg.MongoDB, cfg.MongoCollection)

	f, err := fetcher.New(fetcher.Config{
		BaseURL:     cfg.APIURL,
		APIKey:      cfg.APIKey,
		PageSize:    cfg.PageSize,
		MaxAttempts: cfg.MaxAttempts,
		Cache:       newResponseCache(ctx, cfg, logger),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid fetcher configuration")
	}

	logger.Info().Str("url", cfg.APIURL).Msg("Fetching CVEs")
	records, err := f.Fetch(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to fetch CVEs")
	}

	if len(records) == 0 {
		logger.Info().Msg("No CVEs to insert")
		return
	}

	summary := loader.New(collection).Load(ctx, records)
	logger.Info().
		Int("inserted", summary.Inserted).
		Int("total", summary.Total).
		Msg("Ingestion complete")
}

// newResponseCache wires the optional Redis response cache. An unreachable
// Redis degrades to direct fetches instead of failing the run.
func newResponseCache(ctx context.Context, cfg config.Config, logger zerolog.Logger) *cache.Manager {
	if cfg.RedisURL == "" || cfg.CacheTTL <= 0 {
		return nil
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis unreachable, running without response cache")
		return nil
	}

	logger.Info().Dur("ttl", cfg.CacheTTL).Msg("Response cache enabled")
	return cache.NewManager(redisClient, cfg.CacheTTL)
}
