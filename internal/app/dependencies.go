// Package app wires the shared infrastructure used by the API, worker and CLI
// entrypoints.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/partquote/internal/batch"
	"github.com/noah-isme/partquote/internal/config"
	"github.com/noah-isme/partquote/internal/health"
	"github.com/noah-isme/partquote/internal/lock"
	"github.com/noah-isme/partquote/internal/quote"
	"github.com/noah-isme/partquote/internal/ratelimit"
	"github.com/noah-isme/partquote/internal/resilience"
	"github.com/noah-isme/partquote/internal/snapshot"
)

// Dependencies enumerates the services shared across entrypoints.
type Dependencies struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Redis      *redis.Client
	Snapshots  *snapshot.Source
	Quotes     *quote.Service
	Batches    *batch.Service
	Limiter    *limiter.Limiter
	TaskClient *asynq.Client
}

// Build constructs the dependencies for the API and worker. Redis is
// optional: without it quotes are not cached, rate limits are kept in
// process and batches are disabled.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Logger: logger}

	source, err := snapshot.NewSource(cfg.PricingSnapshotPath, logger.With().Str("component", "snapshot").Logger())
	if err != nil {
		return nil, fmt.Errorf("load pricing snapshot: %w", err)
	}
	deps.Snapshots = source

	if cfg.RedisEnabled() {
		client, err := NewRedisClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			return nil, err
		}
		deps.Redis = client
	}

	deps.Quotes, err = quote.NewService(quote.ServiceConfig{
		Source: source,
		Cache: quote.NewCache(deps.Redis, cfg.QuoteCacheTTL).
			WithBreaker(resilience.NewBreaker("quote_cache", 5, 0.5, 30*time.Second).WithLogger(logger)),
		Logger: &logger,
	})
	if err != nil {
		return nil, err
	}

	store, err := ratelimit.NewStore(deps.Redis, "partquote:ratelimit:")
	if err != nil {
		return nil, fmt.Errorf("rate limit store: %w", err)
	}
	deps.Limiter, err = ratelimit.New(store, cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("rate limit %q: %w", cfg.RateLimit, err)
	}

	if deps.Redis != nil {
		opt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url for tasks: %w", err)
		}
		deps.TaskClient = asynq.NewClient(opt)
		deps.Batches, err = batch.NewService(batch.ServiceConfig{
			Store:    batch.NewStore(deps.Redis, cfg.BatchResultTTL),
			Queue:    deps.TaskClient,
			Quoter:   deps.Quotes,
			Locker:   lock.Locker{R: deps.Redis, MaxWait: 10 * time.Second},
			MaxItems: cfg.BatchMaxItems,
			Logger:   &logger,
		})
		if err != nil {
			return nil, err
		}
	}
	return deps, nil
}

// Close releases network resources.
func (d *Dependencies) Close() error {
	var firstErr error
	if d.TaskClient != nil {
		if err := d.TaskClient.Close(); err != nil {
			firstErr = err
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SnapshotVersion implements health.Checker.
func (d *Dependencies) SnapshotVersion() (string, error) {
	snap := d.Snapshots.Current()
	if snap == nil {
		return "", fmt.Errorf("no pricing snapshot loaded")
	}
	return snap.Version, nil
}

// PingRedis implements health.Checker.
func (d *Dependencies) PingRedis(ctx context.Context, timeout time.Duration) error {
	if d.Redis == nil {
		return health.ErrDisabled
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.Redis.Ping(ctx).Err()
}

// NewRedisClient parses url, instruments the client for tracing and pings it.
func NewRedisClient(ctx context.Context, url string, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

