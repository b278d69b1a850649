package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/partquote/internal/common"
	"github.com/noah-isme/partquote/internal/pricing"
	"github.com/noah-isme/partquote/internal/resilience"
)

const cacheKeyPrefix = "partquote:quote:"

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *resilience.Breaker
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// WithBreaker short-circuits cache calls while Redis keeps failing.
func (c *Cache) WithBreaker(b *resilience.Breaker) *Cache {
	if c != nil {
		c.breaker = b
	}
	return c
}

// Enabled reports whether the cache is backed by Redis.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.Enabled() || key == "" {
		return false, nil
	}
	var data []byte
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	})
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.Enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.client.Set(ctx, key, data, c.ttl).Err()
	})
}

// CacheKey derives the cache key of a normalised specification priced
// against a snapshot version.
func CacheKey(in pricing.SpecInput, snapshotVersion string) string {
	tolerance := "-"
	if in.ToleranceMM != nil {
		tolerance = fmt.Sprintf("%g", *in.ToleranceMM)
	}
	return cacheKeyPrefix + common.HashFields(
		snapshotVersion,
		in.Material,
		in.Process,
		fmt.Sprintf("%g", in.LengthMM),
		fmt.Sprintf("%g", in.WidthMM),
		fmt.Sprintf("%g", in.HeightMM),
		fmt.Sprintf("%g", in.ComplexityScore),
		fmt.Sprintf("%d", in.Quantity),
		in.CustomerTier,
		fmt.Sprintf("%d", in.ShippingZone),
		fmt.Sprintf("%t", in.RushOrder),
		strings.Join(in.SpecialRequirements, "|"),
		tolerance,
	)
}
