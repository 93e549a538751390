// Package cache implements the content-identity-keyed result cache with
// short-URL alias backfill, backed by Redis. A cache backend failure is
// never fatal: reads degrade to a miss and the request proceeds to a live
// scrape.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/urlpipe"
)

// Redis key prefixes.
const (
	resultKeyPrefix = "result:"
	aliasKeyPrefix  = "alias:"
)

// opTimeout bounds every cache operation so a slow backend cannot stall a
// request beyond adding one short delay.
const opTimeout = 2 * time.Second

// Client is the Redis surface the cache needs; *redis.Client satisfies it
// and tests substitute a fake returning redis.NewStringResult values.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// ResultCache maps canonical content identities to serialized extraction
// results, with alias keys letting short URLs hit without re-resolving.
type ResultCache struct {
	client Client
	cfg    config.Interface
	log    logger.Interface
}

// NewResultCache creates a result cache.
func NewResultCache(client Client, cfg config.Interface, log logger.Interface) *ResultCache {
	return &ResultCache{client: client, cfg: cfg, log: log}
}

// QuickGet attempts a lookup from the raw URL without resolving redirects:
// by extracted content ID when the URL shape carries one, otherwise through
// a previously backfilled alias. Returns the result and whether it hit.
func (c *ResultCache) QuickGet(ctx context.Context, platform, rawURL string) (*domain.ExtractionResult, bool) {
	normalized, err := urlpipe.Normalize(rawURL)
	if err != nil {
		return nil, false
	}

	if contentID := urlpipe.ExtractContentID(platform, normalized); contentID != "" {
		return c.Get(ctx, urlpipe.CacheKey(platform, contentID, ""))
	}

	canonicalKey, ok := c.lookupAlias(ctx, normalized.String())
	if !ok {
		return nil, false
	}
	return c.Get(ctx, canonicalKey)
}

// Get looks up a serialized result by its canonical cache key. A hit with
// zero formats is treated as invalid and reported as a miss, forcing a live
// re-scrape over trusting a malformed entry.
func (c *ResultCache) Get(ctx context.Context, cacheKey string) (*domain.ExtractionResult, bool) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := c.client.Get(opCtx, resultKeyPrefix+cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("cache read failed, treating as miss", "key", cacheKey, "error", err)
		return nil, false
	}

	var result domain.ExtractionResult
	if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr != nil {
		c.log.Warn("cache entry unreadable, treating as miss", "key", cacheKey, "error", unmarshalErr)
		return nil, false
	}

	if !result.HasFormats() {
		c.log.Warn("cached entry has no formats, forcing re-scrape", "key", cacheKey)
		return nil, false
	}
	return &result, true
}

// SetWithAlias writes the canonical entry and, when the input URL was a
// resolved short form, backfills an alias from the input to the canonical
// key so future QuickGet calls on the same short URL hit without resolving.
// Unsuccessful results are never cached.
func (c *ResultCache) SetWithAlias(ctx context.Context, pr *domain.PipelineResult, result *domain.ExtractionResult) error {
	if result == nil || !result.Success {
		return nil
	}
	if !result.HasFormats() {
		return fmt.Errorf("refusing to cache success with no formats: %s", pr.CacheKey)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	ttl := c.cfg.GetPlatformConfig(pr.Platform).CacheTTL

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if setErr := c.client.Set(opCtx, resultKeyPrefix+pr.CacheKey, data, ttl).Err(); setErr != nil {
		return fmt.Errorf("write cache entry: %w", setErr)
	}

	if pr.WasResolved && pr.NormalizedURL != pr.ResolvedURL {
		aliasKey := aliasKeyFor(pr.NormalizedURL)
		if aliasErr := c.client.Set(opCtx, aliasKey, pr.CacheKey, ttl).Err(); aliasErr != nil {
			// Alias backfill is an optimization; losing it costs one
			// future resolution, not correctness.
			c.log.Warn("alias backfill failed", "key", aliasKey, "error", aliasErr)
		}
	}
	return nil
}

// lookupAlias resolves a non-canonical URL to its canonical cache key.
func (c *ResultCache) lookupAlias(ctx context.Context, normalizedURL string) (string, bool) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key, err := c.client.Get(opCtx, aliasKeyFor(normalizedURL)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		c.log.Warn("alias read failed, treating as miss", "error", err)
		return "", false
	}
	return key, key != ""
}

// aliasKeyFor builds the alias key for a normalized input URL. The key
// deliberately carries no platform component: a shortener domain often
// quick-detects as a different platform than the resolved target, and the
// alias must still hit.
func aliasKeyFor(normalizedURL string) string {
	return aliasKeyPrefix + urlpipe.StableHash(normalizedURL)
}
