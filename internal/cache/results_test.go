package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/socialgrab/internal/cache"
	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
)

// fakeRedis is an in-memory Client with optional forced failure.
type fakeRedis struct {
	data map[string]string
	ttls map[string]time.Duration
	fail bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.fail {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if f.fail {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	switch v := value.(type) {
	case string:
		f.data[key] = v
	case []byte:
		f.data[key] = string(v)
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func successResult(formats ...domain.MediaFormat) *domain.ExtractionResult {
	return &domain.ExtractionResult{
		Success: true,
		Data: &domain.ExtractionData{
			Title:   "a title",
			Formats: formats,
			URL:     "https://www.tiktok.com/@user/video/6900000000000000000",
			Type:    domain.ContentTypeVideo,
		},
	}
}

func videoFormat() domain.MediaFormat {
	return domain.MediaFormat{
		Quality: "hd",
		Type:    domain.FormatTypeVideo,
		URL:     "https://cdn.example.com/v.mp4",
		Format:  "mp4",
		ItemID:  "6900000000000000000",
	}
}

func newCache(client cache.Client) *cache.ResultCache {
	return cache.NewResultCache(client, config.NewWith(viper.New()), logger.NewNoOp())
}

func TestSetWithAlias_ThenQuickGetShortURLHits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeRedis()
	c := newCache(client)

	pr := &domain.PipelineResult{
		InputURL:      "https://vm.tiktok.com/ABC123",
		NormalizedURL: "https://vm.tiktok.com/ABC123",
		ResolvedURL:   "https://www.tiktok.com/@user/video/6900000000000000000",
		Platform:      domain.PlatformTikTok,
		ContentID:     "6900000000000000000",
		WasResolved:   true,
		CacheKey:      "tiktok:6900000000000000000",
	}

	// Before the write, the short URL misses.
	_, hit := c.QuickGet(ctx, domain.PlatformTikTok, "https://vm.tiktok.com/ABC123")
	assert.False(t, hit)

	require.NoError(t, c.SetWithAlias(ctx, pr, successResult(videoFormat())))

	// After alias backfill the same short URL hits without resolution.
	got, hit := c.QuickGet(ctx, domain.PlatformTikTok, "https://vm.tiktok.com/ABC123")
	require.True(t, hit)
	assert.Equal(t, "a title", got.Data.Title)

	// The canonical URL hits directly through its content ID.
	got, hit = c.QuickGet(ctx, domain.PlatformTikTok,
		"https://www.tiktok.com/@user/video/6900000000000000000")
	require.True(t, hit)
	assert.True(t, got.HasFormats())
}

func TestSetWithAlias_AliasHitsAcrossPlatformDetection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newFakeRedis()
	c := newCache(client)

	// A t.co link quick-detects as twitter but resolves to a TikTok video.
	pr := &domain.PipelineResult{
		InputURL:      "https://t.co/ShortLink1",
		NormalizedURL: "https://t.co/ShortLink1",
		ResolvedURL:   "https://www.tiktok.com/@user/video/6900000000000000000",
		Platform:      domain.PlatformTikTok,
		ContentID:     "6900000000000000000",
		WasResolved:   true,
		CacheKey:      "tiktok:6900000000000000000",
	}
	require.NoError(t, c.SetWithAlias(ctx, pr, successResult(videoFormat())))

	// QuickGet runs before resolution, so it only knows the shortener's
	// apparent platform. The alias must hit regardless.
	got, hit := c.QuickGet(ctx, domain.PlatformTwitter, "https://t.co/ShortLink1")
	require.True(t, hit)
	assert.Equal(t, "a title", got.Data.Title)
}

func TestSetWithAlias_NoAliasForCanonicalInput(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	c := newCache(client)

	pr := &domain.PipelineResult{
		InputURL:      "https://www.tiktok.com/@user/video/777",
		NormalizedURL: "https://www.tiktok.com/@user/video/777",
		ResolvedURL:   "https://www.tiktok.com/@user/video/777",
		Platform:      domain.PlatformTikTok,
		ContentID:     "777",
		WasResolved:   false,
		CacheKey:      "tiktok:777",
	}
	require.NoError(t, c.SetWithAlias(context.Background(), pr, successResult(videoFormat())))

	for key := range client.data {
		assert.NotContains(t, key, "alias:")
	}
}

func TestSetWithAlias_NeverCachesFailures(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	c := newCache(client)

	pr := &domain.PipelineResult{Platform: domain.PlatformTikTok, CacheKey: "tiktok:1"}
	failure := &domain.ExtractionResult{Success: false, ErrorCode: "NOT_FOUND"}

	require.NoError(t, c.SetWithAlias(context.Background(), pr, failure))
	assert.Empty(t, client.data)
}

func TestSetWithAlias_RejectsEmptySuccess(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	c := newCache(client)

	pr := &domain.PipelineResult{Platform: domain.PlatformTikTok, CacheKey: "tiktok:1"}
	empty := successResult() // success with no formats

	assert.Error(t, c.SetWithAlias(context.Background(), pr, empty))
	assert.Empty(t, client.data)
}

func TestGet_ZeroFormatEntryIsInvalid(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	c := newCache(client)

	// A malformed entry written by some earlier bug.
	bad, err := json.Marshal(&domain.ExtractionResult{
		Success: true,
		Data:    &domain.ExtractionData{Title: "empty"},
	})
	require.NoError(t, err)
	client.data["result:tiktok:9"] = string(bad)

	_, hit := c.Get(context.Background(), "tiktok:9")
	assert.False(t, hit)
}

func TestGet_BackendFailureIsMiss(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	client.fail = true
	c := newCache(client)

	_, hit := c.Get(context.Background(), "tiktok:9")
	assert.False(t, hit)
}

func TestSetWithAlias_UsesPlatformTTL(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	c := newCache(client)

	pr := &domain.PipelineResult{
		NormalizedURL: "https://www.tiktok.com/@user/video/5",
		ResolvedURL:   "https://www.tiktok.com/@user/video/5",
		Platform:      domain.PlatformTikTok,
		ContentID:     "5",
		CacheKey:      "tiktok:5",
	}
	require.NoError(t, c.SetWithAlias(context.Background(), pr, successResult(videoFormat())))

	assert.Equal(t, 7*24*time.Hour, client.ttls["result:tiktok:5"])
}
