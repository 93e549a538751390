package urlpipe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/scraperr"
	"github.com/jonesrussell/socialgrab/internal/urlpipe"
)

// fakeResolver returns a canned final URL without any network.
type fakeResolver struct {
	finalURL string
	chain    []string
	called   int
}

func (f *fakeResolver) Resolve(_ context.Context, _, _ string) (string, []string, error) {
	f.called++
	return f.finalURL, f.chain, nil
}

func newPipeline(resolver urlpipe.URLResolver) *urlpipe.Pipeline {
	return urlpipe.New(resolver, logger.NewNoOp())
}

func TestRunSync_InvalidURL(t *testing.T) {
	t.Parallel()

	tests := []string{"", "not a url", "ftp://example.com/x", "https://nodots"}
	for _, input := range tests {
		input := input
		t.Run(input, func(t *testing.T) {
			t.Parallel()

			_, err := newPipeline(nil).RunSync(input)
			require.Error(t, err)
			se := scraperr.AsError(err)
			require.NotNil(t, se)
			assert.Equal(t, scraperr.CodeInvalidURL, se.Code)
		})
	}
}

func TestRunSync_UnsupportedPlatform(t *testing.T) {
	t.Parallel()

	_, err := newPipeline(nil).RunSync("https://example.com/video/123")
	require.Error(t, err)
	se := scraperr.AsError(err)
	require.NotNil(t, se)
	assert.Equal(t, scraperr.CodeUnsupportedPlatform, se.Code)
}

func TestRunSync_EquivalentSpellingsShareCacheKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    string
		b    string
	}{
		{
			"tracking params stripped",
			"https://www.instagram.com/p/Cxyz123/?igshid=abc&utm_source=share",
			"https://www.instagram.com/p/Cxyz123/",
		},
		{
			"mobile vs desktop facebook",
			"https://m.facebook.com/watch?v=1234567890",
			"https://www.facebook.com/watch?v=1234567890",
		},
		{
			"x.com vs twitter.com",
			"https://x.com/someone/status/17771777?s=20&t=track",
			"https://twitter.com/someone/status/17771777",
		},
		{
			"youtu.be vs watch url",
			"https://youtu.be/dQw4w9WgXcQ?si=share123",
			"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := newPipeline(nil)
			ra, err := p.RunSync(tt.a)
			require.NoError(t, err)
			rb, err := p.RunSync(tt.b)
			require.NoError(t, err)

			assert.Equal(t, ra.CacheKey, rb.CacheKey)
			assert.Equal(t, ra.Platform, rb.Platform)
		})
	}
}

func TestRun_TikTokShortLinkResolution(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{
		finalURL: "https://www.tiktok.com/@user/video/6900000000000000000",
		chain:    []string{"https://www.tiktok.com/@user/video/6900000000000000000"},
	}

	result, err := newPipeline(resolver).Run(context.Background(), "https://vm.tiktok.com/ABC123")
	require.NoError(t, err)

	assert.Equal(t, 1, resolver.called)
	assert.True(t, result.WasResolved)
	assert.Equal(t, domain.PlatformTikTok, result.Platform)
	assert.Equal(t, "6900000000000000000", result.ContentID)
	assert.Equal(t, "tiktok:6900000000000000000", result.CacheKey)
	assert.Equal(t, domain.ContentTypeVideo, result.ContentType)
	assert.Len(t, result.RedirectChain, 1)
}

func TestRun_CanonicalURLSkipsResolution(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{finalURL: "https://unused.example.com"}
	result, err := newPipeline(resolver).Run(
		context.Background(),
		"https://www.tiktok.com/@user/video/7000000000000000001",
	)
	require.NoError(t, err)

	assert.Zero(t, resolver.called)
	assert.False(t, result.WasResolved)
	assert.Equal(t, "tiktok:7000000000000000001", result.CacheKey)
}

func TestRun_CrossPlatformRedirect(t *testing.T) {
	t.Parallel()

	// A t.co shortener landing on TikTok must re-detect the platform.
	resolver := &fakeResolver{
		finalURL: "https://www.tiktok.com/@user/video/6911111111111111111",
	}
	result, err := newPipeline(resolver).Run(context.Background(), "https://t.co/xYz987")
	require.NoError(t, err)

	assert.Equal(t, domain.PlatformTikTok, result.Platform)
	assert.Equal(t, "tiktok:6911111111111111111", result.CacheKey)
}

func TestContentIDExtraction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		platform string
		id       string
		ctype    string
	}{
		{"instagram post", "https://www.instagram.com/p/Cxyz123/", domain.PlatformInstagram, "Cxyz123", domain.ContentTypePost},
		{"instagram reel", "https://www.instagram.com/reel/Cab_42-x/", domain.PlatformInstagram, "Cab_42-x", domain.ContentTypeReel},
		{"instagram story", "https://www.instagram.com/stories/someuser/3141592653589/", domain.PlatformInstagram, "someuser:3141592653589", domain.ContentTypeStory},
		{"facebook watch", "https://www.facebook.com/watch?v=1122334455", domain.PlatformFacebook, "1122334455", domain.ContentTypeVideo},
		{"facebook reel", "https://www.facebook.com/reel/998877", domain.PlatformFacebook, "998877", domain.ContentTypeReel},
		{"facebook story.php composite", "https://www.facebook.com/story.php?story_fbid=555&id=777", domain.PlatformFacebook, "777:555", domain.ContentTypePost},
		{"facebook group post", "https://www.facebook.com/groups/4242/posts/2424/", domain.PlatformFacebook, "4242:2424", domain.ContentTypePost},
		{"twitter status", "https://twitter.com/someone/status/17771777", domain.PlatformTwitter, "17771777", domain.ContentTypePost},
		{"weibo user post", "https://weibo.com/1234567890/NaBcDeF", domain.PlatformWeibo, "1234567890:NaBcDeF", domain.ContentTypePost},
		{"weibo mobile status", "https://m.weibo.cn/status/4800000000000000", domain.PlatformWeibo, "4800000000000000", domain.ContentTypePost},
		{"youtube shorts", "https://www.youtube.com/shorts/Abc123Def45", domain.PlatformYouTube, "Abc123Def45", domain.ContentTypeVideo},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := newPipeline(nil).RunSync(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.platform, result.Platform)
			assert.Equal(t, tt.id, result.ContentID)
			assert.Equal(t, tt.ctype, result.ContentType)
		})
	}
}

func TestContentIDMissingIsNonFatal(t *testing.T) {
	t.Parallel()

	result, err := newPipeline(nil).RunSync("https://www.facebook.com/some.profile.page")
	require.NoError(t, err)

	assert.Empty(t, result.ContentID)
	// Falls back to the hashed-URL cache key.
	assert.Contains(t, result.CacheKey, "facebook:")
	assert.NotEqual(t, "facebook:", result.CacheKey)
}

func TestMayRequireCookie(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		required bool
	}{
		{"https://www.instagram.com/stories/someuser/31415/", true},
		{"https://www.facebook.com/groups/4242/posts/2424/", true},
		{"https://weibo.com/1234567890/NaBcDeF", true},
		{"https://www.instagram.com/p/Cxyz123/", false},
		{"https://www.tiktok.com/@user/video/690000", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			result, err := newPipeline(nil).RunSync(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.required, result.MayRequireCookie)
		})
	}
}

func TestStableHashIsStable(t *testing.T) {
	t.Parallel()

	a := urlpipe.StableHash("https://www.facebook.com/x")
	b := urlpipe.StableHash("https://www.facebook.com/x")
	c := urlpipe.StableHash("https://www.facebook.com/y")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}
