package platforms

import (
	"context"
	"net/url"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/scraperr"
)

func testConfig() config.Interface {
	return config.NewWith(viper.New())
}

func TestRunChainStopsOnSuccess(t *testing.T) {
	t.Parallel()

	second := false
	data, _, err := runChain(context.Background(), logger.NewNoOp(), []attempt{
		{name: "first", run: func(context.Context) (*domain.ExtractionData, *scraperr.Error) {
			return &domain.ExtractionData{Formats: []domain.MediaFormat{{URL: "https://a"}}}, nil
		}},
		{name: "second", run: func(context.Context) (*domain.ExtractionData, *scraperr.Error) {
			second = true
			return nil, scraperr.New(scraperr.CodeAPIError)
		}},
	})

	require.Nil(t, err)
	require.Len(t, data.Formats, 1)
	assert.False(t, second)
}

func TestRunChainSoftFailureTriesNext(t *testing.T) {
	t.Parallel()

	data, _, err := runChain(context.Background(), logger.NewNoOp(), []attempt{
		{name: "first", run: func(context.Context) (*domain.ExtractionData, *scraperr.Error) {
			return nil, scraperr.New(scraperr.CodeAPIError)
		}},
		{name: "second", run: func(context.Context) (*domain.ExtractionData, *scraperr.Error) {
			return &domain.ExtractionData{Formats: []domain.MediaFormat{{URL: "https://b"}}}, nil
		}},
	})

	require.Nil(t, err)
	assert.Equal(t, "https://b", data.Formats[0].URL)
}

func TestRunChainHardFailureStops(t *testing.T) {
	t.Parallel()

	second := false
	_, cookieTried, err := runChain(context.Background(), logger.NewNoOp(), []attempt{
		{name: "first", run: func(context.Context) (*domain.ExtractionData, *scraperr.Error) {
			return nil, scraperr.New(scraperr.CodePrivateContent)
		}},
		{name: "second", usesCookie: true, run: func(context.Context) (*domain.ExtractionData, *scraperr.Error) {
			second = true
			return nil, nil
		}},
	})

	require.NotNil(t, err)
	assert.Equal(t, scraperr.CodePrivateContent, err.Code)
	assert.False(t, second)
	assert.False(t, cookieTried)
}

func TestRunChainEmptySuccessCountsAsSoftFailure(t *testing.T) {
	t.Parallel()

	data, _, err := runChain(context.Background(), logger.NewNoOp(), []attempt{
		{name: "first", run: func(context.Context) (*domain.ExtractionData, *scraperr.Error) {
			return &domain.ExtractionData{}, nil
		}},
		{name: "second", run: func(context.Context) (*domain.ExtractionData, *scraperr.Error) {
			return &domain.ExtractionData{Formats: []domain.MediaFormat{{URL: "https://c"}}}, nil
		}},
	})

	require.Nil(t, err)
	assert.Equal(t, "https://c", data.Formats[0].URL)
}

func TestRunChainAllSoftFailuresReturnsLastError(t *testing.T) {
	t.Parallel()

	_, cookieTried, err := runChain(context.Background(), logger.NewNoOp(), []attempt{
		{name: "first", run: func(context.Context) (*domain.ExtractionData, *scraperr.Error) {
			return nil, scraperr.New(scraperr.CodeNetworkError)
		}},
		{name: "second", usesCookie: true, run: func(context.Context) (*domain.ExtractionData, *scraperr.Error) {
			return nil, scraperr.New(scraperr.CodeAPIError)
		}},
	})

	require.NotNil(t, err)
	assert.Equal(t, scraperr.CodeAPIError, err.Code)
	assert.True(t, cookieTried)
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   scraperr.Code
	}{
		{200, ""},
		{204, ""},
		{404, scraperr.CodeNotFound},
		{410, scraperr.CodeNotFound},
		{403, scraperr.CodeBlocked},
		{429, scraperr.CodeRateLimited},
		{451, scraperr.CodeGeoBlocked},
		{500, scraperr.CodeAPIError},
	}
	for _, tt := range tests {
		err := classifyStatus(tt.status)
		if tt.want == "" {
			assert.Nil(t, err, "status %d", tt.status)
			continue
		}
		require.NotNil(t, err, "status %d", tt.status)
		assert.Equal(t, tt.want, err.Code, "status %d", tt.status)
	}
}

func TestClassifyFinalURL(t *testing.T) {
	t.Parallel()

	cfg := testConfig().GetPlatformConfig(domain.PlatformFacebook)

	login, _ := url.Parse("https://www.facebook.com/login.php?next=abc")
	err := classifyFinalURL(login, cfg)
	require.NotNil(t, err)
	assert.Equal(t, scraperr.CodeCookieExpired, err.Code)

	checkpoint, _ := url.Parse("https://www.facebook.com/checkpoint/1501092823525282/")
	err = classifyFinalURL(checkpoint, cfg)
	require.NotNil(t, err)
	assert.Equal(t, scraperr.CodeCheckpointRequired, err.Code)

	clean, _ := url.Parse("https://www.facebook.com/watch?v=123")
	assert.Nil(t, classifyFinalURL(clean, cfg))
}

func TestDecodeLooseWeakTyping(t *testing.T) {
	t.Parallel()

	var out struct {
		ID    string `json:"id"`
		Count int64  `json:"count"`
	}
	err := decodeLoose(map[string]any{"id": 12345, "count": "67"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "12345", out.ID)
	assert.Equal(t, int64(67), out.Count)
}
