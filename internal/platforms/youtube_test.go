package platforms

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/scraperr"
)

func newTestYouTube(run commandRunner) *YouTube {
	s := NewYouTube(testConfig(), logger.NewNoOp())
	s.run = run
	return s
}

const ytdlpSuccess = `{
	"success": true,
	"data": {
		"id": "dQw4w9WgXcQ",
		"title": "A video",
		"author": "Some Channel",
		"thumbnail": "https://cdn.example/thumb.jpg",
		"view_count": 1000000,
		"like_count": 50000,
		"formats": [
			{"format_id": "22", "quality": "720p", "ext": "mp4", "url": "https://cdn.example/720.mp4", "type": "video", "filesize": 1048576},
			{"format_id": "140", "quality": "128kbps", "ext": "m4a", "url": "https://cdn.example/audio.m4a", "type": "audio"},
			{"format_id": "broken", "quality": "0p", "ext": "mp4", "url": "", "type": "video"}
		]
	}
}`

func TestYouTubeMapsHelperOutput(t *testing.T) {
	t.Parallel()

	var gotArgs []string
	s := newTestYouTube(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte(ytdlpSuccess), nil
	})

	result := s.Extract(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", Options{
		ContentType: domain.ContentTypeVideo,
		ContentID:   "dQw4w9WgXcQ",
	})

	require.True(t, result.Success)
	require.Len(t, gotArgs, 3)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", gotArgs[2])

	require.Len(t, result.Data.Formats, 2, "formats without a URL are dropped")
	assert.Equal(t, "720p", result.Data.Formats[0].Quality)
	assert.Equal(t, "22", result.Data.Formats[0].ItemID)
	assert.Equal(t, int64(1048576), result.Data.Formats[0].Filesize)
	assert.Equal(t, domain.FormatTypeAudio, result.Data.Formats[1].Type)
	assert.Equal(t, "A video", result.Data.Title)
	assert.Equal(t, int64(1000000), result.Data.Engagement.Views)
}

func TestYouTubeErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  string
		want scraperr.Code
	}{
		{"private", "ERROR: Private video. Sign in if you've been granted access", scraperr.CodePrivateContent},
		{"age", "ERROR: Sign in to confirm your age", scraperr.CodeAgeRestricted},
		{"removed", "ERROR: This video has been removed by the uploader", scraperr.CodeContentRemoved},
		{"geo", "ERROR: The uploader has not made this video available in your country", scraperr.CodeGeoBlocked},
		{"unavailable", "ERROR: Video unavailable", scraperr.CodeNotFound},
		{"other", "ERROR: Unable to extract player response", scraperr.CodeAPIError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestYouTube(func(context.Context, string, ...string) ([]byte, error) {
				return []byte(`{"success": false, "error": ` + strconv.Quote(tt.msg) + `}`), errors.New("exit status 1")
			})
			result := s.Extract(context.Background(), "https://youtu.be/x", Options{})

			require.False(t, result.Success)
			assert.Equal(t, string(tt.want), result.ErrorCode)
			assert.Equal(t, tt.msg, result.Error)
		})
	}
}

func TestYouTubeHelperGarbageOutput(t *testing.T) {
	t.Parallel()

	s := newTestYouTube(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Traceback (most recent call last):"), errors.New("exit status 1")
	})
	result := s.Extract(context.Background(), "https://youtu.be/x", Options{})

	require.False(t, result.Success)
	assert.Equal(t, string(scraperr.CodeAPIError), result.ErrorCode)
}

func TestYouTubeNoFormats(t *testing.T) {
	t.Parallel()

	s := newTestYouTube(func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"success": true, "data": {"title": "livestream", "formats": []}}`), nil
	})
	result := s.Extract(context.Background(), "https://youtu.be/x", Options{})

	require.False(t, result.Success)
	assert.Equal(t, string(scraperr.CodeNoMedia), result.ErrorCode)
}
