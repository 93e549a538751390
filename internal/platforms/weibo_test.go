package platforms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/scraperr"
)

func newTestWeibo(srv *httptest.Server) *Weibo {
	s := NewWeibo(testConfig(), logger.NewNoOp())
	s.statusURL = srv.URL + "/statuses/show?id=%s"
	return s
}

func TestWeiboWithoutCookieMakesNoRequest(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	s := newTestWeibo(srv)
	result := s.Extract(context.Background(), "https://weibo.com/1234567890/NaBcDeF", Options{
		ContentID: "1234567890:NaBcDeF",
	})

	require.False(t, result.Success)
	assert.Equal(t, string(scraperr.CodeCookieRequired), result.ErrorCode)
	assert.Equal(t, int32(0), calls.Load())
}

func TestWeiboVideoStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "NaBcDeF", r.URL.Query().Get("id"), "composite IDs reduce to the status member")
		require.NotEmpty(t, r.Header.Get("Cookie"))
		w.Write([]byte(`{"ok": 1, "data": {
			"id": "4800000000000000",
			"text": "some <a href=\"/n/tag\">tagged</a> text",
			"created_at": "Wed Nov 15 10:00:00 +0800 2023",
			"user": {"screen_name": "某用户"},
			"page_info": {
				"type": "video",
				"media_info": {
					"stream_url": "https://cdn.example/sd.mp4",
					"stream_url_hd": "https://cdn.example/hd.mp4"
				},
				"page_pic": {"url": "https://cdn.example/cover.jpg"}
			},
			"attitudes_count": 11, "comments_count": 2, "reposts_count": 1
		}}`))
	}))
	defer srv.Close()

	s := newTestWeibo(srv)
	result := s.Extract(context.Background(), "https://weibo.com/1234567890/NaBcDeF", Options{
		Cookie:    "SUB=abc",
		ContentID: "1234567890:NaBcDeF",
	})

	require.True(t, result.Success)
	require.Len(t, result.Data.Formats, 2)
	assert.Equal(t, "hd", result.Data.Formats[0].Quality)
	assert.Equal(t, "https://cdn.example/hd.mp4", result.Data.Formats[0].URL)
	assert.Equal(t, "some tagged text", result.Data.Title)
	assert.Equal(t, "某用户", result.Data.Author)
	assert.True(t, result.Data.UsedCookie)
	require.NotNil(t, result.Data.PostedAt)
}

func TestWeiboPicsStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": 1, "data": {
			"id": "4800000000000001",
			"text": "photos",
			"user": {"screen_name": "someuser"},
			"pics": [
				{"pid": "p1", "url": "https://cdn.example/small1.jpg", "large": {"url": "https://cdn.example/large1.jpg"}},
				{"pid": "p2", "url": "https://cdn.example/small2.jpg"}
			]
		}}`))
	}))
	defer srv.Close()

	s := newTestWeibo(srv)
	result := s.Extract(context.Background(), "https://m.weibo.cn/detail/4800000000000001", Options{
		Cookie:    "SUB=abc",
		ContentID: "4800000000000001",
	})

	require.True(t, result.Success)
	require.Len(t, result.Data.Formats, 2)
	assert.Equal(t, "https://cdn.example/large1.jpg", result.Data.Formats[0].URL, "prefers the large rendition")
	assert.Equal(t, "https://cdn.example/small2.jpg", result.Data.Formats[1].URL)
	assert.Equal(t, "p1", result.Data.Formats[0].ItemID)
}

func TestWeiboLoginRedirectIsExpiredCookie(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			w.Write([]byte(`<html>login page</html>`))
			return
		}
		http.Redirect(w, r, "/login?backURL=x", http.StatusFound)
	}))
	defer srv.Close()

	s := newTestWeibo(srv)
	result := s.Extract(context.Background(), "https://m.weibo.cn/detail/4800000000000002", Options{
		Cookie:    "SUB=stale",
		ContentID: "4800000000000002",
	})

	require.False(t, result.Success)
	assert.Equal(t, string(scraperr.CodeCookieExpired), result.ErrorCode)
}

func TestWeiboGoneStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": 0, "msg": "", "data": null}`))
	}))
	defer srv.Close()

	s := newTestWeibo(srv)
	result := s.Extract(context.Background(), "https://m.weibo.cn/detail/4800000000000003", Options{
		Cookie:    "SUB=abc",
		ContentID: "4800000000000003",
	})

	require.False(t, result.Success)
	assert.Equal(t, string(scraperr.CodeNotFound), result.ErrorCode)
}
