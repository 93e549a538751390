// Package fetch provides HTTP client construction and request plumbing for
// the extraction strategies: bounded-redirect clients, browser fingerprint
// decoration, and size-limited body reads.
package fetch

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesrussell/socialgrab/internal/domain"
)

// maxResponseBodyBytes limits the size of fetched responses.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

// ErrTooManyRedirects is returned when the redirect hop limit is exceeded.
var ErrTooManyRedirects = errors.New("too many redirects")

// RedirectPolicy returns a CheckRedirect function that follows redirects
// until the number of redirects reaches maxHops, then returns
// ErrTooManyRedirects. When maxHops is <= 0, redirects are not limited
// beyond the default http client behavior (10).
func RedirectPolicy(maxHops int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if maxHops > 0 && len(via) >= maxHops {
			return ErrTooManyRedirects
		}
		return nil
	}
}

// NewClient creates an HTTP client that follows at most maxRedirects hops.
func NewClient(timeout time.Duration, maxRedirects int) *http.Client {
	return &http.Client{
		Timeout:       timeout,
		CheckRedirect: RedirectPolicy(maxRedirects),
	}
}

// NewNoFollowClient creates an HTTP client that never follows redirects.
// Strategies use it when a 3xx itself is the signal (login redirects).
func NewNoFollowClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Decorate applies a browser fingerprint and optional cookie to a request.
// A nil profile leaves the client's defaults in place.
func Decorate(req *http.Request, profile *domain.BrowserProfile, cookie string) {
	if profile != nil {
		req.Header.Set("User-Agent", profile.UserAgent)
		req.Header.Set("Accept-Language", profile.AcceptLanguage)
		if profile.SecChUa != nil && *profile.SecChUa != "" {
			req.Header.Set("Sec-Ch-Ua", *profile.SecChUa)
			req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
			req.Header.Set("Sec-Ch-Ua-Platform", `"Windows"`)
		}
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	}
}

// ReadBody reads a response body up to the size limit and closes it.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}
