package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Resolver resolves short/redirecting URLs to their final destination with a
// bounded hop count, recording the redirect chain. It never downloads page
// bodies: HEAD first, falling back to a body-discarding GET for hosts that
// reject HEAD. Safe for concurrent use; each call builds its own client so
// chain capture carries no cross-request state.
type Resolver struct {
	timeout time.Duration
	maxHops int
}

// NewResolver creates a resolver that follows at most maxHops redirects
// within the given timeout.
func NewResolver(timeout time.Duration, maxHops int) *Resolver {
	return &Resolver{timeout: timeout, maxHops: maxHops}
}

// Resolve follows redirects from rawURL and returns the final URL plus the
// chain of intermediate URLs (excluding the input, including the final hop).
func (r *Resolver) Resolve(ctx context.Context, rawURL, userAgent string) (string, []string, error) {
	finalURL, chain, err := r.attempt(ctx, http.MethodHead, rawURL, userAgent)
	if err == nil {
		return finalURL, chain, nil
	}

	// Some shortener hosts reject HEAD outright; retry once with GET and
	// discard the body.
	finalURL, chain, getErr := r.attempt(ctx, http.MethodGet, rawURL, userAgent)
	if getErr != nil {
		return "", nil, fmt.Errorf("resolve %s: %w", rawURL, getErr)
	}
	return finalURL, chain, nil
}

// attempt issues one request and returns the post-redirect URL and chain.
func (r *Resolver) attempt(ctx context.Context, method, rawURL, userAgent string) (string, []string, error) {
	var chain []string

	client := &http.Client{
		Timeout: r.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if r.maxHops > 0 && len(via) >= r.maxHops {
				return ErrTooManyRedirects
			}
			chain = append(chain, req.URL.String())
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, http.NoBody)
	if err != nil {
		return "", nil, fmt.Errorf("build request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", nil, err
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed && method == http.MethodHead {
		return "", nil, fmt.Errorf("head not allowed (%d)", resp.StatusCode)
	}

	return resp.Request.URL.String(), chain, nil
}
