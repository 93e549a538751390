// Package platforms implements the per-platform extraction strategies. Each
// strategy runs an ordered chain of distinct fetch+parse attempts against
// platform-internal endpoints, consuming a leased cookie and browser profile,
// and produces a normalized result or a typed error. Ordinary negative
// outcomes (private/missing/login-required) are first-class result values;
// only transport faults are caught at the boundary and downgraded.
package platforms

import (
	"context"
	"net/url"
	"strings"

	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/scraperr"
)

// Options carries the per-request inputs a strategy consumes.
type Options struct {
	// Cookie is a decrypted cookie string leased from the pool, or empty.
	Cookie string
	// Profile is the leased browser fingerprint, or nil for client defaults.
	Profile *domain.BrowserProfile
	// ContentType and ContentID come from the URL pipeline.
	ContentType string
	ContentID   string
}

// Strategy is one platform's extraction implementation.
type Strategy interface {
	Platform() string
	Extract(ctx context.Context, resolvedURL string, opts Options) *domain.ExtractionResult
}

// attempt is one step of a fallback chain.
type attempt struct {
	name string
	run  func(ctx context.Context) (*domain.ExtractionData, *scraperr.Error)
	// soft overrides the default soft-fail classification for this attempt.
	soft func(code scraperr.Code) bool
	// usesCookie marks attempts that transmit the leased cookie.
	usesCookie bool
}

// defaultSoft marks the codes where trying the next attempt can plausibly
// succeed. Hard outcomes (private, removed, cookie problems) stop the chain.
func defaultSoft(code scraperr.Code) bool {
	switch code {
	case scraperr.CodeAPIError, scraperr.CodeNetworkError, scraperr.CodeTimeout,
		scraperr.CodeParseError, scraperr.CodeNoMedia:
		return true
	default:
		return false
	}
}

// runChain tries attempts in order: success stops, a soft failure moves on,
// a hard failure stops with that error. When every attempt soft-fails, the
// last error is returned. The second return reports whether a cookie-bearing
// attempt actually executed before the chain ended; a hard stop on an
// earlier rung leaves the cookie untransmitted.
func runChain(ctx context.Context, log logger.Interface, attempts []attempt) (*domain.ExtractionData, bool, *scraperr.Error) {
	var lastErr *scraperr.Error
	cookieTried := false

	for _, a := range attempts {
		if a.usesCookie {
			cookieTried = true
		}

		data, err := a.run(ctx)
		if err == nil {
			if data == nil || len(data.Formats) == 0 {
				lastErr = scraperr.New(scraperr.CodeNoMedia)
				log.Debug("attempt produced no media", "attempt", a.name)
				continue
			}
			return data, cookieTried, nil
		}

		soft := a.soft
		if soft == nil {
			soft = defaultSoft
		}
		if !soft(err.Code) {
			return nil, cookieTried, err
		}

		log.Debug("attempt failed, trying next", "attempt", a.name, "code", err.Code)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = scraperr.New(scraperr.CodeNoMedia)
	}
	return nil, cookieTried, lastErr
}

// resultFromData wraps a successful payload, enforcing the at-least-one-
// format invariant.
func resultFromData(data *domain.ExtractionData) *domain.ExtractionResult {
	if data == nil || len(data.Formats) == 0 {
		return resultFromError(scraperr.New(scraperr.CodeNoMedia))
	}
	return &domain.ExtractionResult{Success: true, Data: data}
}

// resultFromError wraps a typed error into the result contract.
func resultFromError(se *scraperr.Error) *domain.ExtractionResult {
	return &domain.ExtractionResult{
		Success:   false,
		Error:     se.Message,
		ErrorCode: string(se.Code),
	}
}

// chainError wraps a chain failure, carrying whether a cookie-bearing
// attempt executed before the chain ended.
func chainError(se *scraperr.Error, cookieTried bool) *domain.ExtractionResult {
	res := resultFromError(se)
	res.CookieAttempted = cookieTried
	return res
}

// classifyFinalURL inspects the post-redirect URL for login and checkpoint
// destinations. Platforms redirect there instead of returning error bodies,
// so this runs before any parsing.
func classifyFinalURL(finalURL *url.URL, cfg *config.PlatformConfig) *scraperr.Error {
	target := strings.ToLower(finalURL.Path + "?" + finalURL.RawQuery)

	for _, marker := range cfg.CheckpointMarkers {
		if strings.Contains(target, strings.ToLower(marker)) {
			return scraperr.New(scraperr.CodeCheckpointRequired)
		}
	}
	for _, marker := range cfg.LoginMarkers {
		if strings.Contains(target, strings.ToLower(marker)) {
			return scraperr.New(scraperr.CodeCookieExpired)
		}
	}
	return nil
}

// classifyBody scans a response body for platform failure markers. The
// marker lists are configuration: platform response text drifts and the
// matching rules must stay tunable.
func classifyBody(body []byte, cfg *config.PlatformConfig) *scraperr.Error {
	lower := strings.ToLower(string(body))

	for _, marker := range cfg.CheckpointMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return scraperr.New(scraperr.CodeCheckpointRequired)
		}
	}
	for _, marker := range cfg.AgeMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return scraperr.New(scraperr.CodeAgeRestricted)
		}
	}
	for _, marker := range cfg.PrivateMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return scraperr.New(scraperr.CodePrivateContent)
		}
	}
	for _, marker := range cfg.LoginMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return scraperr.New(scraperr.CodeCookieExpired)
		}
	}
	return nil
}

// classifyStatus maps HTTP status classes to taxonomy codes, or nil for 2xx.
func classifyStatus(statusCode int) *scraperr.Error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == 404 || statusCode == 410:
		return scraperr.New(scraperr.CodeNotFound)
	case statusCode == 403:
		return scraperr.New(scraperr.CodeBlocked)
	case statusCode == 429:
		return scraperr.New(scraperr.CodeRateLimited)
	case statusCode == 451:
		return scraperr.New(scraperr.CodeGeoBlocked)
	default:
		return scraperr.Newf(scraperr.CodeAPIError, "unexpected status %d", statusCode)
	}
}
