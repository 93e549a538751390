package urlpipe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"

	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/scraperr"
)

// ErrNotHTTP is returned when the input does not parse as an HTTP(S) URL.
var ErrNotHTTP = errors.New("not an http(s) url")

// hashKeyLength truncates the fallback cache-key hash to a manageable size.
const hashKeyLength = 16

// URLResolver resolves a short/redirecting URL to its final destination.
type URLResolver interface {
	Resolve(ctx context.Context, rawURL, userAgent string) (string, []string, error)
}

// Pipeline turns raw user-supplied URLs into classified, cache-keyed
// pipeline results.
type Pipeline struct {
	resolver URLResolver
	log      logger.Interface
}

// New creates a URL pipeline. The resolver may be nil, in which case Run
// behaves like RunSync (no network resolution).
func New(resolver URLResolver, log logger.Interface) *Pipeline {
	return &Pipeline{resolver: resolver, log: log}
}

// Run executes the full pipeline including short-link resolution. Platform
// detection re-runs on the resolved URL since redirects can cross platforms
// (a shortener resolving into the destination platform).
func (p *Pipeline) Run(ctx context.Context, rawURL string) (*domain.PipelineResult, error) {
	normalized, platform, err := p.prepare(rawURL)
	if err != nil {
		return nil, err
	}

	result := &domain.PipelineResult{
		InputURL:      rawURL,
		NormalizedURL: normalized.String(),
		Platform:      platform,
	}

	resolved := normalized
	if p.resolver != nil && IsShortForm(platform, normalized) {
		finalURL, chain, resolveErr := p.resolver.Resolve(ctx, normalized.String(), "")
		if resolveErr != nil {
			return nil, scraperr.FromTransport(resolveErr)
		}

		parsed, reErr := Normalize(finalURL)
		if reErr != nil {
			return nil, scraperr.Wrap(scraperr.CodeInvalidURL, reErr)
		}

		resolved = parsed
		result.WasResolved = true
		result.RedirectChain = chain

		if redetected := Detect(resolved); redetected != "" {
			result.Platform = redetected
			platform = redetected
		}
		p.log.Debug("resolved short url",
			"input", rawURL, "resolved", resolved.String(), "platform", platform)
	}

	p.finish(result, platform, resolved)
	return result, nil
}

// RunSync executes the pipeline without any network resolution: short forms
// keep their unresolved URL and get a hash-based cache key. Call sites use it
// as a cheap pre-check before paying redirect-resolution cost.
func (p *Pipeline) RunSync(rawURL string) (*domain.PipelineResult, error) {
	normalized, platform, err := p.prepare(rawURL)
	if err != nil {
		return nil, err
	}

	result := &domain.PipelineResult{
		InputURL:      rawURL,
		NormalizedURL: normalized.String(),
		Platform:      platform,
	}
	p.finish(result, platform, normalized)
	return result, nil
}

// prepare validates, normalizes, and platform-detects the raw URL.
func (p *Pipeline) prepare(rawURL string) (*url.URL, string, error) {
	normalized, err := Normalize(rawURL)
	if err != nil {
		return nil, "", scraperr.Wrap(scraperr.CodeInvalidURL, err)
	}

	platform := Detect(normalized)
	if platform == "" {
		return nil, "", scraperr.Newf(scraperr.CodeUnsupportedPlatform,
			"no supported platform matches host %q", normalized.Hostname())
	}
	return normalized, platform, nil
}

// finish fills the classification and cache-key fields from the final URL.
func (p *Pipeline) finish(result *domain.PipelineResult, platform string, u *url.URL) {
	result.ResolvedURL = u.String()
	result.ContentID = ExtractContentID(platform, u)
	result.ContentType = ClassifyContentType(platform, u)
	result.MayRequireCookie = MayRequireCookie(platform, result.ContentType, u)
	result.CacheKey = CacheKey(platform, result.ContentID, u.String())
}

// CacheKey computes the cache key: platform-qualified content ID when one
// exists, platform-qualified stable hash of the cleaned URL otherwise.
func CacheKey(platform, contentID, cleanedURL string) string {
	if contentID != "" {
		return platform + ":" + contentID
	}
	return platform + ":" + StableHash(cleanedURL)
}

// StableHash returns a short hex SHA-256 of a string for use in cache keys.
func StableHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])[:hashKeyLength]
}
