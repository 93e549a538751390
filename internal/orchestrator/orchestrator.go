// Package orchestrator wires the extraction flow end to end: URL pipeline,
// result cache, credential pool, fingerprint rotation, and per-platform
// strategy dispatch. Its Extract is the single entry point consumers call;
// it always returns a structured result, never a bare error.
package orchestrator

import (
	"context"

	"github.com/jonesrussell/socialgrab/internal/cookiepool"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/platforms"
	"github.com/jonesrussell/socialgrab/internal/scraperr"
)

// URLPipeline turns raw URLs into classified pipeline results.
type URLPipeline interface {
	RunSync(rawURL string) (*domain.PipelineResult, error)
	Run(ctx context.Context, rawURL string) (*domain.PipelineResult, error)
}

// ResultCache is the cache surface the orchestrator consumes.
type ResultCache interface {
	QuickGet(ctx context.Context, platform, rawURL string) (*domain.ExtractionResult, bool)
	Get(ctx context.Context, cacheKey string) (*domain.ExtractionResult, bool)
	SetWithAlias(ctx context.Context, pr *domain.PipelineResult, result *domain.ExtractionResult) error
}

// CredentialPool leases cookies and receives outcome feedback.
type CredentialPool interface {
	Acquire(ctx context.Context, platform, tier string) (*cookiepool.Lease, error)
	Report(ctx context.Context, credentialID string, outcome domain.CredentialOutcome) error
}

// ProfileProvider hands out browser fingerprints and persists their usage
// so recency ordering survives restarts.
type ProfileProvider interface {
	GetRandomProfile(platform string) *domain.BrowserProfile
	MarkUsed(ctx context.Context, profileID string)
	ReportOutcome(ctx context.Context, profileID string, success bool)
}

// StrategySet resolves the strategy for a platform.
type StrategySet interface {
	For(platform string) (platforms.Strategy, bool)
}

// Options tunes a single extraction request.
type Options struct {
	// Tier selects the credential tier; empty means public.
	Tier string
	// SkipCache forces a live extraction and suppresses the cache write.
	SkipCache bool
}

// Orchestrator runs extraction requests.
type Orchestrator struct {
	pipeline   URLPipeline
	cache      ResultCache
	pool       CredentialPool
	rotator    ProfileProvider
	strategies StrategySet
	log        logger.Interface
}

// New creates an orchestrator. cache, pool and rotator may be nil; the
// corresponding stages are skipped.
func New(pipeline URLPipeline, cache ResultCache, pool CredentialPool, rotator ProfileProvider, strategies StrategySet, log logger.Interface) *Orchestrator {
	return &Orchestrator{
		pipeline:   pipeline,
		cache:      cache,
		pool:       pool,
		rotator:    rotator,
		strategies: strategies,
		log:        log.WithComponent("orchestrator"),
	}
}

// Extract runs the full flow for one raw URL: cheap cache check, URL
// resolution, canonical cache lookup, strategy dispatch with a leased cookie
// and fingerprint, outcome feedback, and the cache write-back.
func (o *Orchestrator) Extract(ctx context.Context, rawURL string, opts Options) *domain.ExtractionResult {
	quick, err := o.pipeline.RunSync(rawURL)
	if err != nil {
		return o.errorResult(err)
	}

	useCache := o.cache != nil && !opts.SkipCache
	if useCache {
		if cached, ok := o.cache.QuickGet(ctx, quick.Platform, rawURL); ok {
			o.log.Debug("cache hit before resolution", "platform", quick.Platform, "url", rawURL)
			return cached
		}
	}

	pr, err := o.pipeline.Run(ctx, rawURL)
	if err != nil {
		return o.errorResult(err)
	}

	// The quick lookup already checked the content-ID key; only hit the
	// cache again when resolution produced a different canonical key or
	// the raw URL had no extractable ID at all.
	if useCache && (quick.ContentID == "" || pr.CacheKey != quick.CacheKey) {
		if cached, ok := o.cache.Get(ctx, pr.CacheKey); ok {
			o.log.Debug("cache hit after resolution", "key", pr.CacheKey)
			return cached
		}
	}

	result := o.runStrategy(ctx, pr, opts)

	if o.cache != nil && !opts.SkipCache && result.Success {
		if cacheErr := o.cache.SetWithAlias(ctx, pr, result); cacheErr != nil {
			o.log.Warn("cache write failed", "key", pr.CacheKey, "error", cacheErr)
		}
	}
	return result
}

// runStrategy dispatches to the platform strategy, retrying once on a
// retryable code with a fresh fingerprint. The fallback chain inside a
// strategy is the real retry mechanism; this outer retry only covers codes
// the taxonomy explicitly marks safe to re-invoke.
func (o *Orchestrator) runStrategy(ctx context.Context, pr *domain.PipelineResult, opts Options) *domain.ExtractionResult {
	strategy, ok := o.strategies.For(pr.Platform)
	if !ok {
		return o.errorResult(scraperr.Newf(scraperr.CodeUnsupportedPlatform,
			"no strategy for platform %q", pr.Platform))
	}

	lease := o.acquireLease(ctx, pr, opts)

	result := o.attempt(ctx, strategy, pr, lease)
	if !result.Success && scraperr.Retryable(scraperr.Code(result.ErrorCode)) {
		o.log.Info("retrying extraction",
			"platform", pr.Platform, "key", pr.CacheKey, "code", result.ErrorCode)
		result = o.attempt(ctx, strategy, pr, lease)
	}

	o.reportOutcome(ctx, lease, result)
	return result
}

// acquireLease leases a credential unless the platform never uses one.
// An empty pool is not an error here: strategies decide for themselves
// whether a missing cookie is fatal.
func (o *Orchestrator) acquireLease(ctx context.Context, pr *domain.PipelineResult, opts Options) *cookiepool.Lease {
	if o.pool == nil || platforms.CookieFree(pr.Platform) {
		return nil
	}

	tier := opts.Tier
	if tier == "" {
		tier = domain.TierPublic
	}
	lease, err := o.pool.Acquire(ctx, pr.Platform, tier)
	if err != nil {
		o.log.Warn("credential acquisition failed", "platform", pr.Platform, "error", err)
		return nil
	}
	return lease
}

func (o *Orchestrator) attempt(ctx context.Context, strategy platforms.Strategy, pr *domain.PipelineResult, lease *cookiepool.Lease) *domain.ExtractionResult {
	strategyOpts := platforms.Options{
		ContentType: pr.ContentType,
		ContentID:   pr.ContentID,
	}
	if lease != nil {
		strategyOpts.Cookie = lease.Cookie
	}
	var profileID string
	if o.rotator != nil {
		strategyOpts.Profile = o.rotator.GetRandomProfile(pr.Platform)
		if strategyOpts.Profile != nil {
			profileID = strategyOpts.Profile.ID
			o.rotator.MarkUsed(ctx, profileID)
		}
	}

	result := strategy.Extract(ctx, pr.ResolvedURL, strategyOpts)
	if result == nil {
		result = o.errorResult(scraperr.New(scraperr.CodeUnknown))
	}
	if profileID != "" {
		o.rotator.ReportOutcome(ctx, profileID, result.Success)
	}
	return result
}

// reportOutcome feeds the request outcome back into the credential health
// state machine. Credential codes are side-effecting signals, never just
// return values.
func (o *Orchestrator) reportOutcome(ctx context.Context, lease *cookiepool.Lease, result *domain.ExtractionResult) {
	if lease == nil {
		return
	}

	var outcome domain.CredentialOutcome
	switch {
	case result.Success && result.Data != nil && result.Data.UsedCookie:
		outcome = domain.CredentialOutcome{Kind: domain.OutcomeSuccess}
	case result.Success:
		// Guest path succeeded; the cookie was never exercised.
		return
	default:
		if !result.CookieAttempted {
			// The chain never transmitted the cookie; a guest-rung failure
			// says nothing about credential health.
			return
		}
		code := scraperr.Code(result.ErrorCode)
		switch code {
		case scraperr.CodeCheckpointRequired, scraperr.CodeCookieBanned:
			outcome = domain.CredentialOutcome{Kind: domain.OutcomeForcedExpire, Message: result.Error}
		case scraperr.CodeCookieExpired:
			outcome = domain.CredentialOutcome{Kind: domain.OutcomeLoginRedirect, Message: result.Error}
		default:
			outcome = domain.CredentialOutcome{Kind: domain.OutcomeError, Message: result.Error}
		}
	}

	if err := o.pool.Report(ctx, lease.Credential.ID, outcome); err != nil {
		o.log.Warn("outcome report failed", "credential", lease.Credential.ID, "error", err)
	}
}

// errorResult converts any error into the structured result contract.
func (o *Orchestrator) errorResult(err error) *domain.ExtractionResult {
	se := scraperr.AsError(err)
	if se == nil {
		se = scraperr.FromTransport(err)
	}
	return &domain.ExtractionResult{
		Success:   false,
		Error:     se.Message,
		ErrorCode: string(se.Code),
	}
}
