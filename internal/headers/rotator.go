// Package headers supplies plausible browser identities per request from a
// prioritized profile pool, throttling reuse of the same identity to avoid
// obviously-patterned traffic.
package headers

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
)

// ProfileSource loads rotation candidates from persistent storage and
// records their usage back into it.
type ProfileSource interface {
	ListEnabled(ctx context.Context) ([]domain.BrowserProfile, error)
	MarkUsed(ctx context.Context, id string) error
	RecordOutcome(ctx context.Context, id string, success bool) error
}

// lruPoolSize bounds the least-recently-used slice the weighted pick draws
// from, so high-priority profiles still rotate instead of monopolizing.
const lruPoolSize = 3

// fallbackProfile serves requests when the store is empty or unreachable.
var fallbackProfile = domain.BrowserProfile{
	ID:       "builtin-fallback",
	Platform: domain.PlatformAll,
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	AcceptLanguage: "en-US,en;q=0.9",
	Priority:       1,
	Enabled:        true,
}

// Rotator holds an in-memory snapshot of browser profiles, refreshed
// periodically from the profile source.
type Rotator struct {
	source ProfileSource
	cfg    *config.RotatorConfig
	log    logger.Interface
	now    func() time.Time

	mu       sync.Mutex
	profiles []domain.BrowserProfile
	lastUse  map[string]time.Time
}

// NewRotator creates a rotator. Call Refresh before first use; selection
// falls back to a builtin profile until a refresh succeeds.
func NewRotator(source ProfileSource, cfg *config.RotatorConfig, log logger.Interface) *Rotator {
	return &Rotator{
		source:  source,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		lastUse: make(map[string]time.Time),
	}
}

// Refresh reloads the in-memory profile list from the source.
func (r *Rotator) Refresh(ctx context.Context) error {
	profiles, err := r.source.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("refresh browser profiles: %w", err)
	}

	r.mu.Lock()
	r.profiles = profiles
	r.mu.Unlock()

	r.log.Debug("browser profiles refreshed", "count", len(profiles))
	return nil
}

// GetRandomProfile selects a profile for the platform: candidates filtered
// by platform-or-all, preferred by longest-unused, weighted by priority.
// A candidate reused for the same platform within the reuse window is
// skipped in favor of a random acceptable alternative; if every candidate
// is throttled the pick goes through anyway rather than failing the request.
func (r *Rotator) GetRandomProfile(platform string) *domain.BrowserProfile {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := r.candidatesLocked(platform)
	if len(candidates) == 0 {
		fb := fallbackProfile
		return &fb
	}

	now := r.now()
	picked := r.pickLocked(candidates, platform, now)
	r.lastUse[throttleKey(picked.ID, platform)] = now

	copied := *picked
	return &copied
}

// MarkUsed persists the selection timestamp so recency ordering survives a
// restart. The builtin fallback has no row to update. Persistence failures
// are logged, not surfaced: the in-process throttle map already covers the
// current run.
func (r *Rotator) MarkUsed(ctx context.Context, profileID string) {
	if profileID == fallbackProfile.ID {
		return
	}
	if err := r.source.MarkUsed(ctx, profileID); err != nil {
		r.log.Warn("profile usage persist failed", "profile", profileID, "error", err)
	}
}

// ReportOutcome persists the per-profile success or failure counter.
func (r *Rotator) ReportOutcome(ctx context.Context, profileID string, success bool) {
	if profileID == fallbackProfile.ID {
		return
	}
	if err := r.source.RecordOutcome(ctx, profileID, success); err != nil {
		r.log.Warn("profile outcome persist failed", "profile", profileID, "error", err)
	}
}

// candidatesLocked filters the snapshot by platform match.
func (r *Rotator) candidatesLocked(platform string) []*domain.BrowserProfile {
	var out []*domain.BrowserProfile
	for i := range r.profiles {
		p := &r.profiles[i]
		if p.Enabled && p.MatchesPlatform(platform) {
			out = append(out, p)
		}
	}
	return out
}

// pickLocked orders candidates by recency, then does a priority-weighted
// random pick among the least recently used, skipping throttled entries
// when an unthrottled alternative exists.
func (r *Rotator) pickLocked(candidates []*domain.BrowserProfile, platform string, now time.Time) *domain.BrowserProfile {
	sort.SliceStable(candidates, func(i, j int) bool {
		return r.effectiveLastUse(candidates[i], platform).
			Before(r.effectiveLastUse(candidates[j], platform))
	})

	pool := candidates
	if len(pool) > lruPoolSize {
		pool = pool[:lruPoolSize]
	}

	var open []*domain.BrowserProfile
	for _, p := range pool {
		if !r.throttled(p, platform, now) {
			open = append(open, p)
		}
	}
	if len(open) == 0 {
		open = pool
	}

	return weightedPick(open)
}

// effectiveLastUse merges persisted last_used_at with in-process use times.
func (r *Rotator) effectiveLastUse(p *domain.BrowserProfile, platform string) time.Time {
	var last time.Time
	if p.LastUsedAt != nil {
		last = *p.LastUsedAt
	}
	if local, ok := r.lastUse[throttleKey(p.ID, platform)]; ok && local.After(last) {
		last = local
	}
	return last
}

// throttled reports whether the profile was used for this platform inside
// the reuse window.
func (r *Rotator) throttled(p *domain.BrowserProfile, platform string, now time.Time) bool {
	last, ok := r.lastUse[throttleKey(p.ID, platform)]
	return ok && now.Sub(last) < r.cfg.ReuseWindow
}

// weightedPick selects randomly with weight proportional to priority.
func weightedPick(pool []*domain.BrowserProfile) *domain.BrowserProfile {
	total := 0
	for _, p := range pool {
		total += weightOf(p)
	}

	n := rand.Intn(total)
	for _, p := range pool {
		n -= weightOf(p)
		if n < 0 {
			return p
		}
	}
	return pool[len(pool)-1]
}

// weightOf floors priority at 1 so zero-priority profiles stay selectable.
func weightOf(p *domain.BrowserProfile) int {
	if p.Priority < 1 {
		return 1
	}
	return p.Priority
}

// throttleKey builds the per-profile-per-platform throttle map key.
func throttleKey(profileID, platform string) string {
	return profileID + "|" + platform
}
