package platforms

import (
	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
)

// Registry holds one strategy per supported platform.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds every platform strategy.
func NewRegistry(cfg config.Interface, log logger.Interface) *Registry {
	strategies := map[string]Strategy{
		domain.PlatformInstagram: NewInstagram(cfg, log),
		domain.PlatformFacebook:  NewFacebook(cfg, log),
		domain.PlatformTikTok:    NewTikTok(cfg, log),
		domain.PlatformTwitter:   NewTwitter(cfg, log),
		domain.PlatformWeibo:     NewWeibo(cfg, log),
		domain.PlatformYouTube:   NewYouTube(cfg, log),
	}
	return &Registry{strategies: strategies}
}

// For returns the strategy for a platform.
func (r *Registry) For(platform string) (Strategy, bool) {
	s, ok := r.strategies[platform]
	return s, ok
}

// CookieFree reports whether a platform's strategy never consumes a pooled
// cookie, letting the orchestrator skip the lease entirely.
func CookieFree(platform string) bool {
	return platform == domain.PlatformTikTok || platform == domain.PlatformYouTube
}
