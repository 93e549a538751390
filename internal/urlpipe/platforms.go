// Package urlpipe implements the URL pipeline: validation, normalization,
// platform detection, short-link resolution, content identification and
// cache key computation for raw user-supplied URLs.
package urlpipe

import (
	"net/url"
	"strings"

	"github.com/jonesrussell/socialgrab/internal/domain"
)

// hostAliases maps hostname suffixes to platform identifiers. Detection is
// suffix-based so subdomains (www, m, mbasic, l) match without enumeration.
var hostAliases = map[string]string{
	"facebook.com": domain.PlatformFacebook,
	"fb.com":       domain.PlatformFacebook,
	"fb.watch":     domain.PlatformFacebook,
	"fb.me":        domain.PlatformFacebook,

	"instagram.com": domain.PlatformInstagram,
	"instagr.am":    domain.PlatformInstagram,
	"ig.me":         domain.PlatformInstagram,

	"twitter.com": domain.PlatformTwitter,
	"x.com":       domain.PlatformTwitter,
	"t.co":        domain.PlatformTwitter,

	"tiktok.com": domain.PlatformTikTok,

	"weibo.com": domain.PlatformWeibo,
	"weibo.cn":  domain.PlatformWeibo,
	"t.cn":      domain.PlatformWeibo,

	"youtube.com": domain.PlatformYouTube,
	"youtu.be":    domain.PlatformYouTube,
}

// Detect returns the platform for a parsed URL by suffix-matching its host
// against the alias table, or empty string when no alias matches.
func Detect(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	for alias, platform := range hostAliases {
		if host == alias || strings.HasSuffix(host, "."+alias) {
			return platform
		}
	}
	return ""
}

// IsShortForm reports whether a normalized URL is a platform short or
// redirecting form that needs network resolution before its content identity
// is knowable. youtu.be is deliberately absent: its path carries the video
// ID directly and needs no round trip.
func IsShortForm(platform string, u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	path := u.Path

	switch platform {
	case domain.PlatformTikTok:
		return host == "vm.tiktok.com" || host == "vt.tiktok.com" ||
			strings.HasPrefix(path, "/t/")
	case domain.PlatformFacebook:
		return host == "fb.watch" || host == "fb.me" ||
			strings.HasPrefix(path, "/share/")
	case domain.PlatformInstagram:
		return host == "ig.me" || strings.HasPrefix(path, "/share/")
	case domain.PlatformTwitter:
		return host == "t.co"
	case domain.PlatformWeibo:
		return host == "t.cn"
	default:
		return false
	}
}

// MayRequireCookie reports whether a URL shape usually needs an authenticated
// cookie: every story URL, Facebook group content, and all of Weibo.
func MayRequireCookie(platform, contentType string, u *url.URL) bool {
	if contentType == domain.ContentTypeStory {
		return true
	}
	switch platform {
	case domain.PlatformWeibo:
		return true
	case domain.PlatformFacebook:
		return strings.HasPrefix(u.Path, "/groups/")
	default:
		return false
	}
}
