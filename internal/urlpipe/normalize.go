package urlpipe

import (
	"net/url"
	"strings"
)

// mobileHosts maps known mobile/alternate subdomain hosts to their desktop
// canonical form. m.weibo.cn is intentionally not here: Weibo's mobile host
// is the canonical API surface.
var mobileHosts = map[string]string{
	"m.facebook.com":      "www.facebook.com",
	"mbasic.facebook.com": "www.facebook.com",
	"touch.facebook.com":  "www.facebook.com",
	"web.facebook.com":    "www.facebook.com",
	"m.instagram.com":     "www.instagram.com",
	"mobile.twitter.com":  "twitter.com",
	"m.twitter.com":       "twitter.com",
	"www.x.com":           "twitter.com",
	"x.com":               "twitter.com",
	"m.youtube.com":       "www.youtube.com",
	"m.tiktok.com":        "www.tiktok.com",
}

// trackingParams is the fixed list of campaign/click-id/referrer parameters
// stripped during normalization.
var trackingParams = map[string]bool{
	"fbclid":        true,
	"gclid":         true,
	"dclid":         true,
	"twclid":        true,
	"ttclid":        true,
	"igshid":        true,
	"igsh":          true,
	"mibextid":      true,
	"si":            true,
	"feature":       true,
	"ref":           true,
	"ref_src":       true,
	"ref_url":       true,
	"refsrc":        true,
	"s":             true,
	"sender_device": true,
	"share_id":      true,
	"wtsid":         true,
	"rdid":          true,
	"app":           true,
	"locale":        true,
}

// trackingPrefixes are parameter-name prefixes used for platform-internal
// tracking; any parameter starting with one of these is stripped.
var trackingPrefixes = []string{"utm_", "ig_", "_nc_", "hc_", "__"}

// Normalize parses and canonicalizes a raw URL: forces https, lowercases the
// host, rewrites known mobile hosts to their desktop form, and strips
// tracking parameters. Returns an error when the input does not parse as an
// HTTP(S) URL.
func Normalize(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, ErrNotHTTP
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrNotHTTP
	}
	if u.Hostname() == "" || !strings.Contains(u.Hostname(), ".") {
		return nil, ErrNotHTTP
	}

	u.Scheme = "https"
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if canonical, ok := mobileHosts[u.Hostname()]; ok {
		u.Host = canonical
	}

	stripTracking(u)
	return u, nil
}

// stripTracking removes tracking query parameters in place.
func stripTracking(u *url.URL) {
	q := u.Query()
	if len(q) == 0 {
		return
	}

	for name := range q {
		if trackingParams[strings.ToLower(name)] || hasTrackingPrefix(name) {
			q.Del(name)
		}
	}
	u.RawQuery = q.Encode()
}

// hasTrackingPrefix reports whether a parameter name starts with a known
// platform-internal tracking prefix.
func hasTrackingPrefix(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range trackingPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
