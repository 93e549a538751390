package urlpipe

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/jonesrussell/socialgrab/internal/domain"
)

// Per-platform content ID patterns, tried in priority order against the URL
// path. Query-parameter shapes are handled separately in extractFromQuery.
var contentIDPatterns = map[string][]*regexp.Regexp{
	domain.PlatformInstagram: {
		regexp.MustCompile(`/(?:p|reel|reels|tv)/([A-Za-z0-9_-]+)`),
		regexp.MustCompile(`/stories/([A-Za-z0-9_.]+)/(\d+)`),
		regexp.MustCompile(`/stories/([A-Za-z0-9_.]+)`),
	},
	domain.PlatformFacebook: {
		regexp.MustCompile(`/reel/(\d+)`),
		regexp.MustCompile(`/videos/(?:[^/]+/)?(\d+)`),
		regexp.MustCompile(`/groups/(\d+)/posts/(\d+)`),
		regexp.MustCompile(`/posts/([A-Za-z0-9]+)`),
		regexp.MustCompile(`/stories/(\d+)`),
	},
	domain.PlatformTikTok: {
		regexp.MustCompile(`/@[^/]+/(?:video|photo)/(\d+)`),
		regexp.MustCompile(`/v/(\d+)`),
		regexp.MustCompile(`/embed/(?:v2/)?(\d+)`),
	},
	domain.PlatformTwitter: {
		regexp.MustCompile(`/[^/]+/status(?:es)?/(\d+)`),
		regexp.MustCompile(`/i/web/status/(\d+)`),
	},
	domain.PlatformWeibo: {
		regexp.MustCompile(`/status(?:es)?/([A-Za-z0-9]+)`),
		regexp.MustCompile(`/detail/([A-Za-z0-9]+)`),
		regexp.MustCompile(`^/(\d+)/([A-Za-z0-9]+)$`),
	},
	domain.PlatformYouTube: {
		regexp.MustCompile(`/(?:shorts|embed|live|v)/([A-Za-z0-9_-]{6,})`),
	},
}

// queryIDParams lists query parameters that carry the content ID, per
// platform, tried when no path pattern matched.
var queryIDParams = map[string][]string{
	domain.PlatformFacebook: {"v", "story_fbid", "fbid"},
	domain.PlatformYouTube:  {"v"},
	domain.PlatformWeibo:    {"id"},
	domain.PlatformTikTok:   {"item_id"},
}

// ExtractContentID extracts the platform-stable content identifier from a
// URL, trying path shapes in priority order and query parameters last.
// Returns empty when nothing matched; callers treat that as non-fatal since
// some content types are identified by the URL itself.
func ExtractContentID(platform string, u *url.URL) string {
	// youtu.be carries the ID as its whole path.
	if platform == domain.PlatformYouTube && strings.HasSuffix(u.Hostname(), "youtu.be") {
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id
		}
	}

	for _, pattern := range contentIDPatterns[platform] {
		m := pattern.FindStringSubmatch(u.Path)
		if m == nil {
			continue
		}
		// Composite shapes (user:post pairs) join their captures.
		if len(m) > 2 {
			return strings.Join(m[1:], ":")
		}
		return m[1]
	}

	return extractFromQuery(platform, u)
}

// extractFromQuery extracts a content ID from known query parameters.
// Facebook's story.php form yields a composite page:story pair.
func extractFromQuery(platform string, u *url.URL) string {
	q := u.Query()

	if platform == domain.PlatformFacebook {
		if storyID := q.Get("story_fbid"); storyID != "" {
			if pageID := q.Get("id"); pageID != "" {
				return pageID + ":" + storyID
			}
			return storyID
		}
	}

	for _, param := range queryIDParams[platform] {
		if v := q.Get(param); v != "" {
			return v
		}
	}
	return ""
}

// ClassifyContentType classifies video/reel/story/post/image from URL shape.
func ClassifyContentType(platform string, u *url.URL) string {
	path := u.Path

	switch platform {
	case domain.PlatformInstagram:
		switch {
		case strings.HasPrefix(path, "/stories/"):
			return domain.ContentTypeStory
		case strings.HasPrefix(path, "/reel"):
			return domain.ContentTypeReel
		default:
			return domain.ContentTypePost
		}
	case domain.PlatformFacebook:
		switch {
		case strings.HasPrefix(path, "/stories/"):
			return domain.ContentTypeStory
		case strings.HasPrefix(path, "/reel/"):
			return domain.ContentTypeReel
		case strings.Contains(path, "/videos/") || path == "/watch" || path == "/watch/" ||
			strings.HasPrefix(path, "/video.php") || strings.HasPrefix(path, "/share/v/"):
			return domain.ContentTypeVideo
		case strings.HasPrefix(path, "/photo") || u.Query().Get("fbid") != "":
			return domain.ContentTypeImage
		default:
			return domain.ContentTypePost
		}
	case domain.PlatformTikTok:
		if strings.Contains(path, "/photo/") {
			return domain.ContentTypeImage
		}
		return domain.ContentTypeVideo
	case domain.PlatformYouTube:
		return domain.ContentTypeVideo
	default:
		return domain.ContentTypePost
	}
}
