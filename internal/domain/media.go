// Package domain defines the core data model shared across the extraction
// engine: media formats, extraction results, URL pipeline output, pooled
// credentials and browser profiles.
package domain

import "time"

// Supported platform identifiers.
const (
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformTikTok    = "tiktok"
	PlatformTwitter   = "twitter"
	PlatformWeibo     = "weibo"
	PlatformYouTube   = "youtube"

	// PlatformAll matches every platform in profile/credential filters.
	PlatformAll = "all"
)

// Content type constants classified from URL shape.
const (
	ContentTypeVideo = "video"
	ContentTypeReel  = "reel"
	ContentTypeStory = "story"
	ContentTypePost  = "post"
	ContentTypeImage = "image"
)

// MediaFormat kind constants.
const (
	FormatTypeVideo = "video"
	FormatTypeImage = "image"
	FormatTypeAudio = "audio"
)

// MediaFormat is one downloadable asset. Variants of the same underlying
// item (HD/SD renditions, slides of a carousel) share an ItemID so consumers
// can group alternatives instead of presenting duplicates.
type MediaFormat struct {
	Quality   string `json:"quality"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	Format    string `json:"format"`
	ItemID    string `json:"item_id"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Filesize  int64  `json:"filesize,omitempty"`
}

// Engagement holds public counters scraped alongside the media.
// Absent counters stay zero; parsers never fail on a missing counter.
type Engagement struct {
	Views    int64 `json:"views,omitempty"`
	Likes    int64 `json:"likes,omitempty"`
	Comments int64 `json:"comments,omitempty"`
	Shares   int64 `json:"shares,omitempty"`
}

// ExtractionData is the payload of a successful extraction.
type ExtractionData struct {
	Title       string        `json:"title"`
	Thumbnail   string        `json:"thumbnail,omitempty"`
	Author      string        `json:"author,omitempty"`
	Description string        `json:"description,omitempty"`
	PostedAt    *time.Time    `json:"posted_at,omitempty"`
	Engagement  *Engagement   `json:"engagement,omitempty"`
	Formats     []MediaFormat `json:"formats"`
	URL         string        `json:"url"`
	Type        string        `json:"type"`
	UsedCookie  bool          `json:"used_cookie,omitempty"`
}

// ExtractionResult is the stable contract returned to every consumer
// (HTTP handlers, bot formatters). Success implies len(Data.Formats) >= 1;
// an extraction that found no media is reported as a NO_MEDIA error, never
// as an empty success.
type ExtractionResult struct {
	Success   bool            `json:"success"`
	Data      *ExtractionData `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`

	// CookieAttempted records whether any attempt actually sent the leased
	// cookie. The credential health reporter ignores failures where the
	// cookie stayed unused; a chain that hard-stops on its guest rung must
	// not count against a credential that was never transmitted.
	CookieAttempted bool `json:"-"`
}

// HasFormats reports whether the result carries at least one media format.
func (r *ExtractionResult) HasFormats() bool {
	return r != nil && r.Data != nil && len(r.Data.Formats) > 0
}
