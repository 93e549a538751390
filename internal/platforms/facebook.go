package platforms

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/fetch"
	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/scraperr"
)

// Inline-player JSON fields that carry direct video URLs, HD first.
var (
	fbVideoHD = regexp.MustCompile(`"(?:playable_url_quality_hd|browser_native_hd_url)"\s*:\s*"((?:[^"\\]|\\.)+)"`)
	fbVideoSD = regexp.MustCompile(`"(?:playable_url|browser_native_sd_url)"\s*:\s*"((?:[^"\\]|\\.)+)"`)

	fbDashManifest       = regexp.MustCompile(`"dash_manifest"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	fbDashRepresentation = regexp.MustCompile(`(?s)<Representation[^>]*height="(\d+)"[^>]*>.*?<BaseURL>([^<]+)</BaseURL>`)
)

// Facebook extracts videos, reels, posts and photos from the web pages.
// Whether the cookie or the guest fetch goes first depends on the content
// type; within one fetch, video extraction falls from the inline player
// block to the DASH manifest to a metadata API lookup.
type Facebook struct {
	cfg    *config.PlatformConfig
	log    logger.Interface
	client *http.Client

	metadataURL string // format: video ID
}

// NewFacebook builds the Facebook strategy.
func NewFacebook(cfg config.Interface, log logger.Interface) *Facebook {
	pc := cfg.GetPlatformConfig(domain.PlatformFacebook)
	return &Facebook{
		cfg:         pc,
		log:         log.WithPlatform(domain.PlatformFacebook),
		client:      fetch.NewClient(pc.RequestTimeout, pc.MaxRedirects),
		metadataURL: "https://www.facebook.com/video/video_data/?video_id=%s",
	}
}

// Platform identifies the strategy.
func (s *Facebook) Platform() string { return domain.PlatformFacebook }

// Extract orders the guest and cookie fetches by content type and runs them.
func (s *Facebook) Extract(ctx context.Context, resolvedURL string, opts Options) *domain.ExtractionResult {
	guest := opts
	guest.Cookie = ""

	isStory := opts.ContentType == domain.ContentTypeStory
	if isStory && opts.Cookie == "" {
		return resultFromError(scraperr.New(scraperr.CodeCookieRequired))
	}

	// Guest mode frequently renders a stub page for groups and share links,
	// so the cookie fetch goes first for those. Video share links that
	// succeed as guest without a video track also fall through to the cookie.
	videoShare := strings.Contains(resolvedURL, "/share/v/")
	cookieFirst := isStory || videoShare || strings.Contains(resolvedURL, "/groups/")

	cookieAttempt := attempt{name: "page-cookie", usesCookie: true, run: func(ctx context.Context) (*domain.ExtractionData, *scraperr.Error) {
		return s.fetchOnce(ctx, resolvedURL, opts, true, false)
	}}
	guestAttempt := attempt{
		name: "page-guest",
		run: func(ctx context.Context) (*domain.ExtractionData, *scraperr.Error) {
			return s.fetchOnce(ctx, resolvedURL, guest, false, videoShare)
		},
	}
	if opts.Cookie != "" {
		// With a cookie in reserve, guest-side auth and restriction
		// outcomes are worth one more attempt instead of a hard stop.
		guestAttempt.soft = func(code scraperr.Code) bool {
			switch code {
			case scraperr.CodeCookieRequired, scraperr.CodeAgeRestricted, scraperr.CodePrivateContent:
				return true
			}
			return defaultSoft(code)
		}
	}

	var attempts []attempt
	switch {
	case isStory:
		attempts = []attempt{cookieAttempt}
	case cookieFirst && opts.Cookie != "":
		attempts = []attempt{cookieAttempt, guestAttempt}
	case opts.Cookie != "":
		attempts = []attempt{guestAttempt, cookieAttempt}
	default:
		attempts = []attempt{guestAttempt}
	}

	data, cookieTried, err := runChain(ctx, s.log, attempts)
	if err != nil {
		return chainError(err, cookieTried)
	}
	data.URL = resolvedURL
	data.Type = opts.ContentType
	return resultFromData(data)
}

// fetchOnce performs one page fetch and runs the parse ladder on the body.
// Login and checkpoint redirects are read off the final response URL before
// any parsing; a checkpoint while a cookie is in use expires that cookie
// upstream. wantVideo demands a video track in an otherwise successful parse.
func (s *Facebook) fetchOnce(ctx context.Context, pageURL string, opts Options, usedCookie, wantVideo bool) (*domain.ExtractionData, *scraperr.Error) {
	body, finalURL, status, err := fetchPage(ctx, s.client, pageURL, opts, "")
	if err != nil {
		return nil, err
	}
	if finalURL != nil {
		if redirErr := classifyFinalURL(finalURL, s.cfg); redirErr != nil {
			return nil, s.demoteAuthError(redirErr, usedCookie)
		}
	}
	if statusErr := classifyStatus(status); statusErr != nil {
		return nil, statusErr
	}

	data, parseErr := s.parsePage(ctx, body, opts)
	if parseErr != nil {
		return nil, s.demoteAuthError(parseErr, usedCookie)
	}
	if wantVideo && !hasVideoFormat(data.Formats) {
		return nil, scraperr.Newf(scraperr.CodeNoMedia, "share link yielded no video track")
	}
	data.UsedCookie = usedCookie
	return data, nil
}

// demoteAuthError rewrites a login-required classification to
// COOKIE_REQUIRED when no cookie was in play: the account state machine
// must only ever see signals from fetches that actually used a cookie.
func (s *Facebook) demoteAuthError(err *scraperr.Error, usedCookie bool) *scraperr.Error {
	if !usedCookie && (err.Code == scraperr.CodeCookieExpired || err.Code == scraperr.CodeCheckpointRequired) {
		return scraperr.New(scraperr.CodeCookieRequired)
	}
	return err
}

// parsePage runs the media ladder over a fetched page body.
func (s *Facebook) parsePage(ctx context.Context, body []byte, opts Options) (*domain.ExtractionData, *scraperr.Error) {
	if markerErr := classifyBody(body, s.cfg); markerErr != nil {
		return nil, markerErr
	}

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if docErr != nil {
		return nil, scraperr.Wrap(scraperr.CodeParseError, docErr)
	}

	data := &domain.ExtractionData{
		Title:       metaContent(doc, "og:title"),
		Description: metaContent(doc, "og:description"),
		Thumbnail:   metaContent(doc, "og:image"),
	}
	if data.Title == "" {
		data.Title = "Facebook post"
	}

	itemID := facebookItemID(opts.ContentID)

	// Ladder: inline player block, then the DASH manifest, then the
	// metadata API keyed by video ID. Each rung only runs when the one
	// above produced nothing.
	formats := inlineVideoFormats(body, itemID, data.Thumbnail)
	if len(formats) == 0 {
		formats = dashFormats(body, itemID, data.Thumbnail)
	}
	if len(formats) == 0 && itemID != "" && isNumeric(itemID) {
		formats = s.metadataFormats(ctx, itemID, opts, data.Thumbnail)
	}

	// Photo posts: og:image is the asset itself.
	if len(formats) == 0 && opts.ContentType == domain.ContentTypeImage && data.Thumbnail != "" {
		formats = []domain.MediaFormat{{
			Quality: "original",
			Type:    domain.FormatTypeImage,
			URL:     data.Thumbnail,
			Format:  "jpg",
			ItemID:  itemID,
		}}
	}

	if len(formats) == 0 {
		return nil, scraperr.New(scraperr.CodeNoMedia)
	}
	data.Formats = formats
	return data, nil
}

// inlineVideoFormats mines the inline player JSON for direct video URLs.
func inlineVideoFormats(body []byte, itemID, thumbnail string) []domain.MediaFormat {
	var formats []domain.MediaFormat
	if m := fbVideoHD.FindSubmatch(body); m != nil {
		formats = append(formats, domain.MediaFormat{
			Quality:   "hd",
			Type:      domain.FormatTypeVideo,
			URL:       unescapeJSONString(string(m[1])),
			Format:    "mp4",
			ItemID:    itemID,
			Thumbnail: thumbnail,
		})
	}
	if m := fbVideoSD.FindSubmatch(body); m != nil {
		sd := unescapeJSONString(string(m[1]))
		if len(formats) == 0 || formats[0].URL != sd {
			formats = append(formats, domain.MediaFormat{
				Quality:   "sd",
				Type:      domain.FormatTypeVideo,
				URL:       sd,
				Format:    "mp4",
				ItemID:    itemID,
				Thumbnail: thumbnail,
			})
		}
	}
	return formats
}

// dashFormats parses the escaped DASH manifest embedded in the page and
// returns its video representations sorted by height, tallest first.
func dashFormats(body []byte, itemID, thumbnail string) []domain.MediaFormat {
	m := fbDashManifest.FindSubmatch(body)
	if m == nil {
		return nil
	}
	manifest := unescapeJSONString(string(m[1]))

	type rep struct {
		height int
		url    string
	}
	var reps []rep
	for _, rm := range fbDashRepresentation.FindAllStringSubmatch(manifest, -1) {
		h, err := strconv.Atoi(rm[1])
		if err != nil || h == 0 {
			continue
		}
		reps = append(reps, rep{height: h, url: strings.TrimSpace(rm[2])})
	}
	sort.Slice(reps, func(i, j int) bool { return reps[i].height > reps[j].height })

	var formats []domain.MediaFormat
	for _, r := range reps {
		formats = append(formats, domain.MediaFormat{
			Quality:   fmt.Sprintf("%dp", r.height),
			Type:      domain.FormatTypeVideo,
			URL:       r.url,
			Format:    "mp4",
			ItemID:    itemID,
			Thumbnail: thumbnail,
		})
	}
	return formats
}

// metadataFormats asks the internal video metadata endpoint for direct
// sources, the last rung of the video ladder.
func (s *Facebook) metadataFormats(ctx context.Context, videoID string, opts Options, thumbnail string) []domain.MediaFormat {
	var envelope map[string]any
	if err := fetchJSON(ctx, s.client, fmt.Sprintf(s.metadataURL, videoID), opts, &envelope); err != nil {
		s.log.Debug("video metadata lookup failed", "video_id", videoID, "code", err.Code)
		return nil
	}

	var meta struct {
		HDSrc     string `json:"hd_src"`
		SDSrc     string `json:"sd_src"`
		Src       string `json:"src"`
		Thumbnail string `json:"thumbnail"`
	}
	if err := decodeLoose(envelope, &meta); err != nil {
		return nil
	}
	if meta.Thumbnail != "" {
		thumbnail = meta.Thumbnail
	}

	var formats []domain.MediaFormat
	if meta.HDSrc != "" {
		formats = append(formats, domain.MediaFormat{
			Quality: "hd", Type: domain.FormatTypeVideo, URL: meta.HDSrc,
			Format: "mp4", ItemID: videoID, Thumbnail: thumbnail,
		})
	}
	if sd := firstNonEmpty(meta.SDSrc, meta.Src); sd != "" {
		formats = append(formats, domain.MediaFormat{
			Quality: "sd", Type: domain.FormatTypeVideo, URL: sd,
			Format: "mp4", ItemID: videoID, Thumbnail: thumbnail,
		})
	}
	return formats
}

// facebookItemID reduces a composite page:story ID to the story member.
func facebookItemID(contentID string) string {
	if _, story, ok := strings.Cut(contentID, ":"); ok {
		return story
	}
	return contentID
}

func hasVideoFormat(formats []domain.MediaFormat) bool {
	for _, f := range formats {
		if f.Type == domain.FormatTypeVideo {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func metaContent(doc *goquery.Document, property string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First().Attr("content")
	return strings.TrimSpace(content)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
