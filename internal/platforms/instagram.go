package platforms

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/fetch"
	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/scraperr"
)

// GraphQL query document for shortcode media lookup and the web app ID the
// endpoint expects alongside it.
const (
	instagramDocID = "8845758582119845"
	instagramAppID = "936619743392459"
)

// Instagram extracts posts and reels through the web GraphQL endpoint, with
// a cookie retry and an embed-HTML fallback, and stories through the
// authenticated feed API.
type Instagram struct {
	cfg    *config.PlatformConfig
	log    logger.Interface
	client *http.Client

	graphqlURL string
	embedURL   string // format: shortcode
	profileURL string // format: username
	storyURL   string // format: numeric user ID
}

// NewInstagram builds the Instagram strategy.
func NewInstagram(cfg config.Interface, log logger.Interface) *Instagram {
	pc := cfg.GetPlatformConfig(domain.PlatformInstagram)
	return &Instagram{
		cfg:        pc,
		log:        log.WithPlatform(domain.PlatformInstagram),
		client:     fetch.NewClient(pc.RequestTimeout, pc.MaxRedirects),
		graphqlURL: "https://www.instagram.com/graphql/query",
		embedURL:   "https://www.instagram.com/p/%s/embed/captioned/",
		profileURL: "https://i.instagram.com/api/v1/users/web_profile_info/?username=%s",
		storyURL:   "https://i.instagram.com/api/v1/feed/user/%s/story/",
	}
}

// Platform identifies the strategy.
func (s *Instagram) Platform() string { return domain.PlatformInstagram }

// Extract runs the post/reel chain, or the story path for story URLs.
// Stories have no guest endpoint at all, so a missing cookie fails before
// any network round trip.
func (s *Instagram) Extract(ctx context.Context, resolvedURL string, opts Options) *domain.ExtractionResult {
	if opts.ContentType == domain.ContentTypeStory {
		if opts.Cookie == "" {
			return resultFromError(scraperr.New(scraperr.CodeCookieRequired))
		}
		return s.extractStory(ctx, opts)
	}

	shortcode := opts.ContentID
	if shortcode == "" {
		return resultFromError(scraperr.Newf(scraperr.CodeParseError, "no shortcode in %s", resolvedURL))
	}

	guest := opts
	guest.Cookie = ""

	attempts := []attempt{
		{name: "graphql-guest", run: func(ctx context.Context) (*domain.ExtractionData, *scraperr.Error) {
			return s.graphql(ctx, shortcode, guest, false)
		}},
	}
	if opts.Cookie != "" {
		attempts = append(attempts, attempt{name: "graphql-cookie", usesCookie: true, run: func(ctx context.Context) (*domain.ExtractionData, *scraperr.Error) {
			return s.graphql(ctx, shortcode, opts, true)
		}})
	}
	attempts = append(attempts, attempt{name: "embed", run: func(ctx context.Context) (*domain.ExtractionData, *scraperr.Error) {
		return s.embed(ctx, shortcode, guest)
	}})

	data, cookieTried, err := runChain(ctx, s.log, attempts)
	if err != nil {
		return chainError(err, cookieTried)
	}
	data.URL = resolvedURL
	data.Type = opts.ContentType
	return resultFromData(data)
}

// graphql runs the shortcode media query. The envelope key for the media
// node has moved across rollouts, so several spellings are checked.
func (s *Instagram) graphql(ctx context.Context, shortcode string, opts Options, usedCookie bool) (*domain.ExtractionData, *scraperr.Error) {
	form := url.Values{
		"doc_id":    {instagramDocID},
		"variables": {fmt.Sprintf(`{"shortcode":%q}`, shortcode)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.graphqlURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, scraperr.Wrap(scraperr.CodeInvalidURL, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-IG-App-ID", instagramAppID)
	fetch.Decorate(req, opts.Profile, opts.Cookie)

	resp, doErr := s.client.Do(req)
	if doErr != nil {
		return nil, scraperr.FromTransport(doErr)
	}
	body, readErr := fetch.ReadBody(resp)
	if readErr != nil {
		return nil, scraperr.FromTransport(readErr)
	}
	if statusErr := classifyStatus(resp.StatusCode); statusErr != nil {
		return nil, statusErr
	}

	var envelope map[string]any
	if jsonErr := unmarshalInto(body, &envelope); jsonErr != nil {
		return nil, jsonErr
	}

	node := digMap(envelope, "data", "xdt_shortcode_media")
	if node == nil {
		node = digMap(envelope, "data", "shortcode_media")
	}
	if node == nil {
		node = digMap(envelope, "graphql", "shortcode_media")
	}
	if node == nil {
		if markerErr := classifyBody(body, s.cfg); markerErr != nil {
			return nil, markerErr
		}
		return nil, scraperr.Newf(scraperr.CodeAPIError, "graphql response carried no media node")
	}

	data, parseErr := parseInstagramMedia(node)
	if parseErr != nil {
		return nil, parseErr
	}
	data.UsedCookie = usedCookie
	return data, nil
}

// instagramMedia mirrors the GraphQL shortcode media node.
type instagramMedia struct {
	ID         string `json:"id"`
	Typename   string `json:"__typename"`
	IsVideo    bool   `json:"is_video"`
	VideoURL   string `json:"video_url"`
	DisplayURL string `json:"display_url"`

	DisplayResources []struct {
		Src   string `json:"src"`
		Width int    `json:"config_width"`
	} `json:"display_resources"`

	Owner struct {
		Username string `json:"username"`
	} `json:"owner"`

	Caption struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`

	Likes struct {
		Count int64 `json:"count"`
	} `json:"edge_media_preview_like"`
	Comments struct {
		Count int64 `json:"count"`
	} `json:"edge_media_to_comment"`
	VideoViews int64 `json:"video_view_count"`
	TakenAt    int64 `json:"taken_at_timestamp"`

	Sidecar struct {
		Edges []struct {
			Node instagramMedia `json:"node"`
		} `json:"edges"`
	} `json:"edge_sidecar_to_children"`
}

// parseInstagramMedia normalizes a media node: one format for a single post,
// one per slide for a carousel, highest-resolution variant per slide.
func parseInstagramMedia(node map[string]any) (*domain.ExtractionData, *scraperr.Error) {
	var media instagramMedia
	if err := decodeLoose(node, &media); err != nil {
		return nil, scraperr.Wrap(scraperr.CodeParseError, err)
	}

	var formats []domain.MediaFormat
	if edges := media.Sidecar.Edges; len(edges) > 0 {
		for i, edge := range edges {
			f := slideFormat(edge.Node)
			if f.ItemID == "" {
				f.ItemID = fmt.Sprintf("slide-%d", i+1)
			}
			if f.URL != "" {
				formats = append(formats, f)
			}
		}
	} else {
		f := slideFormat(media)
		if f.URL != "" {
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return nil, scraperr.New(scraperr.CodeNoMedia)
	}

	data := &domain.ExtractionData{
		Title:     instagramTitle(media),
		Thumbnail: media.DisplayURL,
		Author:    media.Owner.Username,
		Formats:   formats,
		Engagement: &domain.Engagement{
			Views:    media.VideoViews,
			Likes:    media.Likes.Count,
			Comments: media.Comments.Count,
		},
	}
	if media.TakenAt > 0 {
		t := time.Unix(media.TakenAt, 0).UTC()
		data.PostedAt = &t
	}
	return data, nil
}

// slideFormat converts one media node into a format, preferring the video
// track and otherwise the widest display resource.
func slideFormat(m instagramMedia) domain.MediaFormat {
	if m.IsVideo && m.VideoURL != "" {
		return domain.MediaFormat{
			Quality:   "original",
			Type:      domain.FormatTypeVideo,
			URL:       m.VideoURL,
			Format:    "mp4",
			ItemID:    m.ID,
			Thumbnail: m.DisplayURL,
		}
	}

	src := m.DisplayURL
	best := 0
	for _, res := range m.DisplayResources {
		if res.Width > best && res.Src != "" {
			best = res.Width
			src = res.Src
		}
	}
	return domain.MediaFormat{
		Quality: "original",
		Type:    domain.FormatTypeImage,
		URL:     src,
		Format:  "jpg",
		ItemID:  m.ID,
	}
}

func instagramTitle(m instagramMedia) string {
	if edges := m.Caption.Edges; len(edges) > 0 && edges[0].Node.Text != "" {
		return edges[0].Node.Text
	}
	if m.Owner.Username != "" {
		return "Post by @" + m.Owner.Username
	}
	return "Instagram post"
}

// embed parses the public captioned-embed HTML. It only ever yields an
// image rendition, which still beats returning nothing when GraphQL is
// erroring for guests.
func (s *Instagram) embed(ctx context.Context, shortcode string, opts Options) (*domain.ExtractionData, *scraperr.Error) {
	body, _, status, err := fetchPage(ctx, s.client, fmt.Sprintf(s.embedURL, shortcode), opts, "")
	if err != nil {
		return nil, err
	}
	if statusErr := classifyStatus(status); statusErr != nil {
		return nil, statusErr
	}
	if markerErr := classifyBody(body, s.cfg); markerErr != nil {
		return nil, markerErr
	}

	doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if parseErr != nil {
		return nil, scraperr.Wrap(scraperr.CodeParseError, parseErr)
	}

	src, ok := doc.Find("img.EmbeddedMediaImage").First().Attr("src")
	if !ok || src == "" {
		return nil, scraperr.New(scraperr.CodeNoMedia)
	}

	data := &domain.ExtractionData{
		Author:    strings.TrimSpace(doc.Find(".UsernameText").First().Text()),
		Thumbnail: src,
		Formats: []domain.MediaFormat{{
			Quality: "embed",
			Type:    domain.FormatTypeImage,
			URL:     src,
			Format:  "jpg",
			ItemID:  shortcode,
		}},
	}
	if caption := strings.TrimSpace(doc.Find(".Caption").First().Text()); caption != "" {
		data.Title = caption
	} else if data.Author != "" {
		data.Title = "Post by @" + data.Author
	} else {
		data.Title = "Instagram post"
	}
	return data, nil
}

// instagramStoryItem mirrors one entry of the authenticated story feed.
type instagramStoryItem struct {
	ID      string `json:"id"`
	TakenAt int64  `json:"taken_at"`

	VideoVersions []struct {
		URL string `json:"url"`
	} `json:"video_versions"`
	ImageVersions struct {
		Candidates []struct {
			URL   string `json:"url"`
			Width int    `json:"width"`
		} `json:"candidates"`
	} `json:"image_versions2"`
}

// extractStory resolves the username to a numeric user ID, then reads the
// authenticated story feed. An auth-shaped failure here (or a missing user
// in the lookup) is a stale cookie far more often than a nonexistent user,
// so it maps to COOKIE_EXPIRED, not NOT_FOUND.
func (s *Instagram) extractStory(ctx context.Context, opts Options) *domain.ExtractionResult {
	username, storyID, _ := strings.Cut(opts.ContentID, ":")
	if username == "" {
		return resultFromError(scraperr.Newf(scraperr.CodeParseError, "no username in story URL"))
	}

	// Every request from here on carries the mandatory cookie.
	userID, err := s.lookupUserID(ctx, username, opts)
	if err != nil {
		return chainError(err, true)
	}

	var feed struct {
		Reel struct {
			User struct {
				Username string `json:"username"`
			} `json:"user"`
			Items []instagramStoryItem `json:"items"`
		} `json:"reel"`
	}
	feedErr := s.fetchStoryFeed(ctx, userID, opts, &feed)
	if feedErr != nil {
		return chainError(feedErr, true)
	}
	if len(feed.Reel.Items) == 0 {
		return chainError(scraperr.Newf(scraperr.CodeNotFound, "no active stories for @%s", username), true)
	}

	var formats []domain.MediaFormat
	var latest int64
	for _, item := range feed.Reel.Items {
		if storyID != "" && !strings.HasPrefix(item.ID, storyID) {
			continue
		}
		f := storyFormat(item)
		if f.URL != "" {
			formats = append(formats, f)
		}
		if item.TakenAt > latest {
			latest = item.TakenAt
		}
	}
	if len(formats) == 0 {
		return chainError(scraperr.Newf(scraperr.CodeNotFound, "story not found or expired"), true)
	}

	data := &domain.ExtractionData{
		Title:      "Story by @" + username,
		Author:     username,
		Formats:    formats,
		Type:       domain.ContentTypeStory,
		UsedCookie: true,
	}
	if latest > 0 {
		t := time.Unix(latest, 0).UTC()
		data.PostedAt = &t
	}
	return resultFromData(data)
}

func (s *Instagram) lookupUserID(ctx context.Context, username string, opts Options) (string, *scraperr.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(s.profileURL, url.PathEscape(username)), nil)
	if err != nil {
		return "", scraperr.Wrap(scraperr.CodeInvalidURL, err)
	}
	req.Header.Set("X-IG-App-ID", instagramAppID)
	req.Header.Set("Accept", "application/json")
	fetch.Decorate(req, opts.Profile, opts.Cookie)

	resp, doErr := s.client.Do(req)
	if doErr != nil {
		return "", scraperr.FromTransport(doErr)
	}
	body, readErr := fetch.ReadBody(resp)
	if readErr != nil {
		return "", scraperr.FromTransport(readErr)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", scraperr.New(scraperr.CodeCookieExpired)
	}
	if statusErr := classifyStatus(resp.StatusCode); statusErr != nil {
		return "", statusErr
	}

	var envelope struct {
		Data struct {
			User *struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	if jsonErr := unmarshalInto(body, &envelope); jsonErr != nil {
		return "", jsonErr
	}
	if envelope.Data.User == nil || envelope.Data.User.ID == "" {
		return "", scraperr.New(scraperr.CodeCookieExpired)
	}
	return envelope.Data.User.ID, nil
}

func (s *Instagram) fetchStoryFeed(ctx context.Context, userID string, opts Options, out any) *scraperr.Error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(s.storyURL, url.PathEscape(userID)), nil)
	if err != nil {
		return scraperr.Wrap(scraperr.CodeInvalidURL, err)
	}
	req.Header.Set("X-IG-App-ID", instagramAppID)
	req.Header.Set("Accept", "application/json")
	fetch.Decorate(req, opts.Profile, opts.Cookie)

	resp, doErr := s.client.Do(req)
	if doErr != nil {
		return scraperr.FromTransport(doErr)
	}
	body, readErr := fetch.ReadBody(resp)
	if readErr != nil {
		return scraperr.FromTransport(readErr)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return scraperr.New(scraperr.CodeCookieExpired)
	}
	if statusErr := classifyStatus(resp.StatusCode); statusErr != nil {
		return statusErr
	}
	return unmarshalInto(body, out)
}

func storyFormat(item instagramStoryItem) domain.MediaFormat {
	if len(item.VideoVersions) > 0 && item.VideoVersions[0].URL != "" {
		f := domain.MediaFormat{
			Quality: "original",
			Type:    domain.FormatTypeVideo,
			URL:     item.VideoVersions[0].URL,
			Format:  "mp4",
			ItemID:  item.ID,
		}
		if c := item.ImageVersions.Candidates; len(c) > 0 {
			f.Thumbnail = c[0].URL
		}
		return f
	}

	src := ""
	best := 0
	for _, c := range item.ImageVersions.Candidates {
		if c.Width > best && c.URL != "" {
			best = c.Width
			src = c.URL
		}
	}
	return domain.MediaFormat{
		Quality: "original",
		Type:    domain.FormatTypeImage,
		URL:     src,
		Format:  "jpg",
		ItemID:  item.ID,
	}
}
