package platforms

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/fetch"
	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/scraperr"
)

// Twitter extracts tweets through the syndication API, guest first with a
// single cookie retry.
type Twitter struct {
	cfg    *config.PlatformConfig
	log    logger.Interface
	client *http.Client

	syndicationURL string // format: tweet ID
}

// NewTwitter builds the Twitter strategy.
func NewTwitter(cfg config.Interface, log logger.Interface) *Twitter {
	pc := cfg.GetPlatformConfig(domain.PlatformTwitter)
	return &Twitter{
		cfg:            pc,
		log:            log.WithPlatform(domain.PlatformTwitter),
		client:         fetch.NewClient(pc.RequestTimeout, pc.MaxRedirects),
		syndicationURL: "https://cdn.syndication.twimg.com/tweet-result?id=%s&token=a",
	}
}

// Platform identifies the strategy.
func (s *Twitter) Platform() string { return domain.PlatformTwitter }

// Extract fetches the tweet payload, as guest and then with the cookie.
func (s *Twitter) Extract(ctx context.Context, resolvedURL string, opts Options) *domain.ExtractionResult {
	tweetID := opts.ContentID
	if tweetID == "" {
		return resultFromError(scraperr.Newf(scraperr.CodeParseError, "no tweet ID in %s", resolvedURL))
	}

	guest := opts
	guest.Cookie = ""

	attempts := []attempt{
		{name: "syndication-guest", run: func(ctx context.Context) (*domain.ExtractionData, *scraperr.Error) {
			return s.fetchTweet(ctx, tweetID, guest, false)
		}},
	}
	if opts.Cookie != "" {
		attempts[0].soft = func(code scraperr.Code) bool {
			// Age gates and protected tweets are worth one authenticated try.
			if code == scraperr.CodeAgeRestricted || code == scraperr.CodePrivateContent {
				return true
			}
			return defaultSoft(code)
		}
		attempts = append(attempts, attempt{name: "syndication-cookie", usesCookie: true, run: func(ctx context.Context) (*domain.ExtractionData, *scraperr.Error) {
			return s.fetchTweet(ctx, tweetID, opts, true)
		}})
	}

	data, cookieTried, err := runChain(ctx, s.log, attempts)
	if err != nil {
		return chainError(err, cookieTried)
	}
	data.URL = resolvedURL
	data.Type = opts.ContentType
	return resultFromData(data)
}

// tweetPayload mirrors the syndication tweet-result envelope.
type tweetPayload struct {
	Typename string `json:"__typename"`
	Text     string `json:"text"`
	Created  string `json:"created_at"`

	User struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
	} `json:"user"`

	Photos []struct {
		URL string `json:"url"`
	} `json:"photos"`

	Video struct {
		Poster   string `json:"poster"`
		Variants []struct {
			Type string `json:"type"`
			Src  string `json:"src"`
		} `json:"variants"`
	} `json:"video"`

	FavoriteCount     int64 `json:"favorite_count"`
	ConversationCount int64 `json:"conversation_count"`
}

func (s *Twitter) fetchTweet(ctx context.Context, tweetID string, opts Options, usedCookie bool) (*domain.ExtractionData, *scraperr.Error) {
	target := fmt.Sprintf(s.syndicationURL, url.QueryEscape(tweetID))

	var payload tweetPayload
	if err := fetchJSON(ctx, s.client, target, opts, &payload); err != nil {
		return nil, err
	}

	// The endpoint answers tombstones for withheld tweets instead of
	// failing the request.
	switch payload.Typename {
	case "TweetTombstone":
		return nil, scraperr.New(scraperr.CodePrivateContent)
	}
	if payload.User.ScreenName == "" && len(payload.Photos) == 0 && len(payload.Video.Variants) == 0 {
		return nil, scraperr.New(scraperr.CodeNotFound)
	}

	var formats []domain.MediaFormat
	for _, v := range payload.Video.Variants {
		if v.Type != "video/mp4" || v.Src == "" {
			continue
		}
		formats = append(formats, domain.MediaFormat{
			Quality:   videoVariantQuality(v.Src),
			Type:      domain.FormatTypeVideo,
			URL:       v.Src,
			Format:    "mp4",
			ItemID:    tweetID,
			Thumbnail: payload.Video.Poster,
		})
	}
	for i, p := range payload.Photos {
		if p.URL == "" {
			continue
		}
		formats = append(formats, domain.MediaFormat{
			Quality: "original",
			Type:    domain.FormatTypeImage,
			URL:     p.URL,
			Format:  "jpg",
			ItemID:  fmt.Sprintf("%s-%d", tweetID, i+1),
		})
	}
	if len(formats) == 0 {
		return nil, scraperr.New(scraperr.CodeNoMedia)
	}

	data := &domain.ExtractionData{
		Title:     firstNonEmpty(payload.Text, "Tweet"),
		Author:    firstNonEmpty(payload.User.Name, payload.User.ScreenName),
		Thumbnail: payload.Video.Poster,
		Formats:   formats,
		Engagement: &domain.Engagement{
			Likes:    payload.FavoriteCount,
			Comments: payload.ConversationCount,
		},
		UsedCookie: usedCookie,
	}
	if payload.Created != "" {
		if t, err := time.Parse(time.RFC3339, payload.Created); err == nil {
			utc := t.UTC()
			data.PostedAt = &utc
		}
	}
	return data, nil
}

// videoVariantQuality labels a variant from the rendition segment of its
// URL ("/vid/1280x720/"), falling back to "video".
func videoVariantQuality(src string) string {
	parts := strings.Split(src, "/")
	for i, p := range parts {
		if p == "vid" && i+1 < len(parts) {
			if _, h, ok := strings.Cut(parts[i+1], "x"); ok && isNumeric(h) {
				return h + "p"
			}
		}
	}
	return "video"
}
