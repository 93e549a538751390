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

// weiboCreatedAt is the layout of the mobile API's created_at field.
const weiboCreatedAt = "Mon Jan 02 15:04:05 -0700 2006"

// Weibo extracts statuses through the mobile JSON API. The endpoint serves
// nothing useful to guests, so a cookie is unconditional: without one the
// strategy fails fast before any network call.
type Weibo struct {
	cfg    *config.PlatformConfig
	log    logger.Interface
	client *http.Client

	statusURL string // format: status ID
}

// NewWeibo builds the Weibo strategy.
func NewWeibo(cfg config.Interface, log logger.Interface) *Weibo {
	pc := cfg.GetPlatformConfig(domain.PlatformWeibo)
	return &Weibo{
		cfg:       pc,
		log:       log.WithPlatform(domain.PlatformWeibo),
		client:    fetch.NewClient(pc.RequestTimeout, pc.MaxRedirects),
		statusURL: "https://m.weibo.cn/statuses/show?id=%s",
	}
}

// Platform identifies the strategy.
func (s *Weibo) Platform() string { return domain.PlatformWeibo }

// Extract fetches the status payload with the mandatory cookie.
func (s *Weibo) Extract(ctx context.Context, resolvedURL string, opts Options) *domain.ExtractionResult {
	if opts.Cookie == "" {
		return resultFromError(scraperr.New(scraperr.CodeCookieRequired))
	}

	statusID := opts.ContentID
	if idx := strings.LastIndex(statusID, ":"); idx >= 0 {
		statusID = statusID[idx+1:]
	}
	if statusID == "" {
		return resultFromError(scraperr.Newf(scraperr.CodeParseError, "no status ID in %s", resolvedURL))
	}

	// Past this point the cookie has been transmitted.
	data, err := s.fetchStatus(ctx, statusID, opts)
	if err != nil {
		return chainError(err, true)
	}
	data.URL = resolvedURL
	data.Type = opts.ContentType
	data.UsedCookie = true
	return resultFromData(data)
}

// fetchStatus performs the authenticated API call and parses the envelope.
func (s *Weibo) fetchStatus(ctx context.Context, statusID string, opts Options) (*domain.ExtractionData, *scraperr.Error) {
	body, finalURL, httpStatus, err := fetchPage(ctx, s.client, fmt.Sprintf(s.statusURL, url.QueryEscape(statusID)), opts, "application/json")
	if err != nil {
		return nil, err
	}
	// A dead session answers with a redirect to the passport login page
	// instead of an error envelope.
	if finalURL != nil {
		if redirErr := classifyFinalURL(finalURL, s.cfg); redirErr != nil {
			return nil, redirErr
		}
	}
	if statusErr := classifyStatus(httpStatus); statusErr != nil {
		return nil, statusErr
	}

	var envelope struct {
		OK   int            `json:"ok"`
		Data map[string]any `json:"data"`
	}
	if jsonErr := unmarshalInto(body, &envelope); jsonErr != nil {
		if markerErr := classifyBody(body, s.cfg); markerErr != nil {
			return nil, markerErr
		}
		return nil, jsonErr
	}
	if envelope.OK != 1 || envelope.Data == nil {
		// ok=0 means the status is gone; a rejected session answers with
		// a login redirect, not this envelope.
		return nil, scraperr.New(scraperr.CodeNotFound)
	}

	return weiboData(envelope.Data)
}

// weiboStatus mirrors the mobile API status object.
type weiboStatus struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`

	User struct {
		ScreenName string `json:"screen_name"`
	} `json:"user"`

	PageInfo struct {
		Type      string `json:"type"`
		MediaInfo struct {
			StreamURL   string `json:"stream_url"`
			StreamURLHD string `json:"stream_url_hd"`
		} `json:"media_info"`
		PagePic struct {
			URL string `json:"url"`
		} `json:"page_pic"`
	} `json:"page_info"`

	Pics []struct {
		PID   string `json:"pid"`
		URL   string `json:"url"`
		Large struct {
			URL string `json:"url"`
		} `json:"large"`
	} `json:"pics"`

	AttitudesCount int64 `json:"attitudes_count"`
	CommentsCount  int64 `json:"comments_count"`
	RepostsCount   int64 `json:"reposts_count"`
}

func weiboData(raw map[string]any) (*domain.ExtractionData, *scraperr.Error) {
	var status weiboStatus
	if err := decodeLoose(raw, &status); err != nil {
		return nil, scraperr.Wrap(scraperr.CodeParseError, err)
	}

	thumbnail := status.PageInfo.PagePic.URL

	var formats []domain.MediaFormat
	if hd := status.PageInfo.MediaInfo.StreamURLHD; hd != "" {
		formats = append(formats, domain.MediaFormat{
			Quality: "hd", Type: domain.FormatTypeVideo, URL: hd,
			Format: "mp4", ItemID: status.ID, Thumbnail: thumbnail,
		})
	}
	if sd := status.PageInfo.MediaInfo.StreamURL; sd != "" {
		formats = append(formats, domain.MediaFormat{
			Quality: "sd", Type: domain.FormatTypeVideo, URL: sd,
			Format: "mp4", ItemID: status.ID, Thumbnail: thumbnail,
		})
	}
	for i, pic := range status.Pics {
		src := firstNonEmpty(pic.Large.URL, pic.URL)
		if src == "" {
			continue
		}
		itemID := pic.PID
		if itemID == "" {
			itemID = fmt.Sprintf("%s-%d", status.ID, i+1)
		}
		formats = append(formats, domain.MediaFormat{
			Quality: "original",
			Type:    domain.FormatTypeImage,
			URL:     src,
			Format:  "jpg",
			ItemID:  itemID,
		})
	}
	if len(formats) == 0 {
		return nil, scraperr.New(scraperr.CodeNoMedia)
	}

	data := &domain.ExtractionData{
		Title:     firstNonEmpty(stripTags(status.Text), "Weibo status"),
		Author:    status.User.ScreenName,
		Thumbnail: thumbnail,
		Formats:   formats,
		Engagement: &domain.Engagement{
			Likes:    status.AttitudesCount,
			Comments: status.CommentsCount,
			Shares:   status.RepostsCount,
		},
	}
	if status.CreatedAt != "" {
		if t, err := time.Parse(weiboCreatedAt, status.CreatedAt); err == nil {
			utc := t.UTC()
			data.PostedAt = &utc
		}
	}
	return data, nil
}

// stripTags drops the inline HTML the mobile API leaves in status text.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
