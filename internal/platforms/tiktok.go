package platforms

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/fetch"
	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/scraperr"
)

// TikTok extracts videos and photo posts from the hydration JSON embedded in
// the web page. No cookie dependency: every fetch runs as guest.
type TikTok struct {
	cfg    *config.PlatformConfig
	log    logger.Interface
	client *http.Client
}

// NewTikTok builds the TikTok strategy.
func NewTikTok(cfg config.Interface, log logger.Interface) *TikTok {
	pc := cfg.GetPlatformConfig(domain.PlatformTikTok)
	return &TikTok{
		cfg:    pc,
		log:    log.WithPlatform(domain.PlatformTikTok),
		client: fetch.NewClient(pc.RequestTimeout, pc.MaxRedirects),
	}
}

// Platform identifies the strategy.
func (s *TikTok) Platform() string { return domain.PlatformTikTok }

// Extract fetches the page and parses the rehydration state.
func (s *TikTok) Extract(ctx context.Context, resolvedURL string, opts Options) *domain.ExtractionResult {
	guest := opts
	guest.Cookie = ""

	body, _, status, err := fetchPage(ctx, s.client, resolvedURL, guest, "")
	if err != nil {
		return resultFromError(err)
	}
	if statusErr := classifyStatus(status); statusErr != nil {
		return resultFromError(statusErr)
	}
	if markerErr := classifyBody(body, s.cfg); markerErr != nil {
		return resultFromError(markerErr)
	}

	item, parseErr := tiktokItem(body)
	if parseErr != nil {
		return resultFromError(parseErr)
	}

	data, buildErr := tiktokData(item)
	if buildErr != nil {
		return resultFromError(buildErr)
	}
	data.URL = resolvedURL
	data.Type = opts.ContentType
	return resultFromData(data)
}

// tiktokItem locates the item struct inside the page's hydration JSON,
// trying the current UNIVERSAL_DATA blob first and the older SIGI_STATE
// second.
func tiktokItem(body []byte) (map[string]any, *scraperr.Error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, scraperr.Wrap(scraperr.CodeParseError, err)
	}

	if raw := doc.Find("script#__UNIVERSAL_DATA_FOR_REHYDRATION__").First().Text(); raw != "" {
		var state map[string]any
		if jsonErr := unmarshalInto([]byte(raw), &state); jsonErr == nil {
			if item := digMap(state, "__DEFAULT_SCOPE__", "webapp.video-detail", "itemInfo", "itemStruct"); item != nil {
				return item, nil
			}
			// The detail scope carries a status code when the item is gone.
			if detail := digMap(state, "__DEFAULT_SCOPE__", "webapp.video-detail"); detail != nil {
				if code, ok := detail["statusCode"].(float64); ok && code != 0 {
					return nil, scraperr.New(scraperr.CodeNotFound)
				}
			}
		}
	}

	if raw := doc.Find("script#SIGI_STATE").First().Text(); raw != "" {
		var state map[string]any
		if jsonErr := unmarshalInto([]byte(raw), &state); jsonErr == nil {
			if module := digMap(state, "ItemModule"); module != nil {
				for _, v := range module {
					if item, ok := v.(map[string]any); ok {
						return item, nil
					}
				}
			}
		}
	}

	return nil, scraperr.Newf(scraperr.CodeParseError, "no hydration state in page")
}

// tiktokStruct mirrors the fields of the item struct the engine consumes.
type tiktokStruct struct {
	ID         string `json:"id"`
	Desc       string `json:"desc"`
	CreateTime int64  `json:"createTime"`

	Author struct {
		UniqueID string `json:"uniqueId"`
		Nickname string `json:"nickname"`
	} `json:"author"`

	Video struct {
		PlayAddr     string `json:"playAddr"`
		DownloadAddr string `json:"downloadAddr"`
		Cover        string `json:"cover"`
	} `json:"video"`

	ImagePost struct {
		Images []struct {
			ImageURL struct {
				URLList []string `json:"urlList"`
			} `json:"imageURL"`
		} `json:"images"`
	} `json:"imagePost"`

	Stats struct {
		PlayCount    int64 `json:"playCount"`
		DiggCount    int64 `json:"diggCount"`
		CommentCount int64 `json:"commentCount"`
		ShareCount   int64 `json:"shareCount"`
	} `json:"stats"`

	Music struct {
		PlayURL string `json:"playUrl"`
	} `json:"music"`
}

// tiktokData normalizes an item struct into extraction data. Photo posts
// yield one image format per slide; videos prefer the watermark-free
// download address when present.
func tiktokData(item map[string]any) (*domain.ExtractionData, *scraperr.Error) {
	// The older state shape stores the author as a bare username string.
	if author, ok := item["author"].(string); ok {
		item["author"] = map[string]any{"uniqueId": author}
	}

	var ts tiktokStruct
	if err := decodeLoose(item, &ts); err != nil {
		return nil, scraperr.Wrap(scraperr.CodeParseError, err)
	}

	var formats []domain.MediaFormat
	if images := ts.ImagePost.Images; len(images) > 0 {
		for i, img := range images {
			if len(img.ImageURL.URLList) == 0 {
				continue
			}
			formats = append(formats, domain.MediaFormat{
				Quality: "original",
				Type:    domain.FormatTypeImage,
				URL:     img.ImageURL.URLList[0],
				Format:  "jpg",
				ItemID:  itemSlideID(ts.ID, i),
			})
		}
		if ts.Music.PlayURL != "" {
			formats = append(formats, domain.MediaFormat{
				Quality: "original",
				Type:    domain.FormatTypeAudio,
				URL:     ts.Music.PlayURL,
				Format:  "mp3",
				ItemID:  ts.ID,
			})
		}
	} else {
		if src := firstNonEmpty(ts.Video.DownloadAddr, ts.Video.PlayAddr); src != "" {
			formats = append(formats, domain.MediaFormat{
				Quality:   "original",
				Type:      domain.FormatTypeVideo,
				URL:       src,
				Format:    "mp4",
				ItemID:    ts.ID,
				Thumbnail: ts.Video.Cover,
			})
		}
	}
	if len(formats) == 0 {
		return nil, scraperr.New(scraperr.CodeNoMedia)
	}

	author := firstNonEmpty(ts.Author.Nickname, ts.Author.UniqueID)
	data := &domain.ExtractionData{
		Title:     firstNonEmpty(ts.Desc, "TikTok video"),
		Thumbnail: ts.Video.Cover,
		Author:    author,
		Formats:   formats,
		Engagement: &domain.Engagement{
			Views:    ts.Stats.PlayCount,
			Likes:    ts.Stats.DiggCount,
			Comments: ts.Stats.CommentCount,
			Shares:   ts.Stats.ShareCount,
		},
	}
	if ts.CreateTime > 0 {
		t := time.Unix(ts.CreateTime, 0).UTC()
		data.PostedAt = &t
	}
	return data, nil
}

func itemSlideID(id string, index int) string {
	if id == "" {
		id = "slide"
	}
	return id + "-" + strconv.Itoa(index+1)
}
