package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"

	"github.com/jonesrussell/socialgrab/internal/config"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/scraperr"
)

// commandRunner executes a subprocess and returns its stdout. The error may
// coexist with useful stdout: the helper prints its JSON envelope before
// exiting nonzero.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// YouTube extracts through a yt-dlp helper subprocess rather than a fetch
// chain: YouTube's player protocol churns too fast to track in-process, and
// no cookie pool or fingerprint rotation is involved.
type YouTube struct {
	cfg *config.YtDlpConfig
	log logger.Interface
	run commandRunner
}

// NewYouTube builds the YouTube strategy.
func NewYouTube(cfg config.Interface, log logger.Interface) *YouTube {
	return &YouTube{
		cfg: cfg.GetYtDlpConfig(),
		log: log.WithPlatform(domain.PlatformYouTube),
		run: runCommand,
	}
}

// Platform identifies the strategy.
func (s *YouTube) Platform() string { return domain.PlatformYouTube }

// ytdlpEnvelope is the helper's stdout contract.
type ytdlpEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Author      string `json:"author"`
		Thumbnail   string `json:"thumbnail"`
		ViewCount   int64  `json:"view_count"`
		LikeCount   int64  `json:"like_count"`
		Formats     []struct {
			FormatID string `json:"format_id"`
			Quality  string `json:"quality"`
			Ext      string `json:"ext"`
			Filesize int64  `json:"filesize"`
			URL      string `json:"url"`
			Type     string `json:"type"`
		} `json:"formats"`
	} `json:"data"`
}

// Extract invokes the helper and maps its envelope onto the result model.
func (s *YouTube) Extract(ctx context.Context, resolvedURL string, opts Options) *domain.ExtractionResult {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	stdout, runErr := s.run(ctx, s.cfg.Python, s.cfg.ScriptPath, resolvedURL)

	var envelope ytdlpEnvelope
	if jsonErr := json.Unmarshal(bytes.TrimSpace(stdout), &envelope); jsonErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return resultFromError(scraperr.Wrap(scraperr.CodeTimeout, ctx.Err()))
		}
		if runErr != nil {
			s.log.Error("helper failed without envelope", "error", runErr)
			return resultFromError(scraperr.Wrap(scraperr.CodeAPIError, runErr))
		}
		return resultFromError(scraperr.Wrap(scraperr.CodeParseError, jsonErr))
	}
	if !envelope.Success {
		return resultFromError(classifyYtDlpError(envelope.Error))
	}

	var formats []domain.MediaFormat
	for _, f := range envelope.Data.Formats {
		if f.URL == "" {
			continue
		}
		ftype := f.Type
		if ftype != domain.FormatTypeAudio {
			ftype = domain.FormatTypeVideo
		}
		formats = append(formats, domain.MediaFormat{
			Quality:   f.Quality,
			Type:      ftype,
			URL:       f.URL,
			Format:    f.Ext,
			ItemID:    f.FormatID,
			Thumbnail: envelope.Data.Thumbnail,
			Filesize:  f.Filesize,
		})
	}
	if len(formats) == 0 {
		return resultFromError(scraperr.New(scraperr.CodeNoMedia))
	}

	data := &domain.ExtractionData{
		Title:       firstNonEmpty(envelope.Data.Title, "YouTube video"),
		Description: envelope.Data.Description,
		Author:      envelope.Data.Author,
		Thumbnail:   envelope.Data.Thumbnail,
		Formats:     formats,
		URL:         resolvedURL,
		Type:        domain.ContentTypeVideo,
		Engagement: &domain.Engagement{
			Views: envelope.Data.ViewCount,
			Likes: envelope.Data.LikeCount,
		},
	}
	return resultFromData(data)
}

// classifyYtDlpError maps yt-dlp's prose errors onto the taxonomy.
func classifyYtDlpError(msg string) *scraperr.Error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "private video"):
		return scraperr.Newf(scraperr.CodePrivateContent, "%s", msg)
	case strings.Contains(lower, "age"):
		return scraperr.Newf(scraperr.CodeAgeRestricted, "%s", msg)
	case strings.Contains(lower, "removed"):
		return scraperr.Newf(scraperr.CodeContentRemoved, "%s", msg)
	case strings.Contains(lower, "available in your country"),
		strings.Contains(lower, "geo"):
		return scraperr.Newf(scraperr.CodeGeoBlocked, "%s", msg)
	case strings.Contains(lower, "unavailable"), strings.Contains(lower, "does not exist"):
		return scraperr.Newf(scraperr.CodeNotFound, "%s", msg)
	case strings.Contains(lower, "timed out"):
		return scraperr.Newf(scraperr.CodeTimeout, "%s", msg)
	default:
		return scraperr.Newf(scraperr.CodeAPIError, "%s", msg)
	}
}

// runCommand executes the helper, returning whatever stdout it produced.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return stdout.Bytes(), errors.New(strings.TrimSpace(stderr.String()))
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}
