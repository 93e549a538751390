package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/socialgrab/internal/database"
	"github.com/jonesrussell/socialgrab/internal/domain"
	"github.com/jonesrussell/socialgrab/internal/logger"
)

// CookieAdmin is the slice of the cookie repository the admin endpoints use.
type CookieAdmin interface {
	List(ctx context.Context, platform string) ([]domain.Credential, error)
	Create(ctx context.Context, params database.CreateParams) (string, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// Sealer encrypts a raw cookie header for storage.
type Sealer interface {
	Seal(cookie string) (string, error)
}

// ProfileAdmin is the slice of the profile repository the admin endpoints use.
type ProfileAdmin interface {
	List(ctx context.Context) ([]domain.BrowserProfile, error)
	Create(ctx context.Context, params database.ProfileParams) (string, error)
}

// AddCookieRequest is the body of POST /api/v1/admin/cookies.
type AddCookieRequest struct {
	Platform string `json:"platform" binding:"required"`
	Tier     string `json:"tier"`
	Cookie   string `json:"cookie"   binding:"required"`
}

// AddProfileRequest is the body of POST /api/v1/admin/profiles.
type AddProfileRequest struct {
	Platform       string  `json:"platform"        binding:"required"`
	UserAgent      string  `json:"user_agent"      binding:"required"`
	SecChUa        *string `json:"sec_ch_ua"`
	AcceptLanguage string  `json:"accept_language"`
	Priority       int     `json:"priority"`
}

func validPlatform(platform string) bool {
	switch platform {
	case domain.PlatformFacebook, domain.PlatformInstagram, domain.PlatformTikTok,
		domain.PlatformTwitter, domain.PlatformWeibo, domain.PlatformYouTube:
		return true
	}
	return false
}

// handleListCookies lists pool credentials, optionally filtered by the
// platform query parameter. Ciphertext never leaves the struct's json:"-".
func handleListCookies(log logger.Interface, cookies CookieAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		creds, err := cookies.List(c.Request.Context(), c.Query("platform"))
		if err != nil {
			log.WithError(err).Error("Failed to list credentials")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list credentials"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"cookies": creds,
			"count":   len(creds),
		})
	}
}

// handleAddCookie encrypts and stores a new credential.
func handleAddCookie(log logger.Interface, cookies CookieAdmin, sealer Sealer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddCookieRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "platform and cookie are required"})
			return
		}
		if !validPlatform(req.Platform) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform: " + req.Platform})
			return
		}
		tier := req.Tier
		if tier == "" {
			tier = domain.TierPublic
		}
		if tier != domain.TierPublic && tier != domain.TierPrivate {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tier must be public or private"})
			return
		}

		ciphertext, err := sealer.Seal(req.Cookie)
		if err != nil {
			log.WithError(err).Error("Failed to encrypt cookie")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encrypt cookie"})
			return
		}

		id, err := cookies.Create(c.Request.Context(), database.CreateParams{
			Platform:         req.Platform,
			Tier:             tier,
			CookieCiphertext: ciphertext,
		})
		if err != nil {
			log.WithError(err).Error("Failed to store credential")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store credential"})
			return
		}

		log.Info("Credential added", "id", id, "platform", req.Platform, "tier", tier)
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}

// handleSetCookieEnabled flips a credential's enabled flag.
func handleSetCookieEnabled(log logger.Interface, cookies CookieAdmin, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := cookies.SetEnabled(c.Request.Context(), id, enabled); err != nil {
			log.WithError(err).Error("Failed to update credential", "id", id)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update credential"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": id, "enabled": enabled})
	}
}

// handleListProfiles lists all browser profiles, enabled or not.
func handleListProfiles(log logger.Interface, profiles ProfileAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := profiles.List(c.Request.Context())
		if err != nil {
			log.WithError(err).Error("Failed to list profiles")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list profiles"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"profiles": list,
			"count":    len(list),
		})
	}
}

// handleAddProfile stores a new browser profile.
func handleAddProfile(log logger.Interface, profiles ProfileAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "platform and user_agent are required"})
			return
		}
		if req.Platform != domain.PlatformAll && !validPlatform(req.Platform) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform: " + req.Platform})
			return
		}

		id, err := profiles.Create(c.Request.Context(), database.ProfileParams{
			Platform:       req.Platform,
			UserAgent:      req.UserAgent,
			SecChUa:        req.SecChUa,
			AcceptLanguage: req.AcceptLanguage,
			Priority:       req.Priority,
		})
		if err != nil {
			log.WithError(err).Error("Failed to store profile")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store profile"})
			return
		}

		log.Info("Profile added", "id", id, "platform", req.Platform)
		c.JSON(http.StatusCreated, gin.H{"id": id})
	}
}
