package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/socialgrab/internal/logger"
	"github.com/jonesrussell/socialgrab/internal/orchestrator"
)

// ExtractRequest is the body of POST /api/v1/extract.
type ExtractRequest struct {
	URL       string `json:"url"        binding:"required"`
	Tier      string `json:"tier"`
	SkipCache bool   `json:"skip_cache"`
}

// handleExtract runs an extraction and returns the result envelope. The
// envelope is the contract: failed extractions still respond 200 with
// success=false and a machine-readable error_code, so clients branch on the
// body rather than the status line. Only a malformed request is a 400.
func handleExtract(log logger.Interface, extractor Extractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		if extractor == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "extraction unavailable"})
			return
		}

		var req ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), extractTimeout)
		defer cancel()

		result := extractor.Extract(ctx, req.URL, orchestrator.Options{
			Tier:      req.Tier,
			SkipCache: req.SkipCache,
		})

		if !result.Success {
			log.Debug("Extraction failed",
				"url", req.URL,
				"error_code", result.ErrorCode,
			)
		}

		c.JSON(http.StatusOK, result)
	}
}
