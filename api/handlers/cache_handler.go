package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/aniload-go/internal/app"
)

// CacheHandler handles scratch cache HTTP requests
type CacheHandler struct {
	cacheMgr *app.CacheManager
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(cacheMgr *app.CacheManager) *CacheHandler {
	return &CacheHandler{cacheMgr: cacheMgr}
}

// GetUsage handles GET /api/v1/cache/usage
func (h *CacheHandler) GetUsage(c *gin.Context) {
	c.JSON(http.StatusOK, h.cacheMgr.ScanSize())
}

// Cleanup handles POST /api/v1/cache/cleanup
func (h *CacheHandler) Cleanup(c *gin.Context) {
	h.cacheMgr.SmartCleanup()
	c.JSON(http.StatusOK, gin.H{"status": "cleaned", "usage": h.cacheMgr.ScanSize()})
}
