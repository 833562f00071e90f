package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/aniload-go/internal/app"
	"github.com/yourusername/aniload-go/internal/domain"
	"go.uber.org/zap"
)

// ItemHandler handles download item HTTP requests
type ItemHandler struct {
	queueMgr    *app.QueueManager
	downloadMgr *app.DownloadManager
	logger      *zap.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(queueMgr *app.QueueManager, downloadMgr *app.DownloadManager, logger *zap.Logger) *ItemHandler {
	return &ItemHandler{
		queueMgr:    queueMgr,
		downloadMgr: downloadMgr,
		logger:      logger,
	}
}

// EnqueueItemRequest represents a request to enqueue a download
type EnqueueItemRequest struct {
	AnimeID       string `json:"anime_id" binding:"required"`
	Title         string `json:"title" binding:"required"`
	EpisodeNumber int    `json:"episode_number"`
	AudioType     string `json:"audio_type,omitempty"`
	Thumbnail     string `json:"thumbnail,omitempty"`
}

// EnqueueItem handles POST /api/v1/items
func (h *ItemHandler) EnqueueItem(c *gin.Context) {
	var req EnqueueItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	audio := domain.AudioType(req.AudioType)
	if audio == "" {
		audio = domain.AudioSub
	}

	item, err := h.queueMgr.Enqueue(app.EnqueueRequest{
		AnimeID:       req.AnimeID,
		Title:         req.Title,
		EpisodeNumber: req.EpisodeNumber,
		AudioType:     audio,
		Thumbnail:     req.Thumbnail,
	})
	if err != nil {
		h.logger.Error("Failed to enqueue item", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, item)
}

// GetItem handles GET /api/v1/items/:id
func (h *ItemHandler) GetItem(c *gin.Context) {
	id := c.Param("id")

	item, err := h.queueMgr.GetItem(id)
	if err != nil || item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}

	c.JSON(http.StatusOK, item)
}

// ListItems handles GET /api/v1/items
func (h *ItemHandler) ListItems(c *gin.Context) {
	filters := make(map[string]interface{})

	if status := c.Query("status"); status != "" {
		if !domain.ValidateStatus(domain.ItemStatus(status)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + status})
			return
		}
		filters["status"] = status
	}
	if animeID := c.Query("anime_id"); animeID != "" {
		filters["anime_id"] = animeID
	}

	items, err := h.queueMgr.ListItems(filters)
	if err != nil {
		h.logger.Error("Failed to list items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, items)
}

// GetStats handles GET /api/v1/items/stats
func (h *ItemHandler) GetStats(c *gin.Context) {
	stats, err := h.queueMgr.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// PauseItem handles POST /api/v1/items/:id/pause
func (h *ItemHandler) PauseItem(c *gin.Context) {
	id := c.Param("id")

	if err := h.downloadMgr.Pause(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "pausing"})
}

// ResumeItem handles POST /api/v1/items/:id/resume
func (h *ItemHandler) ResumeItem(c *gin.Context) {
	id := c.Param("id")

	if err := h.downloadMgr.Resume(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.queueMgr.Kick()
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

// CancelItem handles POST /api/v1/items/:id/cancel
func (h *ItemHandler) CancelItem(c *gin.Context) {
	id := c.Param("id")

	if err := h.downloadMgr.Cancel(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

// RemoveItem handles DELETE /api/v1/items/:id
func (h *ItemHandler) RemoveItem(c *gin.Context) {
	id := c.Param("id")

	if err := h.downloadMgr.Remove(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// ClearItems handles DELETE /api/v1/items
func (h *ItemHandler) ClearItems(c *gin.Context) {
	if err := h.downloadMgr.ClearAll(); err != nil {
		h.logger.Error("Failed to clear items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// ValidateItems handles POST /api/v1/items/validate
func (h *ItemHandler) ValidateItems(c *gin.Context) {
	removed, err := h.downloadMgr.ValidateAndCleanup()
	if err != nil {
		h.logger.Error("Failed to validate items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
