package handler

import (
	"net/http"
	"prodtest-collector/internal/usecase/viewer"

	"github.com/gin-gonic/gin"
)

type ViewerHandler struct {
	tracker *viewer.Tracker
}

func NewViewerHandler(tracker *viewer.Tracker) *ViewerHandler {
	return &ViewerHandler{tracker: tracker}
}

func (h *ViewerHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/viewers", h.Heartbeat)
}

// Heartbeat registers the caller as an active viewer and reports who else is
// watching. ClientIP honors X-Forwarded-For behind a reverse proxy.
func (h *ViewerHandler) Heartbeat(c *gin.Context) {
	count, ips := h.tracker.Heartbeat(c.ClientIP())

	c.JSON(http.StatusOK, gin.H{
		"count": count,
		"ips":   ips,
	})
}
