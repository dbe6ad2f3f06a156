package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetHealth handles the GET /health request.
func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "desks": h.desks.Len()})
}

type widgetConfigResponse struct {
	Title         string `json:"title"`
	CheckinStatus string `json:"checkinStatus"`
	PageSize      int    `json:"pageSize"`
	PushEnabled   bool   `json:"pushEnabled"`
}

// GetConfig handles the GET /api/config request.
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, widgetConfigResponse{
		Title:         h.widget.Title,
		CheckinStatus: h.widget.CheckinStatus,
		PageSize:      h.widget.PageSize,
		PushEnabled:   h.webpush != nil && h.webpush.VAPIDPublicKey != "",
	})
}
