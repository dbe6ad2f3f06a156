package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"checkin-desk-backend/internal/gateway"
)

// GetInstances handles the GET /api/instances?date=YYYY-MM-DD request.
func GetInstances(gw gateway.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		date := strings.TrimSpace(c.Query("date"))
		if _, err := time.Parse(gateway.DateLayout, date); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid date. Use YYYY-MM-DD."})
			return
		}

		opts, err := gw.ListInstancesByDate(c.Request.Context(), date)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Failed to retrieve event instances"})
			return
		}
		if opts == nil {
			opts = []gateway.InstanceOption{}
		}
		c.JSON(http.StatusOK, opts)
	}
}
