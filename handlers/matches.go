package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetMatches ranks every known profile against the viewer. The ranked list
// is also pushed over the viewer's websocket as a "matches" event.
func GetMatches(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	records := sessionFor(c, viewer).Refresh(c.Request.Context())
	placeholders := len(records) > 0 && records[0].IsPlaceholder()
	if placeholders {
		logger.Warn(c.Request.Context(), "[GetMatches] serving placeholders", "viewerId", viewer)
	}

	c.JSON(http.StatusOK, gin.H{
		"matches":      records,
		"count":        len(records),
		"placeholders": placeholders,
	})
}
