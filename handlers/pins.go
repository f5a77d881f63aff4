package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"roommatch/models"
)

type pinRequest struct {
	TargetUserID string `json:"targetUserId" binding:"required"`
}

// AddPin keeps a candidate at the top of the viewer's matches.
func AddPin(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target := strings.TrimSpace(req.TargetUserID)
	if target == viewer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot pin yourself"})
		return
	}
	if strings.HasPrefix(target, models.PlaceholderPrefix) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot pin a sample profile"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := eng.Profiles().Get(ctx, target); err != nil {
		storeError(c, err, "User not found")
		return
	}
	if err := eng.Pins().Pin(ctx, viewer, target); err != nil {
		storeError(c, err, "User not found")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Pinned", "targetUserId": target})
}

func RemovePin(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := eng.Pins().Unpin(ctx, viewer, strings.TrimSpace(req.TargetUserID)); err != nil {
		storeError(c, err, "Pin not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Unpinned"})
}

func GetPins(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	pins, err := eng.Pins().Pins(ctx, viewer)
	if err != nil {
		storeError(c, err, "Pins not found")
		return
	}
	if pins == nil {
		pins = []models.Pin{}
	}
	c.JSON(http.StatusOK, gin.H{"pins": pins})
}
