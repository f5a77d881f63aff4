package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roommatch/models"
)

func GetVapidPublicKey(c *gin.Context) {
	if vapidPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "VAPID public key not configured",
			"message": "Contact administrator",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"publicKey": vapidPublicKey,
		"message":   "VAPID public key retrieved successfully",
	})
}

// SubscribePush stores the viewer's browser push subscription, replacing
// any previous one.
func SubscribePush(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
		Keys     struct {
			P256dh string `json:"p256dh" binding:"required"`
			Auth   string `json:"auth" binding:"required"`
		} `json:"keys" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if pushSubs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push notifications are not configured"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	sub := models.PushSubscription{
		UserID:   viewer,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := pushSubs.Save(ctx, sub); err != nil {
		logger.Error(ctx, "[SubscribePush] failed to save subscription", "userId", viewer, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save subscription"})
		return
	}

	logger.Info(ctx, "[SubscribePush] push subscription saved", "userId", viewer)
	c.JSON(http.StatusOK, gin.H{
		"message": "Push subscription saved successfully",
		"userId":  viewer,
	})
}
