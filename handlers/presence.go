package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"roommatch/presence"
)

// SetOnline marks the viewer online without a websocket, e.g. from a
// background tab's keepalive.
func SetOnline(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	name := ""
	if p, err := eng.Profiles().Get(ctx, viewer); err == nil {
		name = p.Name
	}
	if err := eng.Presence().SetOnline(ctx, viewer, name); err != nil {
		storeError(c, err, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": true})
}

// SetOffline is called from the page unload path.
func SetOffline(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := eng.Presence().SetOffline(ctx, viewer); err != nil && !errors.Is(err, presence.ErrUnknownUser) {
		storeError(c, err, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": false})
}

// Heartbeat refreshes lastActivityAt. A heartbeat for a user with no record
// creates one.
func Heartbeat(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	err := eng.Presence().Heartbeat(ctx, viewer)
	if errors.Is(err, presence.ErrUnknownUser) {
		err = eng.Presence().SetOnline(ctx, viewer, "")
	}
	if err != nil {
		storeError(c, err, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": true})
}

// GetPresence reports whether a user is actually online: a heartbeat within
// the online window, whatever the stored flag says.
func GetPresence(c *gin.Context) {
	if _, ok := viewerID(c); !ok {
		return
	}
	id := c.Param("id")

	ctx, cancel := requestContext(c)
	defer cancel()

	rec, err := eng.Presence().Get(ctx, id)
	if errors.Is(err, presence.ErrUnknownUser) {
		c.JSON(http.StatusOK, gin.H{"userId": id, "online": false, "lastActivityAt": 0})
		return
	}
	if err != nil {
		storeError(c, err, "User not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":         id,
		"name":           rec.Name,
		"online":         rec.ActuallyOnline(time.Now(), presence.OnlineWindow),
		"lastActivityAt": rec.LastActivityAt,
		"connected":      wsManager != nil && wsManager.IsConnected(id),
	})
}
