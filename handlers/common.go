package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"roommatch/engine"
	"roommatch/logging"
	"roommatch/middleware"
	"roommatch/store"
	"roommatch/websocket"
)

const requestTimeout = 10 * time.Second

var (
	eng            *engine.Engine
	wsManager      *websocket.Manager
	pushSubs       store.PushSubscriptions
	imageUploader  ImageUploader
	vapidPublicKey string
	logger         logging.Logger = logging.Discard()
)

// SetEngine sets the matching engine every handler works against
func SetEngine(e *engine.Engine) {
	eng = e
}

// SetWebSocketManager sets the global WebSocket manager
func SetWebSocketManager(manager *websocket.Manager) {
	wsManager = manager
}

func SetPushSubscriptions(s store.PushSubscriptions) {
	pushSubs = s
}

// SetImageUploader sets the profile photo backend. Without one, uploads
// answer 503.
func SetImageUploader(u ImageUploader) {
	imageUploader = u
}

func SetVAPIDPublicKey(key string) {
	vapidPublicKey = key
}

func SetLogger(l logging.Logger) {
	logger = l
}

// viewerID reads the canonical id the auth middleware stored.
func viewerID(c *gin.Context) (string, bool) {
	id := c.GetString(middleware.ContextUserID)
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return "", false
	}
	return id, true
}

// sessionFor returns the viewer's live session, creating it if needed.
// Sessions outlive the request, so they never inherit its cancellation. A
// session made here has no heartbeat and is reaped once idle.
func sessionFor(c *gin.Context, viewer string) *engine.Session {
	if s, ok := eng.LookupSession(viewer); ok {
		return s
	}
	ctx := context.WithoutCancel(c.Request.Context())
	name := ""
	if p, err := eng.Profiles().Get(ctx, viewer); err == nil {
		name = p.Name
	}
	return eng.Session(ctx, viewer, name)
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// storeError maps store failures to a response.
func storeError(c *gin.Context, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
		return
	}
	logger.Error(c.Request.Context(), "store request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
}
