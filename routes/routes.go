package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"roommatch/config"
	"roommatch/handlers"
	"roommatch/middleware"
	"roommatch/websocket"
)

// SetupRouter wires the HTTP API. wsManager may be nil, in which case /ws
// is not served. rl limits the write routes; nil disables limiting.
func SetupRouter(cfg *config.Config, wsManager *websocket.Manager, rl *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if !cfg.Release() {
		router.Use(gin.Logger())
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Roommatch API is running",
			"time":    time.Now().UnixMilli(),
			"ws":      "WebSocket available at /ws",
		})
	})

	// Public routes
	router.GET("/api/vapid-public-key", handlers.GetVapidPublicKey)

	protected := router.Group("/api")
	protected.Use(middleware.JWTAuthMiddleware())

	writes := []gin.HandlerFunc{}
	if rl != nil {
		writes = append(writes, middleware.RateLimitMiddleware(rl))
	}
	limited := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, writes...), h)
	}

	// Matches
	protected.GET("/matches", handlers.GetMatches)

	// Profile
	protected.POST("/survey", limited(handlers.SubmitSurvey)...)
	protected.GET("/me", handlers.GetMyProfile)
	protected.PUT("/me", limited(handlers.UpdateMyProfile)...)
	protected.GET("/user/:id", handlers.GetUser)
	protected.POST("/upload-photo", limited(handlers.UploadPhoto)...)

	// Pins
	protected.POST("/pins", limited(handlers.AddPin)...)
	protected.DELETE("/pins", limited(handlers.RemovePin)...)
	protected.GET("/pins", handlers.GetPins)

	// Conversations
	protected.GET("/conversations/:otherId", handlers.GetConversation)
	protected.POST("/conversations/:id/read", handlers.MarkConversationRead)
	protected.POST("/message", limited(handlers.SendMessage)...)
	protected.GET("/messages/:conversationId", handlers.GetMessages)
	protected.GET("/unread", handlers.GetUnread)
	protected.POST("/typing", handlers.SetTyping)

	// Presence
	protected.POST("/presence/online", handlers.SetOnline)
	protected.POST("/presence/offline", handlers.SetOffline)
	protected.POST("/presence/heartbeat", handlers.Heartbeat)
	protected.GET("/presence/:id", handlers.GetPresence)

	// Push subscriptions
	protected.POST("/subscribe", limited(handlers.SubscribePush)...)

	if wsManager != nil {
		wsHandler := websocket.WebSocketHandler(wsManager, middleware.ParseToken)
		router.GET("/ws", func(c *gin.Context) {
			wsHandler(c.Writer, c.Request)
		})
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "Endpoint not found",
				"path":    c.Request.URL.Path,
				"message": "Check the API documentation for available endpoints",
			})
			return
		}
		if c.Request.URL.Path == "/ws" {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "WebSocket endpoint not found",
				"path":  c.Request.URL.Path,
			})
			return
		}
		c.Next()
	})

	return router
}
