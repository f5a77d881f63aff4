package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roommatch/models"
)

// GetConversation opens the conversation with otherId: its history, the
// viewer's unread count, and a live watch so new messages reach the websocket.
func GetConversation(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}
	otherID := c.Param("otherId")
	if otherID == "" || otherID == viewer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation partner"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	s := sessionFor(c, viewer)
	if err := s.Watch(ctx, otherID); err != nil {
		logger.Warn(ctx, "[GetConversation] watch failed", "viewerId", viewer, "otherId", otherID, "error", err)
	}

	convID := eng.ConversationIDFor(viewer, otherID)
	msgs, err := eng.Messaging().History(ctx, convID)
	if err != nil {
		storeError(c, err, "Conversation not found")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{
		"conversationId": convID,
		"messages":       msgs,
		"unread":         s.GetUnreadCount(convID),
		"partnerOnline":  s.IsOnline(ctx, otherID),
	})
}

// MarkConversationRead zeroes the viewer's unread count for a conversation
// and tells the partner.
func MarkConversationRead(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}
	convID := c.Param("id")
	// wsManager may be nil; the receipt is then skipped.
	if !wsManager.MarkRead(c.Request.Context(), sessionFor(c, viewer), convID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversationId": convID, "unread": 0})
}

// GetUnread lists unread counts for every conversation the viewer watches.
func GetUnread(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	counts := sessionFor(c, viewer).UnreadCounts()
	total := 0
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts, "total": total})
}
