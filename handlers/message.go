package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"roommatch/models"
)

const maxMessageLength = 2000

// SendMessage posts a message to the conversation with receiverId. A store
// failure answers 502 with success=false so the client can retry.
func SendMessage(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	var req struct {
		ReceiverID string `json:"receiverId" binding:"required"`
		Text       string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	text := strings.TrimSpace(req.Text)
	switch {
	case text == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message text is required"})
		return
	case len(text) > maxMessageLength:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is too long"})
		return
	case req.ReceiverID == viewer:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot message yourself"})
		return
	case strings.HasPrefix(req.ReceiverID, models.PlaceholderPrefix):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot message a sample profile"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := sessionFor(c, viewer).Send(ctx, req.ReceiverID, text)
	if err != nil {
		logger.Error(ctx, "[SendMessage] send failed", "viewerId", viewer, "receiverId", req.ReceiverID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "Failed to send message"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":        res.Success,
		"id":             res.ID,
		"conversationId": models.ConversationID(viewer, req.ReceiverID),
	})
}

// GetMessages returns a conversation's history. Only participants may read it.
func GetMessages(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}
	convID := c.Param("conversationId")
	if _, ok := models.Partner(convID, viewer); !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to conversation"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	msgs, err := eng.Messaging().History(ctx, convID)
	if err != nil {
		storeError(c, err, "Conversation not found")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"conversationId": convID, "messages": msgs})
}

// SetTyping starts or clears the viewer's typing indicator toward otherId.
// Starting it again within the timeout extends it.
func SetTyping(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	var req struct {
		OtherID string `json:"otherId" binding:"required"`
		Typing  bool   `json:"typing"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.OtherID == viewer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation"})
		return
	}

	s := sessionFor(c, viewer)
	if req.Typing {
		s.Keystroke(c.Request.Context(), req.OtherID)
	} else {
		s.StopTyping(req.OtherID)
	}
	c.JSON(http.StatusOK, gin.H{"typing": req.Typing})
}
