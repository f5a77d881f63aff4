package models

type Message struct {
	ID             string `bson:"_id" json:"id"`
	ConversationID string `bson:"conversationId" json:"conversationId"`
	SenderID       string `bson:"senderId" json:"senderId"`
	Text           string `bson:"text" json:"text"`
	Timestamp      int64  `bson:"timestamp" json:"timestamp"` // unix millis
}

// SendResult is what the messaging collaborator reports for a send.
type SendResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
}

// TypingState is one typing indicator change in a conversation.
type TypingState struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Typing         bool   `json:"typing"`
}
