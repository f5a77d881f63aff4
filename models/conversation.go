package models

import (
	"sort"
	"strings"
)

// ConversationDelimiter joins the two participant ids of a conversation id.
const ConversationDelimiter = "_"

// ConversationState is one two-party conversation as seen by its participants.
type ConversationState struct {
	ID           string           `json:"id"`
	Participants []string         `json:"participants"`
	Messages     []Message        `json:"messages"`
	LastRead     map[string]int64 `json:"lastRead"`
}

// ConversationID derives the conversation identifier for two participants.
// The result does not depend on argument order.
func ConversationID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ConversationDelimiter)
}

// Participants splits a conversation id back into its two participants.
// Profile ids may contain the delimiter themselves, so the split is taken at
// the delimiter that leaves both halves with the same number of delimiters,
// falling back to the first one.
func Participants(conversationID string) (string, string, bool) {
	n := strings.Count(conversationID, ConversationDelimiter)
	if n == 0 {
		return "", "", false
	}
	at := 0
	if n%2 == 1 {
		at = n / 2
	}
	idx := -1
	for i := 0; i <= at; i++ {
		next := strings.Index(conversationID[idx+1:], ConversationDelimiter)
		idx += 1 + next
	}
	a, b := conversationID[:idx], conversationID[idx+len(ConversationDelimiter):]
	if a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

// Partner returns the participant of conversationID that is not viewerID.
// It matches viewerID against either end of the id, which stays exact when
// ids contain the delimiter.
func Partner(conversationID, viewerID string) (string, bool) {
	if viewerID == "" {
		return "", false
	}
	if rest, ok := strings.CutPrefix(conversationID, viewerID+ConversationDelimiter); ok && rest != "" &&
		ConversationID(viewerID, rest) == conversationID {
		return rest, true
	}
	if rest, ok := strings.CutSuffix(conversationID, ConversationDelimiter+viewerID); ok && rest != "" &&
		ConversationID(viewerID, rest) == conversationID {
		return rest, true
	}
	return "", false
}
