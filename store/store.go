// Package store holds the ports the engine consumes from its persistence
// collaborators, with in-memory and MongoDB adapters.
package store

import (
	"context"
	"errors"

	"roommatch/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrMissingID      = errors.New("profile has no identity")
	ErrInvalidMessage = errors.New("invalid message")
)

// Unsubscribe tears down a subscription. Calling it more than once is safe.
type Unsubscribe func()

// ProfileStore is the shared profile collection.
type ProfileStore interface {
	Get(ctx context.Context, id string) (models.Profile, error)
	GetAll(ctx context.Context) ([]models.Profile, error)
	// Subscribe delivers the full collection immediately and again after every
	// change anywhere in the collection.
	Subscribe(ctx context.Context, onChange func([]models.Profile)) (Unsubscribe, error)
	// Put replaces the document keyed by the profile's identity.
	Put(ctx context.Context, p models.Profile) error
}

// Messaging is the conversation store plus its typing channel.
type Messaging interface {
	Send(ctx context.Context, conversationID string, m models.Message) (models.SendResult, error)
	// History returns messages in ascending timestamp order.
	History(ctx context.Context, conversationID string) ([]models.Message, error)
	// Subscribe delivers the full history immediately and after every new message.
	Subscribe(ctx context.Context, conversationID string, onChange func([]models.Message)) (Unsubscribe, error)
	SetTyping(ctx context.Context, conversationID, userID string, typing bool) error
	SubscribeTyping(conversationID string, onChange func(models.TypingState)) Unsubscribe
}

// PinStore keeps each user's pinned candidates.
type PinStore interface {
	Pin(ctx context.Context, userID, targetID string) error
	Unpin(ctx context.Context, userID, targetID string) error
	Pins(ctx context.Context, userID string) ([]models.Pin, error)
}

// PinSet flattens pins into the lookup set the ranker wants.
func PinSet(pins []models.Pin) map[string]bool {
	set := make(map[string]bool, len(pins))
	for _, p := range pins {
		set[p.TargetID] = true
	}
	return set
}
