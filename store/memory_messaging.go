package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"roommatch/models"
)

// MemoryMessaging is a process-local Messaging adapter.
type MemoryMessaging struct {
	clock clockwork.Clock

	mu            sync.Mutex
	conversations map[string][]models.Message
	subs          map[string]map[int]func([]models.Message)
	next          int
	sendErr       error

	typing *typingHub
}

func NewMemoryMessaging(clock clockwork.Clock) *MemoryMessaging {
	return &MemoryMessaging{
		clock:         clock,
		conversations: make(map[string][]models.Message),
		subs:          make(map[string]map[int]func([]models.Message)),
		typing:        newTypingHub(),
	}
}

var _ Messaging = (*MemoryMessaging)(nil)

// FailSends makes Send fail with err until called with nil.
func (m *MemoryMessaging) FailSends(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

func (m *MemoryMessaging) Send(_ context.Context, conversationID string, msg models.Message) (models.SendResult, error) {
	msg, err := prepareMessage(conversationID, msg, m.clock)
	if err != nil {
		return models.SendResult{}, err
	}

	m.mu.Lock()
	if m.sendErr != nil {
		err := m.sendErr
		m.mu.Unlock()
		return models.SendResult{}, fmt.Errorf("send to %s: %w", conversationID, err)
	}
	history := m.conversations[conversationID]
	i := sort.Search(len(history), func(i int) bool { return history[i].Timestamp > msg.Timestamp })
	history = append(history, models.Message{})
	copy(history[i+1:], history[i:])
	history[i] = msg
	m.conversations[conversationID] = history
	snapshot := append([]models.Message(nil), history...)
	fns := m.subscribersLocked(conversationID)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
	return models.SendResult{Success: true, ID: msg.ID}, nil
}

func (m *MemoryMessaging) History(_ context.Context, conversationID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message(nil), m.conversations[conversationID]...), nil
}

func (m *MemoryMessaging) Subscribe(_ context.Context, conversationID string, onChange func([]models.Message)) (Unsubscribe, error) {
	m.mu.Lock()
	id := m.next
	m.next++
	room := m.subs[conversationID]
	if room == nil {
		room = make(map[int]func([]models.Message))
		m.subs[conversationID] = room
	}
	room[id] = onChange
	snapshot := append([]models.Message(nil), m.conversations[conversationID]...)
	m.mu.Unlock()

	onChange(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs[conversationID], id)
			if len(m.subs[conversationID]) == 0 {
				delete(m.subs, conversationID)
			}
		})
	}, nil
}

func (m *MemoryMessaging) SetTyping(_ context.Context, conversationID, userID string, typing bool) error {
	m.typing.publish(models.TypingState{ConversationID: conversationID, UserID: userID, Typing: typing})
	return nil
}

func (m *MemoryMessaging) SubscribeTyping(conversationID string, onChange func(models.TypingState)) Unsubscribe {
	return m.typing.subscribe(conversationID, onChange)
}

func (m *MemoryMessaging) subscribersLocked(conversationID string) []func([]models.Message) {
	room := m.subs[conversationID]
	ids := make([]int, 0, len(room))
	for id := range room {
		ids = append(ids, id)
	}
	sortInts(ids)
	out := make([]func([]models.Message), 0, len(ids))
	for _, id := range ids {
		out = append(out, room[id])
	}
	return out
}

// prepareMessage validates msg and fills in id, conversation and timestamp.
func prepareMessage(conversationID string, msg models.Message, clock clockwork.Clock) (models.Message, error) {
	if conversationID == "" {
		return msg, fmt.Errorf("%w: empty conversation id", ErrInvalidMessage)
	}
	if msg.SenderID == "" {
		return msg, fmt.Errorf("%w: empty sender", ErrInvalidMessage)
	}
	if strings.TrimSpace(msg.Text) == "" {
		return msg, fmt.Errorf("%w: empty text", ErrInvalidMessage)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = clock.Now().UnixMilli()
	}
	msg.ConversationID = conversationID
	return msg, nil
}
