package store

import (
	"context"
	"sort"
	"sync"

	"roommatch/models"
)

// PushSubscriptions keeps one web-push subscription per user.
type PushSubscriptions interface {
	Save(ctx context.Context, sub models.PushSubscription) error
	All(ctx context.Context) ([]models.PushSubscription, error)
	Delete(ctx context.Context, userID string) error
}

type MemorySubscriptions struct {
	mu   sync.Mutex
	subs map[string]models.PushSubscription
}

func NewMemorySubscriptions() *MemorySubscriptions {
	return &MemorySubscriptions{subs: make(map[string]models.PushSubscription)}
}

var _ PushSubscriptions = (*MemorySubscriptions)(nil)

func (m *MemorySubscriptions) Save(_ context.Context, sub models.PushSubscription) error {
	m.mu.Lock()
	m.subs[sub.UserID] = sub
	m.mu.Unlock()
	return nil
}

func (m *MemorySubscriptions) All(_ context.Context) ([]models.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PushSubscription, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *MemorySubscriptions) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.subs, userID)
	m.mu.Unlock()
	return nil
}
