// Package presence tracks who is actually online and who is typing.
package presence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"roommatch/models"
)

const (
	// OnlineWindow is how long a heartbeat keeps a user online.
	OnlineWindow = 30 * time.Second
	// HeartbeatInterval is the periodic heartbeat of an active session.
	HeartbeatInterval = 10 * time.Second
	// ActivityThrottle is the minimum spacing of activity-driven heartbeats.
	ActivityThrottle = 2 * time.Second
)

var ErrUnknownUser = errors.New("presence: unknown user")

// Store holds presence records. The online flag is kept for compatibility
// with writers that only set it; liveness is always derived from
// LastActivityAt.
type Store interface {
	SetOnline(ctx context.Context, userID, name string) error
	SetOffline(ctx context.Context, userID string) error
	Heartbeat(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (models.PresenceRecord, error)
	IsRecentlyActive(ctx context.Context, userID string) (bool, error)
}

type MemoryStore struct {
	clock   clockwork.Clock
	mu      sync.RWMutex
	records map[string]models.PresenceRecord
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{clock: clock, records: make(map[string]models.PresenceRecord)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) SetOnline(_ context.Context, userID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = models.PresenceRecord{
		UserID:         userID,
		Name:           name,
		Online:         true,
		LastActivityAt: m.clock.Now().UnixMilli(),
	}
	return nil
}

func (m *MemoryStore) SetOffline(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[userID]
	if !ok {
		return nil
	}
	r.Online = false
	m.records[userID] = r
	return nil
}

func (m *MemoryStore) Heartbeat(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.records[userID]
	r.UserID = userID
	r.Online = true
	r.LastActivityAt = m.clock.Now().UnixMilli()
	m.records[userID] = r
	return nil
}

func (m *MemoryStore) Get(_ context.Context, userID string) (models.PresenceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[userID]
	if !ok {
		return models.PresenceRecord{}, ErrUnknownUser
	}
	return r, nil
}

func (m *MemoryStore) IsRecentlyActive(ctx context.Context, userID string) (bool, error) {
	return recentlyActive(ctx, m, m.clock, userID)
}

func recentlyActive(ctx context.Context, s Store, clock clockwork.Clock, userID string) (bool, error) {
	r, err := s.Get(ctx, userID)
	if errors.Is(err, ErrUnknownUser) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return r.ActuallyOnline(clock.Now(), OnlineWindow), nil
}
