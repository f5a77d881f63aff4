package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"roommatch/models"
)

var ErrSelfPin = errors.New("cannot pin yourself")

type MemoryPins struct {
	clock clockwork.Clock
	mu    sync.Mutex
	pins  map[string]map[string]models.Pin
}

func NewMemoryPins(clock clockwork.Clock) *MemoryPins {
	return &MemoryPins{clock: clock, pins: make(map[string]map[string]models.Pin)}
}

var _ PinStore = (*MemoryPins)(nil)

func (m *MemoryPins) Pin(_ context.Context, userID, targetID string) error {
	if userID == targetID {
		return ErrSelfPin
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.pins[userID]
	if set == nil {
		set = make(map[string]models.Pin)
		m.pins[userID] = set
	}
	if _, ok := set[targetID]; !ok {
		set[targetID] = models.Pin{UserID: userID, TargetID: targetID, CreatedAt: m.clock.Now().UnixMilli()}
	}
	return nil
}

func (m *MemoryPins) Unpin(_ context.Context, userID, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pins[userID], targetID)
	return nil
}

func (m *MemoryPins) Pins(_ context.Context, userID string) ([]models.Pin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Pin, 0, len(m.pins[userID]))
	for _, p := range m.pins[userID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out, nil
}
