package store

import (
	"context"
	"fmt"
	"sync"

	"roommatch/models"
)

// MemoryProfiles is a process-local ProfileStore. Subscribers are called
// synchronously after each Put, outside the lock.
type MemoryProfiles struct {
	mu      sync.Mutex
	order   []string
	docs    map[string]models.Profile
	subs    map[int]func([]models.Profile)
	nextSub int
	err     error
}

func NewMemoryProfiles() *MemoryProfiles {
	return &MemoryProfiles{
		docs: make(map[string]models.Profile),
		subs: make(map[int]func([]models.Profile)),
	}
}

var _ ProfileStore = (*MemoryProfiles)(nil)

// SetUnavailable makes every read and write fail with err until called with nil.
func (m *MemoryProfiles) SetUnavailable(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MemoryProfiles) Get(_ context.Context, id string) (models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Profile{}, m.err
	}
	if p, ok := m.docs[id]; ok {
		return p, nil
	}
	for _, key := range m.order {
		if p := m.docs[key]; p.Identifies(id) {
			return p, nil
		}
	}
	return models.Profile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
}

func (m *MemoryProfiles) GetAll(_ context.Context) ([]models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.snapshotLocked(), nil
}

func (m *MemoryProfiles) Subscribe(_ context.Context, onChange func([]models.Profile)) (Unsubscribe, error) {
	m.mu.Lock()
	if m.err != nil {
		m.mu.Unlock()
		return nil, m.err
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = onChange
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	onChange(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}, nil
}

func (m *MemoryProfiles) Put(_ context.Context, p models.Profile) error {
	p, ok := NormalizeProfile(p)
	if !ok {
		return ErrMissingID
	}

	m.mu.Lock()
	if m.err != nil {
		m.mu.Unlock()
		return m.err
	}
	if _, exists := m.docs[p.ID]; !exists {
		m.order = append(m.order, p.ID)
	}
	m.docs[p.ID] = p
	snapshot := m.snapshotLocked()
	subs := m.subscribersLocked()
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
	return nil
}

func (m *MemoryProfiles) snapshotLocked() []models.Profile {
	out := make([]models.Profile, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.docs[id])
	}
	return out
}

func (m *MemoryProfiles) subscribersLocked() []func([]models.Profile) {
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sortInts(ids)
	out := make([]func([]models.Profile), 0, len(ids))
	for _, id := range ids {
		out = append(out, m.subs[id])
	}
	return out
}
