package store

import (
	"sort"
	"sync"

	"roommatch/models"
)

// typingHub fans typing changes out to per-conversation subscribers. Typing
// state is ephemeral, so every Messaging adapter keeps it in process.
type typingHub struct {
	mu   sync.Mutex
	subs map[string]map[int]func(models.TypingState)
	next int
}

func newTypingHub() *typingHub {
	return &typingHub{subs: make(map[string]map[int]func(models.TypingState))}
}

func (h *typingHub) publish(state models.TypingState) {
	h.mu.Lock()
	room := h.subs[state.ConversationID]
	ids := make([]int, 0, len(room))
	for id := range room {
		ids = append(ids, id)
	}
	sortInts(ids)
	fns := make([]func(models.TypingState), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, room[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func (h *typingHub) subscribe(conversationID string, fn func(models.TypingState)) Unsubscribe {
	h.mu.Lock()
	id := h.next
	h.next++
	room := h.subs[conversationID]
	if room == nil {
		room = make(map[int]func(models.TypingState))
		h.subs[conversationID] = room
	}
	room[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[conversationID], id)
			if len(h.subs[conversationID]) == 0 {
				delete(h.subs, conversationID)
			}
		})
	}
}

func sortInts(ids []int) {
	sort.Ints(ids)
}
