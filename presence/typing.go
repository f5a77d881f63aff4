package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TypingTimeout clears a typing indicator after the last keystroke.
const TypingTimeout = 3 * time.Second

// TypingIndicator turns keystrokes into typing on/off transitions per
// conversation. publish is called outside the lock, once per transition.
type TypingIndicator struct {
	clock   clockwork.Clock
	timeout time.Duration
	publish func(conversationID string, typing bool)

	mu      sync.Mutex
	timers  map[string]*typingTimer
	stopped bool
}

type typingTimer struct {
	timer clockwork.Timer
	gen   int
}

func NewTypingIndicator(clock clockwork.Clock, publish func(conversationID string, typing bool)) *TypingIndicator {
	return &TypingIndicator{
		clock:   clock,
		timeout: TypingTimeout,
		publish: publish,
		timers:  make(map[string]*typingTimer),
	}
}

// Keystroke marks the user typing in conversationID and pushes the
// auto-clear deadline out by the timeout.
func (ti *TypingIndicator) Keystroke(conversationID string) {
	ti.mu.Lock()
	if ti.stopped {
		ti.mu.Unlock()
		return
	}
	tt, typing := ti.timers[conversationID]
	if typing {
		tt.timer.Stop()
		tt.gen++
	} else {
		tt = &typingTimer{}
		ti.timers[conversationID] = tt
	}
	gen := tt.gen
	tt.timer = ti.clock.AfterFunc(ti.timeout, func() { ti.expire(conversationID, gen) })
	ti.mu.Unlock()

	if !typing {
		ti.publish(conversationID, true)
	}
}

func (ti *TypingIndicator) expire(conversationID string, gen int) {
	ti.mu.Lock()
	tt, ok := ti.timers[conversationID]
	if !ok || tt.gen != gen {
		ti.mu.Unlock()
		return
	}
	delete(ti.timers, conversationID)
	ti.mu.Unlock()
	ti.publish(conversationID, false)
}

// Clear ends typing in conversationID immediately, e.g. after a send.
func (ti *TypingIndicator) Clear(conversationID string) {
	ti.mu.Lock()
	tt, ok := ti.timers[conversationID]
	if ok {
		tt.timer.Stop()
		delete(ti.timers, conversationID)
	}
	ti.mu.Unlock()
	if ok {
		ti.publish(conversationID, false)
	}
}

// IsTyping reports whether an indicator is active for conversationID.
func (ti *TypingIndicator) IsTyping(conversationID string) bool {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	_, ok := ti.timers[conversationID]
	return ok
}

// Stop revokes every pending timer and publishes the matching clears. Later
// keystrokes are ignored.
func (ti *TypingIndicator) Stop() {
	ti.mu.Lock()
	ti.stopped = true
	active := make([]string, 0, len(ti.timers))
	for id, tt := range ti.timers {
		tt.timer.Stop()
		active = append(active, id)
	}
	ti.timers = make(map[string]*typingTimer)
	ti.mu.Unlock()
	sort.Strings(active)

	for _, id := range active {
		ti.publish(id, false)
	}
}
