// Package unread derives per-conversation unread counts from message streams
// and last-read watermarks.
package unread

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"

	"roommatch/logging"
	"roommatch/models"
)

// Tracker holds one viewer's watermarks and counts. Watermark writes go to
// the store after the in-memory state changes; failures are only logged.
type Tracker struct {
	viewerID string
	store    WatermarkStore
	clock    clockwork.Clock
	logger   logging.Logger

	mu         sync.Mutex
	watermarks map[string]int64
	latest     map[string]int64
	counts     map[string]int
}

// NewTracker preloads the viewer's persisted watermarks.
func NewTracker(ctx context.Context, viewerID string, store WatermarkStore, clock clockwork.Clock, logger logging.Logger) *Tracker {
	t := &Tracker{
		viewerID:   viewerID,
		store:      store,
		clock:      clock,
		logger:     logger.With("viewerId", viewerID),
		watermarks: make(map[string]int64),
		latest:     make(map[string]int64),
		counts:     make(map[string]int),
	}
	saved, err := store.All(ctx, viewerID)
	if err != nil {
		t.logger.Warn(ctx, "failed to load watermarks", "error", err)
	}
	for conv, ts := range saved {
		t.watermarks[conv] = ts
	}
	return t
}

// Observe recomputes the unread count of conversationID from its full
// message list. The first observation of a conversation without a stored
// watermark seeds it with the newest message and reports 0.
func (t *Tracker) Observe(ctx context.Context, conversationID string, messages []models.Message) int {
	var newest int64
	for _, m := range messages {
		newest = max(newest, m.Timestamp)
	}

	t.mu.Lock()
	t.latest[conversationID] = newest
	wm, ok := t.watermarks[conversationID]
	if !ok {
		t.watermarks[conversationID] = newest
		t.counts[conversationID] = 0
		t.mu.Unlock()
		t.persist(ctx, conversationID, newest)
		return 0
	}
	n := 0
	for _, m := range messages {
		if m.SenderID != t.viewerID && m.Timestamp > wm {
			n++
		}
	}
	t.counts[conversationID] = n
	t.mu.Unlock()
	return n
}

func (t *Tracker) Count(conversationID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[conversationID]
}

// Counts returns a copy of every known count.
func (t *Tracker) Counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Conversations lists every conversation with a watermark, sorted.
func (t *Tracker) Conversations() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Sorted(maps.Keys(t.watermarks))
}

// Watermark returns the last-read timestamp of conversationID.
func (t *Tracker) Watermark(conversationID string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	wm, ok := t.watermarks[conversationID]
	return wm, ok
}

// MarkRead moves the watermark to now and zeroes the count without waiting
// for the store. A watermark never lands before a message already seen, so
// a skewed sender clock cannot resurrect read messages.
func (t *Tracker) MarkRead(ctx context.Context, conversationID string) {
	now := t.clock.Now().UnixMilli()

	t.mu.Lock()
	wm := max(now, t.latest[conversationID], t.watermarks[conversationID])
	t.watermarks[conversationID] = wm
	t.counts[conversationID] = 0
	t.mu.Unlock()

	t.persist(ctx, conversationID, wm)
}

func (t *Tracker) persist(ctx context.Context, conversationID string, wm int64) {
	if err := t.store.Save(ctx, t.viewerID, conversationID, wm); err != nil {
		t.logger.Warn(ctx, "failed to persist watermark", "conversationId", conversationID, "error", err)
	}
}
