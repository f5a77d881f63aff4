package engine

import (
	"context"
	"errors"
	"sort"
	"sync"

	"roommatch/logging"
	"roommatch/matching"
	"roommatch/models"
	"roommatch/presence"
	"roommatch/store"
	"roommatch/unread"
)

var ErrSessionClosed = errors.New("engine: session closed")

type EventType string

const (
	EventProfilesAdded EventType = "profiles_added"
	EventMatches       EventType = "matches"
	EventNewMessage    EventType = "new_message"
	EventTyping        EventType = "typing"
	EventUnread        EventType = "unread"
)

// Event is pushed to a session's listeners.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"payload"`
}

// UnreadUpdate is the payload of EventUnread.
type UnreadUpdate struct {
	ConversationID string `json:"conversationId"`
	Count          int    `json:"count"`
}

type watch struct {
	partnerID string
	newest    int64
	primed    bool
	unsub     store.Unsubscribe
	unsubType store.Unsubscribe
}

// Session is one viewer's live view: presence, typing, unread counts, the
// activity map used for ordering and the latest ranked list.
type Session struct {
	engine   *Engine
	viewerID string
	name     string
	logger   logging.Logger

	presence *presence.Tracker
	unread   *unread.Tracker
	typing   *presence.TypingIndicator

	mu             sync.Mutex
	closed         bool
	lastActivity   map[string]int64
	watches        map[string]*watch
	matches        []models.MatchRecord
	matchesVersion uint64
	applied        bool
	listeners      map[int]func(Event)
	nextListener   int
}

func newSession(ctx context.Context, e *Engine, viewerID, name string) *Session {
	logger := e.logger.With("viewerId", viewerID)
	s := &Session{
		engine:       e,
		viewerID:     viewerID,
		name:         name,
		logger:       logger,
		presence:     presence.NewTracker(e.opts.Presence, e.opts.Clock, logger, viewerID, name),
		unread:       unread.NewTracker(ctx, viewerID, e.opts.Watermarks, e.opts.Clock, logger),
		lastActivity: make(map[string]int64),
		watches:      make(map[string]*watch),
		listeners:    make(map[int]func(Event)),
	}
	s.typing = presence.NewTypingIndicator(e.opts.Clock, s.publishTyping)
	return s
}

// start follows every conversation the viewer has read before, so unread
// counts exist before any of them is opened again.
func (s *Session) start(ctx context.Context) {
	for _, conv := range s.unread.Conversations() {
		partner, ok := models.Partner(conv, s.viewerID)
		if !ok {
			continue
		}
		s.watchQuietly(ctx, partner)
	}
}

// attach starts the presence heartbeat for a live connection.
func (s *Session) attach(ctx context.Context) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if !closed {
		s.presence.Start(ctx)
	}
}

func (s *Session) watchQuietly(ctx context.Context, otherID string) {
	if err := s.Watch(ctx, otherID); err != nil && !errors.Is(err, ErrSessionClosed) {
		s.logger.Warn(ctx, "failed to watch conversation", "partnerId", otherID, "error", err)
	}
}

func (s *Session) ViewerID() string { return s.viewerID }

// Listen registers fn for session events and returns its unsubscribe func.
func (s *Session) Listen(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) emit(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	fns := make([]func(Event), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Refresh re-ranks the viewer's matches. A result computed against an older
// profile snapshot than the one already applied is discarded and the newer
// list is returned instead.
func (s *Session) Refresh(ctx context.Context) []models.MatchRecord {
	rc := s.rankContext(ctx)
	version, records := s.engine.matchesAt(ctx, s.viewerID, rc)
	if s.apply(version, records) {
		s.emit(Event{Type: EventMatches, Data: records})
	}
	for _, r := range records {
		if !r.IsPlaceholder() {
			s.watchQuietly(ctx, r.Profile.ID)
		}
	}
	return s.Matches()
}

// apply stores records computed at version unless a newer result is
// already in place.
func (s *Session) apply(version uint64, records []models.MatchRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applied && version < s.matchesVersion {
		s.logger.Debug(context.Background(), "discarding stale ranking", "version", version, "current", s.matchesVersion)
		return false
	}
	s.matches = records
	s.matchesVersion = version
	s.applied = true
	return true
}

// Matches returns the latest applied ranking.
func (s *Session) Matches() []models.MatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches
}

func (s *Session) rankContext(ctx context.Context) matching.Context {
	rc := matching.Context{Unread: make(map[string]int)}

	pins, err := s.engine.opts.Pins.Pins(ctx, s.viewerID)
	if err != nil {
		s.logger.Warn(ctx, "failed to load pins", "error", err)
	}
	rc.Pins = store.PinSet(pins)

	for conv, n := range s.unread.Counts() {
		if partner, ok := models.Partner(conv, s.viewerID); ok {
			rc.Unread[partner] = n
		}
	}

	s.mu.Lock()
	rc.LastActivity = make(map[string]int64, len(s.lastActivity))
	for k, v := range s.lastActivity {
		rc.LastActivity[k] = v
	}
	s.mu.Unlock()
	return rc
}

// Watch follows the conversation with otherID so its unread count and last
// activity feed the ranking. Watching twice is a no-op.
func (s *Session) Watch(ctx context.Context, otherID string) error {
	convID := models.ConversationID(s.viewerID, otherID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if _, ok := s.watches[convID]; ok {
		s.mu.Unlock()
		return nil
	}
	w := &watch{partnerID: otherID}
	s.watches[convID] = w
	s.mu.Unlock()

	watchCtx := context.WithoutCancel(ctx)
	unsub, err := s.engine.opts.Messaging.Subscribe(watchCtx, convID, func(msgs []models.Message) {
		s.onMessages(watchCtx, convID, msgs)
	})
	if err != nil {
		s.mu.Lock()
		delete(s.watches, convID)
		s.mu.Unlock()
		return err
	}
	unsubTyping := s.engine.opts.Messaging.SubscribeTyping(convID, func(st models.TypingState) {
		if st.UserID != s.viewerID {
			s.emit(Event{Type: EventTyping, Data: st})
		}
	})

	s.mu.Lock()
	w.unsub, w.unsubType = unsub, unsubTyping
	closed := s.closed
	s.mu.Unlock()
	if closed {
		unsub()
		unsubTyping()
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) onMessages(ctx context.Context, convID string, msgs []models.Message) {
	count := s.unread.Observe(ctx, convID, msgs)

	s.mu.Lock()
	w, ok := s.watches[convID]
	if !ok || s.closed {
		s.mu.Unlock()
		return
	}
	var fresh []models.Message
	firstLoad := !w.primed
	newest := w.newest
	for _, m := range msgs {
		if w.primed && m.Timestamp > w.newest {
			fresh = append(fresh, m)
		}
		newest = max(newest, m.Timestamp)
	}
	w.newest = newest
	w.primed = true
	if newest > 0 {
		s.lastActivity[w.partnerID] = newest
	}
	s.mu.Unlock()

	for _, m := range fresh {
		s.emit(Event{Type: EventNewMessage, Data: m})
	}
	if firstLoad && count == 0 {
		return
	}
	s.emit(Event{Type: EventUnread, Data: UnreadUpdate{ConversationID: convID, Count: count}})
}

// Send posts text to the conversation with otherID. Failures come back as
// an unsuccessful result plus the error.
func (s *Session) Send(ctx context.Context, otherID, text string) (models.SendResult, error) {
	convID := models.ConversationID(s.viewerID, otherID)
	res, err := s.engine.opts.Messaging.Send(ctx, convID, models.Message{SenderID: s.viewerID, Text: text})
	if err != nil {
		s.logger.Warn(ctx, "send failed", "conversationId", convID, "error", err)
		return models.SendResult{Success: false}, err
	}
	s.typing.Clear(convID)
	s.presence.Activity(ctx)
	s.watchQuietly(ctx, otherID)
	return res, nil
}

// Keystroke marks the viewer typing to otherID; it clears on its own.
func (s *Session) Keystroke(ctx context.Context, otherID string) {
	s.typing.Keystroke(models.ConversationID(s.viewerID, otherID))
	s.presence.Activity(ctx)
}

// StopTyping clears the typing indicator toward otherID.
func (s *Session) StopTyping(otherID string) {
	s.typing.Clear(models.ConversationID(s.viewerID, otherID))
}

func (s *Session) publishTyping(convID string, typing bool) {
	ctx := context.Background()
	if err := s.engine.opts.Messaging.SetTyping(ctx, convID, s.viewerID, typing); err != nil {
		s.logger.Warn(ctx, "failed to publish typing", "conversationId", convID, "error", err)
	}
}

func (s *Session) GetUnreadCount(conversationID string) int {
	return s.unread.Count(conversationID)
}

// UnreadCounts returns unread counts keyed by conversation id.
func (s *Session) UnreadCounts() map[string]int {
	return s.unread.Counts()
}

// MarkRead zeroes the conversation's count immediately.
func (s *Session) MarkRead(ctx context.Context, conversationID string) {
	s.unread.MarkRead(ctx, conversationID)
	s.emit(Event{Type: EventUnread, Data: UnreadUpdate{ConversationID: conversationID, Count: 0}})
}

func (s *Session) Activity(ctx context.Context) { s.presence.Activity(ctx) }

func (s *Session) SetVisible(ctx context.Context, visible bool) { s.presence.SetVisible(ctx, visible) }

// IsOnline reports whether userID is actually online.
func (s *Session) IsOnline(ctx context.Context, userID string) bool {
	return s.presence.IsOnline(ctx, userID)
}

// Close stops presence and typing timers, drops every conversation watch
// and removes the session from its engine.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	watches := s.watches
	s.watches = make(map[string]*watch)
	s.listeners = make(map[int]func(Event))
	s.mu.Unlock()

	s.typing.Stop()
	s.presence.Stop(ctx)
	for _, w := range watches {
		if w.unsub != nil {
			w.unsub()
		}
		if w.unsubType != nil {
			w.unsubType()
		}
	}
	s.engine.forget(s)
}
