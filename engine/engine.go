// Package engine ties the matching and live-sync pieces together: it follows
// the shared profile collection, ranks candidates per viewer and hosts one
// Session per connected viewer.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"roommatch/changes"
	"roommatch/logging"
	"roommatch/matching"
	"roommatch/models"
	"roommatch/presence"
	"roommatch/store"
	"roommatch/unread"
)

// DefaultSyncInterval is the period of the backup full re-pull.
const DefaultSyncInterval = 30 * time.Second

// DefaultSessionIdleTimeout is how long a session without a live connection
// survives after its last use.
const DefaultSessionIdleTimeout = 10 * time.Minute

// ProfilesNotifier is told about newly discovered profiles.
type ProfilesNotifier interface {
	ProfilesAdded(ctx context.Context, added []models.Profile) error
}

type Options struct {
	Profiles   store.ProfileStore
	Messaging  store.Messaging
	Pins       store.PinStore
	Presence   presence.Store
	Watermarks unread.WatermarkStore
	Distance   matching.Distancer
	Notifier   ProfilesNotifier // optional
	Clock      clockwork.Clock
	Logger     logging.Logger

	SyncInterval       time.Duration
	SessionIdleTimeout time.Duration
}

type Engine struct {
	opts     Options
	logger   logging.Logger
	ranker   *matching.Ranker
	detector *changes.Detector

	// applyMu keeps snapshot replacement and change detection in read order.
	applyMu sync.Mutex

	mu          sync.Mutex
	version     uint64
	readSeq     uint64
	appliedSeq  uint64
	snapshot    []models.Profile
	unsubscribe store.Unsubscribe
	scheduler   gocron.Scheduler
	sessions    map[string]*sessionEntry
	running     bool

	bg sync.WaitGroup
}

func New(opts Options) (*Engine, error) {
	if opts.Profiles == nil || opts.Messaging == nil || opts.Pins == nil ||
		opts.Presence == nil || opts.Watermarks == nil {
		return nil, errors.New("engine: profile, messaging, pin, presence and watermark stores are required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = DefaultSyncInterval
	}
	if opts.SessionIdleTimeout <= 0 {
		opts.SessionIdleTimeout = DefaultSessionIdleTimeout
	}
	e := &Engine{
		opts:     opts,
		logger:   opts.Logger,
		ranker:   matching.NewRanker(opts.Distance, opts.Logger),
		detector: changes.NewDetector(),
		sessions: make(map[string]*sessionEntry),
	}
	e.detector.OnAdded(e.onProfilesAdded)
	return e, nil
}

// Start subscribes to the profile collection and schedules the backup
// re-pull. A failed subscription is not fatal; the re-pull covers for it.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()

	unsub, err := e.opts.Profiles.Subscribe(ctx, func(all []models.Profile) {
		e.apply(ctx, e.beginRead(), all)
	})
	if err != nil {
		e.logger.Warn(ctx, "profile subscription unavailable, relying on periodic sync", "error", err)
	}

	sched, err := gocron.NewScheduler(gocron.WithClock(e.opts.Clock))
	if err != nil {
		if unsub != nil {
			unsub()
		}
		return err
	}
	syncCtx := context.WithoutCancel(ctx)
	_, err = sched.NewJob(
		gocron.DurationJob(e.opts.SyncInterval),
		gocron.NewTask(func() {
			e.Sync(syncCtx)
			e.ReapIdleSessions(syncCtx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		if unsub != nil {
			unsub()
		}
		return err
	}
	sched.Start()

	e.mu.Lock()
	e.unsubscribe = unsub
	e.scheduler = sched
	e.mu.Unlock()
	e.logger.Info(ctx, "engine started", "syncInterval", e.opts.SyncInterval.String())
	return nil
}

// Stop tears down the subscription, the scheduler and every session. It is
// safe to call on an engine that was never started.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	e.running = false
	unsub, sched := e.unsubscribe, e.scheduler
	e.unsubscribe, e.scheduler = nil, nil
	sessions := make([]*Session, 0, len(e.sessions))
	for id, entry := range e.sessions {
		sessions = append(sessions, entry.session)
		delete(e.sessions, id)
	}
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			e.logger.Warn(ctx, "scheduler shutdown", "error", err)
		}
	}
	for _, s := range sessions {
		s.Close(ctx)
	}
	e.bg.Wait()
	e.logger.Info(ctx, "engine stopped")
}

// Sync re-reads the whole collection, healing missed change notifications.
func (e *Engine) Sync(ctx context.Context) {
	seq := e.beginRead()
	all, err := e.opts.Profiles.GetAll(ctx)
	if err != nil {
		e.logger.Warn(ctx, "periodic profile sync failed", "error", err)
		return
	}
	e.apply(ctx, seq, all)
}

// beginRead numbers a collection read. Reads are numbered when they start,
// so a slow pull cannot be mistaken for a newer one.
func (e *Engine) beginRead() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.readSeq++
	return e.readSeq
}

// apply installs the collection read as seq unless a later read has already
// been installed.
func (e *Engine) apply(ctx context.Context, seq uint64, all []models.Profile) {
	all, dropped := store.NormalizeProfiles(all)
	if dropped > 0 {
		e.logger.Warn(ctx, "dropped profiles without identity", "count", dropped)
	}

	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	e.mu.Lock()
	if seq < e.appliedSeq {
		current := e.appliedSeq
		e.mu.Unlock()
		e.logger.Debug(ctx, "discarding stale profile read", "read", seq, "current", current)
		return
	}
	e.appliedSeq = seq
	e.version++
	e.snapshot = all
	e.mu.Unlock()

	e.detector.Observe(all)
}

// Snapshot returns the latest profile collection and its version. Version 0
// means nothing has been observed yet.
func (e *Engine) Snapshot() (uint64, []models.Profile) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version, e.snapshot
}

func (e *Engine) onProfilesAdded(ev changes.Event) {
	ctx := context.Background()
	e.logger.Info(ctx, "profiles added", "count", len(ev.Added))

	if e.opts.Notifier != nil {
		if err := e.opts.Notifier.ProfilesAdded(ctx, ev.Added); err != nil {
			e.logger.Warn(ctx, "failed to dispatch profiles-added notification", "error", err)
		}
	}

	for _, s := range e.activeSessions() {
		s.emit(Event{Type: EventProfilesAdded, Data: ev.Added})
		e.bg.Add(1)
		go func() {
			defer e.bg.Done()
			s.Refresh(ctx)
		}()
	}
}

func (e *Engine) activeSessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Session, 0, len(e.sessions))
	for _, entry := range e.sessions {
		out = append(out, entry.session)
	}
	return out
}

// OnProfilesAdded registers h for notification-worthy additions and returns
// its unsubscribe func.
func (e *Engine) OnProfilesAdded(h func(changes.Event)) func() {
	return e.detector.OnAdded(h)
}

// ComputeMatches ranks all for self.
func (e *Engine) ComputeMatches(ctx context.Context, self models.Profile, all []models.Profile, rc matching.Context) []models.MatchRecord {
	return e.ranker.Rank(ctx, self, all, rc)
}

// ConversationIDFor is the order-independent conversation id of a and b.
func (e *Engine) ConversationIDFor(a, b string) string {
	return models.ConversationID(a, b)
}

// MatchesFor ranks the current collection for viewerID. If nothing can be
// read at all, it returns placeholders.
func (e *Engine) MatchesFor(ctx context.Context, viewerID string, rc matching.Context) []models.MatchRecord {
	_, records := e.matchesAt(ctx, viewerID, rc)
	return records
}

func (e *Engine) matchesAt(ctx context.Context, viewerID string, rc matching.Context) (uint64, []models.MatchRecord) {
	version, all := e.Snapshot()
	if version == 0 {
		fresh, err := e.opts.Profiles.GetAll(ctx)
		if err != nil {
			e.logger.Error(ctx, "cannot load profiles, serving placeholders", "error", err)
			return 0, matching.Placeholders(placeholderCount)
		}
		all, _ = store.NormalizeProfiles(fresh)
	}

	self, ok := findProfile(all, viewerID)
	if !ok {
		p, err := e.opts.Profiles.Get(ctx, viewerID)
		switch {
		case err == nil:
			self = p
		case errors.Is(err, store.ErrNotFound):
			// No survey yet; rank against an empty answer set.
			self = models.Profile{ID: viewerID}
		default:
			e.logger.Error(ctx, "cannot load viewer profile, serving placeholders", "viewerId", viewerID, "error", err)
			return version, matching.Placeholders(placeholderCount)
		}
	}
	return version, e.ComputeMatches(ctx, self, all, rc)
}

const placeholderCount = 5

func findProfile(all []models.Profile, id string) (models.Profile, bool) {
	for _, p := range all {
		if p.Identifies(id) {
			return p, true
		}
	}
	return models.Profile{}, false
}

// sessionEntry counts the live connections bound to a session. A session
// with none is kept until it has been idle for SessionIdleTimeout.
type sessionEntry struct {
	session  *Session
	conns    int
	lastUsed time.Time
}

// Session returns viewerID's session, creating it on first use. It does not
// publish presence; only Attach does.
func (e *Engine) Session(ctx context.Context, viewerID, name string) *Session {
	return e.acquire(ctx, viewerID, name, false).session
}

// Attach binds a live connection to viewerID's session and starts its
// presence heartbeat on the first one. The returned release func unbinds it;
// the last release closes the session.
func (e *Engine) Attach(ctx context.Context, viewerID, name string) (*Session, func()) {
	entry := e.acquire(ctx, viewerID, name, true)
	s := entry.session
	s.attach(ctx)

	var once sync.Once
	release := func() {
		once.Do(func() {
			e.mu.Lock()
			entry.conns--
			entry.lastUsed = e.opts.Clock.Now()
			last := entry.conns == 0
			if last && e.sessions[viewerID] == entry {
				delete(e.sessions, viewerID)
			}
			e.mu.Unlock()
			if last {
				s.Close(context.WithoutCancel(ctx))
			}
		})
	}
	return s, release
}

func (e *Engine) acquire(ctx context.Context, viewerID, name string, attach bool) *sessionEntry {
	e.mu.Lock()
	entry, ok := e.sessions[viewerID]
	if ok {
		e.touch(entry, attach)
		e.mu.Unlock()
		return entry
	}
	e.mu.Unlock()

	s := newSession(ctx, e, viewerID, name)

	e.mu.Lock()
	if existing, ok := e.sessions[viewerID]; ok {
		e.touch(existing, attach)
		e.mu.Unlock()
		s.Close(ctx)
		return existing
	}
	entry = &sessionEntry{session: s}
	e.touch(entry, attach)
	e.sessions[viewerID] = entry
	e.mu.Unlock()

	s.start(ctx)
	return entry
}

// touch must be called with e.mu held.
func (e *Engine) touch(entry *sessionEntry, attach bool) {
	entry.lastUsed = e.opts.Clock.Now()
	if attach {
		entry.conns++
	}
}

// LookupSession returns an existing session without creating one.
func (e *Engine) LookupSession(viewerID string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.sessions[viewerID]
	if !ok {
		return nil, false
	}
	entry.lastUsed = e.opts.Clock.Now()
	return entry.session, true
}

// ReapIdleSessions closes sessions with no live connection that have not
// been used for SessionIdleTimeout. It returns how many were closed.
func (e *Engine) ReapIdleSessions(ctx context.Context) int {
	cutoff := e.opts.Clock.Now().Add(-e.opts.SessionIdleTimeout)
	var idle []*Session
	e.mu.Lock()
	for id, entry := range e.sessions {
		if entry.conns == 0 && !entry.lastUsed.After(cutoff) {
			idle = append(idle, entry.session)
			delete(e.sessions, id)
		}
	}
	e.mu.Unlock()

	for _, s := range idle {
		s.Close(ctx)
	}
	if len(idle) > 0 {
		e.logger.Debug(ctx, "closed idle sessions", "count", len(idle))
	}
	return len(idle)
}

func (e *Engine) forget(s *Session) {
	e.mu.Lock()
	if entry, ok := e.sessions[s.viewerID]; ok && entry.session == s {
		delete(e.sessions, s.viewerID)
	}
	e.mu.Unlock()
}

func (e *Engine) Profiles() store.ProfileStore { return e.opts.Profiles }
func (e *Engine) Messaging() store.Messaging    { return e.opts.Messaging }
func (e *Engine) Pins() store.PinStore          { return e.opts.Pins }
func (e *Engine) Presence() presence.Store      { return e.opts.Presence }
