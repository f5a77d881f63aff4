package presence

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"roommatch/logging"
)

// Tracker owns one session's presence: it marks the user online on Start,
// refreshes the heartbeat periodically and on throttled activity, and marks
// the user offline on Stop or when the session is hidden. Store errors are
// logged; presence is best effort.
type Tracker struct {
	store  Store
	clock  clockwork.Clock
	logger logging.Logger
	userID string
	name   string

	mu       sync.Mutex
	running  bool
	visible  bool
	lastBeat time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewTracker(store Store, clock clockwork.Clock, logger logging.Logger, userID, name string) *Tracker {
	return &Tracker{
		store:  store,
		clock:  clock,
		logger: logger.With("userId", userID),
		userID: userID,
		name:   name,
	}
}

// Start marks the user online and begins the periodic heartbeat. Calling it
// on a running tracker does nothing.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.visible = true
	t.lastBeat = t.clock.Now()
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	t.done = make(chan struct{})
	ticker := t.clock.NewTicker(HeartbeatInterval)
	done := t.done
	t.mu.Unlock()

	if err := t.store.SetOnline(ctx, t.userID, t.name); err != nil {
		t.logger.Warn(ctx, "set online failed", "error", err)
	}
	go t.loop(loopCtx, ticker, done)
}

func (t *Tracker) loop(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			t.mu.Lock()
			visible := t.visible
			if visible {
				t.lastBeat = t.clock.Now()
			}
			t.mu.Unlock()
			if visible {
				t.beat(ctx)
			}
		}
	}
}

func (t *Tracker) beat(ctx context.Context) {
	if err := t.store.Heartbeat(ctx, t.userID); err != nil {
		t.logger.Warn(ctx, "heartbeat failed", "error", err)
	}
}

// Activity records user input. At most one heartbeat per ActivityThrottle is
// sent; the rest are dropped.
func (t *Tracker) Activity(ctx context.Context) {
	t.mu.Lock()
	now := t.clock.Now()
	if !t.running || !t.visible || now.Sub(t.lastBeat) < ActivityThrottle {
		t.mu.Unlock()
		return
	}
	t.lastBeat = now
	t.mu.Unlock()
	t.beat(ctx)
}

// SetVisible reflects the client's visibility. Hidden sessions stop
// heartbeating and are marked offline; becoming visible again marks online.
func (t *Tracker) SetVisible(ctx context.Context, visible bool) {
	t.mu.Lock()
	if !t.running || t.visible == visible {
		t.mu.Unlock()
		return
	}
	t.visible = visible
	if visible {
		t.lastBeat = t.clock.Now()
	}
	t.mu.Unlock()

	var err error
	if visible {
		err = t.store.SetOnline(ctx, t.userID, t.name)
	} else {
		err = t.store.SetOffline(ctx, t.userID)
	}
	if err != nil {
		t.logger.Warn(ctx, "visibility update failed", "visible", visible, "error", err)
	}
}

// Stop halts the heartbeat, waits for the loop to exit and marks the user
// offline. It is safe to call more than once.
func (t *Tracker) Stop(ctx context.Context) {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	cancel()
	<-done
	if err := t.store.SetOffline(ctx, t.userID); err != nil {
		t.logger.Warn(ctx, "set offline failed", "error", err)
	}
}

// IsOnline reports whether userID heartbeated within OnlineWindow.
func (t *Tracker) IsOnline(ctx context.Context, userID string) bool {
	ok, err := t.store.IsRecentlyActive(ctx, userID)
	if err != nil {
		t.logger.Warn(ctx, "presence lookup failed", "peer", userID, "error", err)
		return false
	}
	return ok
}
