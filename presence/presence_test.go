package presence

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommatch/logging"
)

type countingStore struct {
	Store
	heartbeats atomic.Int32
}

func (c *countingStore) Heartbeat(ctx context.Context, userID string) error {
	c.heartbeats.Add(1)
	return c.Store.Heartbeat(ctx, userID)
}

func newTracker(t *testing.T) (*Tracker, *countingStore, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := &countingStore{Store: NewMemoryStore(clock)}
	tr := NewTracker(store, clock, logging.Discard(), "u1", "Ann")
	t.Cleanup(func() { tr.Stop(context.Background()) })
	return tr, store, clock
}

func TestMemoryStore_LivenessIgnoresFlag(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := NewMemoryStore(clock)

	require.NoError(t, s.SetOnline(ctx, "u1", "Ann"))
	ok, err := s.IsRecentlyActive(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(OnlineWindow)
	rec, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, rec.Online, "flag is still set")
	ok, err = s.IsRecentlyActive(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "but the heartbeat is stale")

	require.NoError(t, s.Heartbeat(ctx, "u1"))
	ok, _ = s.IsRecentlyActive(ctx, "u1")
	assert.True(t, ok)

	require.NoError(t, s.SetOffline(ctx, "u1"))
	rec, _ = s.Get(ctx, "u1")
	assert.False(t, rec.Online)
	assert.Equal(t, "Ann", rec.Name)

	ok, err = s.IsRecentlyActive(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = s.Get(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestTracker_PeriodicHeartbeat(t *testing.T) {
	ctx := context.Background()
	tr, store, clock := newTracker(t)

	tr.Start(ctx)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.True(t, tr.IsOnline(ctx, "u1"))

	for i := int32(1); i <= 4; i++ {
		clock.Advance(HeartbeatInterval)
		require.Eventually(t, func() bool { return store.heartbeats.Load() >= i }, time.Second, 5*time.Millisecond)
	}
	assert.True(t, tr.IsOnline(ctx, "u1"), "heartbeats keep the user online past the window")
}

func TestTracker_ActivityIsThrottled(t *testing.T) {
	ctx := context.Background()
	tr, store, clock := newTracker(t)

	tr.Activity(ctx)
	assert.Zero(t, store.heartbeats.Load(), "ignored before Start")

	tr.Start(ctx)
	tr.Activity(ctx)
	clock.Advance(time.Second)
	tr.Activity(ctx)
	assert.Zero(t, store.heartbeats.Load())

	clock.Advance(time.Second)
	tr.Activity(ctx)
	tr.Activity(ctx)
	assert.Equal(t, int32(1), store.heartbeats.Load())

	clock.Advance(ActivityThrottle)
	tr.Activity(ctx)
	assert.Equal(t, int32(2), store.heartbeats.Load())
}

func TestTracker_Visibility(t *testing.T) {
	ctx := context.Background()
	tr, store, clock := newTracker(t)
	tr.Start(ctx)

	tr.SetVisible(ctx, false)
	rec, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, rec.Online)

	clock.Advance(ActivityThrottle)
	tr.Activity(ctx)
	assert.Zero(t, store.heartbeats.Load(), "hidden sessions do not heartbeat")

	tr.SetVisible(ctx, true)
	rec, _ = store.Get(ctx, "u1")
	assert.True(t, rec.Online)
}

func TestTracker_StopIsRevocableAndIdempotent(t *testing.T) {
	ctx := context.Background()
	tr, store, clock := newTracker(t)
	tr.Start(ctx)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	tr.Stop(ctx)
	tr.Stop(ctx)
	rec, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, rec.Online)

	clock.Advance(ActivityThrottle)
	tr.Activity(ctx)
	assert.Zero(t, store.heartbeats.Load())
}

type typingLog struct {
	mu     sync.Mutex
	events []string
}

func (l *typingLog) publish(conversationID string, typing bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf("%s:%v", conversationID, typing))
}

func (l *typingLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func TestTypingIndicator_AutoClears(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := &typingLog{}
	ti := NewTypingIndicator(clock, log.publish)

	ti.Keystroke("c1")
	ti.Keystroke("c1")
	assert.Equal(t, []string{"c1:true"}, log.get())

	clock.Advance(2 * time.Second)
	ti.Keystroke("c1")
	clock.Advance(2 * time.Second)
	assert.True(t, ti.IsTyping("c1"), "keystroke pushed the deadline out")

	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return len(log.get()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"c1:true", "c1:false"}, log.get())
	assert.False(t, ti.IsTyping("c1"))
}

func TestTypingIndicator_Clear(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := &typingLog{}
	ti := NewTypingIndicator(clock, log.publish)

	ti.Clear("c1")
	assert.Empty(t, log.get())

	ti.Keystroke("c1")
	ti.Clear("c1")
	assert.Equal(t, []string{"c1:true", "c1:false"}, log.get())
}

func TestTypingIndicator_StopClearsEverything(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := &typingLog{}
	ti := NewTypingIndicator(clock, log.publish)

	ti.Keystroke("c2")
	ti.Keystroke("c1")
	ti.Stop()
	assert.Equal(t, []string{"c2:true", "c1:true", "c1:false", "c2:false"}, log.get())

	ti.Keystroke("c3")
	clock.Advance(TypingTimeout * 2)
	assert.Len(t, log.get(), 4)
	assert.False(t, ti.IsTyping("c1"))
}
