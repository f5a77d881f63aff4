package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommatch/models"
)

func TestNormalizeProfiles(t *testing.T) {
	in := []models.Profile{
		{ID: "u1", Name: "A"},
		{UserID: "u2", Name: "B"},
		{Name: "orphan"},
	}

	out, dropped := NormalizeProfiles(in)

	assert.Equal(t, 1, dropped)
	require.Len(t, out, 2)
	assert.Equal(t, "u1", out[0].ID)
	assert.Equal(t, "u2", out[1].ID)
	assert.Equal(t, "u2", out[1].UserID)
}

func TestMemoryProfiles_SubscribeDeliversInitialAndChanges(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryProfiles()
	require.NoError(t, s.Put(ctx, models.Profile{ID: "u1", Name: "A"}))

	var snapshots [][]models.Profile
	unsubscribe, err := s.Subscribe(ctx, func(p []models.Profile) { snapshots = append(snapshots, p) })
	require.NoError(t, err)

	require.Len(t, snapshots, 1, "initial snapshot is delivered immediately")
	assert.Len(t, snapshots[0], 1)

	require.NoError(t, s.Put(ctx, models.Profile{UserID: "u2", Name: "B"}))
	require.Len(t, snapshots, 2)
	assert.Equal(t, []string{"u1", "u2"}, ids(snapshots[1]))

	// full replace keeps position
	require.NoError(t, s.Put(ctx, models.Profile{ID: "u1", Name: "A2"}))
	require.Len(t, snapshots, 3)
	assert.Equal(t, "A2", snapshots[2][0].Name)

	unsubscribe()
	unsubscribe()
	require.NoError(t, s.Put(ctx, models.Profile{ID: "u3", Name: "C"}))
	assert.Len(t, snapshots, 3)
}

func TestMemoryProfiles_GetByAlias(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryProfiles()
	require.NoError(t, s.Put(ctx, models.Profile{ID: "doc-1", UserID: "u1", Name: "A"}))

	p, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", p.ID)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryProfiles_RejectsMissingIdentity(t *testing.T) {
	err := NewMemoryProfiles().Put(context.Background(), models.Profile{Name: "ghost"})
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestMemoryProfiles_Unavailable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryProfiles()
	boom := errors.New("store down")
	s.SetUnavailable(boom)

	_, err := s.GetAll(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = s.Subscribe(ctx, func([]models.Profile) {})
	assert.ErrorIs(t, err, boom)
}

func TestMemoryMessaging_SendHistorySubscribe(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_000))
	m := NewMemoryMessaging(clock)
	conv := models.ConversationID("u1", "u2")

	var batches [][]models.Message
	unsubscribe, err := m.Subscribe(ctx, conv, func(msgs []models.Message) { batches = append(batches, msgs) })
	require.NoError(t, err)
	defer unsubscribe()
	require.Len(t, batches, 1)
	assert.Empty(t, batches[0])

	res, err := m.Send(ctx, conv, models.Message{SenderID: "u1", Text: "hi"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.ID)

	// an earlier timestamp is inserted in order
	_, err = m.Send(ctx, conv, models.Message{SenderID: "u2", Text: "earlier", Timestamp: 500})
	require.NoError(t, err)

	history, err := m.History(ctx, conv)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "earlier", history[0].Text)
	assert.Equal(t, int64(1_000), history[1].Timestamp)
	assert.Equal(t, conv, history[1].ConversationID)
	assert.Len(t, batches, 3)
}

func TestMemoryMessaging_SendFailures(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMessaging(clockwork.NewFakeClock())
	conv := models.ConversationID("u1", "u2")

	res, err := m.Send(ctx, conv, models.Message{SenderID: "u1", Text: "   "})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.False(t, res.Success)

	boom := errors.New("offline")
	m.FailSends(boom)
	res, err = m.Send(ctx, conv, models.Message{SenderID: "u1", Text: "hello"})
	assert.ErrorIs(t, err, boom)
	assert.False(t, res.Success)
}

func TestMemoryMessaging_Typing(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMessaging(clockwork.NewFakeClock())
	conv := models.ConversationID("u1", "u2")

	var got []models.TypingState
	unsubscribe := m.SubscribeTyping(conv, func(s models.TypingState) { got = append(got, s) })

	require.NoError(t, m.SetTyping(ctx, conv, "u1", true))
	require.NoError(t, m.SetTyping(ctx, "other", "u3", true))
	unsubscribe()
	require.NoError(t, m.SetTyping(ctx, conv, "u1", false))

	assert.Equal(t, []models.TypingState{{ConversationID: conv, UserID: "u1", Typing: true}}, got)
}

func TestMemoryPins(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	p := NewMemoryPins(clock)

	require.NoError(t, p.Pin(ctx, "u1", "u2"))
	clock.Advance(time.Second)
	require.NoError(t, p.Pin(ctx, "u1", "u3"))
	require.NoError(t, p.Pin(ctx, "u1", "u2"))
	assert.ErrorIs(t, p.Pin(ctx, "u1", "u1"), ErrSelfPin)

	pins, err := p.Pins(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"u2": true, "u3": true}, PinSet(pins))
	assert.Equal(t, "u2", pins[0].TargetID)

	require.NoError(t, p.Unpin(ctx, "u1", "u2"))
	pins, err = p.Pins(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, pins, 1)
}

func TestMemorySubscriptions(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySubscriptions()

	require.NoError(t, s.Save(ctx, models.PushSubscription{UserID: "b", Endpoint: "e1"}))
	require.NoError(t, s.Save(ctx, models.PushSubscription{UserID: "a", Endpoint: "e2"}))
	require.NoError(t, s.Save(ctx, models.PushSubscription{UserID: "b", Endpoint: "e3"}))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].UserID)
	assert.Equal(t, "e3", all[1].Endpoint)

	require.NoError(t, s.Delete(ctx, "a"))
	all, _ = s.All(ctx)
	assert.Len(t, all, 1)
}

func ids(ps []models.Profile) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
