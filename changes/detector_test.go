package changes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommatch/models"
)

func profiles(ids ...string) []models.Profile {
	out := make([]models.Profile, len(ids))
	for i, id := range ids {
		out[i] = models.Profile{ID: id, Name: id}
	}
	return out
}

func addedIDs(ev Event) []string {
	out := make([]string, len(ev.Added))
	for i, p := range ev.Added {
		out[i] = p.ID
	}
	return out
}

func TestDetector_FirstSnapshotPrimesOnly(t *testing.T) {
	d := NewDetector()
	var events []Event
	d.OnAdded(func(e Event) { events = append(events, e) })

	assert.Nil(t, d.Observe(profiles("a", "b", "c")))
	assert.Empty(t, events)
}

func TestDetector_ReportsAdditionsOnce(t *testing.T) {
	d := NewDetector()
	var events []Event
	d.OnAdded(func(e Event) { events = append(events, e) })

	d.Observe(profiles("a"))
	d.Observe(profiles("a", "b"))
	d.Observe(profiles("a", "b"))
	d.Observe(profiles("b", "a", "c"))

	require.Len(t, events, 2)
	assert.Equal(t, []string{"b"}, addedIDs(events[0]))
	assert.Len(t, events[0].Current, 2)
	assert.Equal(t, []string{"c"}, addedIDs(events[1]))
}

func TestDetector_RemovalIsSilentAndPreviousAlwaysReplaced(t *testing.T) {
	d := NewDetector()
	var events []Event
	d.OnAdded(func(e Event) { events = append(events, e) })

	d.Observe(profiles("a", "b"))
	d.Observe(profiles("a"))
	assert.Empty(t, events)

	// b disappeared, so its return counts as an addition again.
	d.Observe(profiles("a", "b"))
	require.Len(t, events, 1)
	assert.Equal(t, []string{"b"}, addedIDs(events[0]))
}

func TestDetector_AliasIdentity(t *testing.T) {
	d := NewDetector()
	var got []string
	d.OnAdded(func(e Event) { got = append(got, addedIDs(e)...) })

	d.Observe([]models.Profile{{UserID: "a"}})
	d.Observe([]models.Profile{{UserID: "a"}, {ID: "b"}, {}})
	assert.Equal(t, []string{"b"}, got)
}

func TestDetector_RegistrationOrderAndUnsubscribe(t *testing.T) {
	d := NewDetector()
	var order []string
	d.OnAdded(func(Event) { order = append(order, "first") })
	unsub := d.OnAdded(func(Event) { order = append(order, "second") })
	d.OnAdded(func(Event) { order = append(order, "third") })

	d.Observe(profiles("a"))
	d.Observe(profiles("a", "b"))
	assert.Equal(t, []string{"first", "second", "third"}, order)

	unsub()
	unsub()
	order = nil
	d.Observe(profiles("a", "b", "c"))
	assert.Equal(t, []string{"first", "third"}, order)
}

func TestDetector_HandlerMayReenter(t *testing.T) {
	d := NewDetector()
	var unsub func()
	calls := 0
	unsub = d.OnAdded(func(Event) {
		calls++
		unsub()
	})
	d.Observe(profiles("a"))
	d.Observe(profiles("a", "b"))
	d.Observe(profiles("a", "b", "c"))
	assert.Equal(t, 1, calls)
}

func TestDetector_Reset(t *testing.T) {
	d := NewDetector()
	var events []Event
	d.OnAdded(func(e Event) { events = append(events, e) })

	d.Observe(profiles("a"))
	d.Reset()
	d.Observe(profiles("a", "b"))
	assert.Empty(t, events)

	d.Observe(profiles("a", "b", "c"))
	require.Len(t, events, 1)
}
