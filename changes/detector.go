// Package changes diffs successive profile snapshots and reports newly added
// profiles to registered observers.
package changes

import (
	"sync"

	"roommatch/models"
)

// Event carries the profiles that appeared since the previous snapshot and the
// snapshot they appeared in.
type Event struct {
	Added   []models.Profile
	Current []models.Profile
}

type Handler func(Event)

type registration struct {
	id int
	fn Handler
}

// Detector is uninitialized until the first snapshot, which only primes it.
// Removals are not reported.
type Detector struct {
	mu       sync.Mutex
	primed   bool
	previous map[string]struct{}
	handlers []registration
	nextID   int
}

func NewDetector() *Detector {
	return &Detector{}
}

// OnAdded registers h and returns its unsubscribe func.
func (d *Detector) OnAdded(h Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.handlers = append(d.handlers, registration{id: id, fn: h})

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, r := range d.handlers {
				if r.id == id {
					d.handlers = append(d.handlers[:i:i], d.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

// Observe diffs current against the previous snapshot and notifies handlers
// in registration order. It returns the added profiles.
func (d *Detector) Observe(current []models.Profile) []models.Profile {
	ids := make(map[string]struct{}, len(current))
	for _, p := range current {
		if id := p.Identity(); id != "" {
			ids[id] = struct{}{}
		}
	}

	d.mu.Lock()
	if !d.primed {
		d.primed = true
		d.previous = ids
		d.mu.Unlock()
		return nil
	}
	var added []models.Profile
	for _, p := range current {
		id := p.Identity()
		if id == "" {
			continue
		}
		if _, seen := d.previous[id]; !seen {
			added = append(added, p)
		}
	}
	d.previous = ids
	handlers := make([]Handler, len(d.handlers))
	for i, r := range d.handlers {
		handlers[i] = r.fn
	}
	d.mu.Unlock()

	if len(added) == 0 {
		return nil
	}
	ev := Event{Added: added, Current: current}
	for _, h := range handlers {
		h(ev)
	}
	return added
}

// Reset returns the detector to its uninitialized state. Handlers stay.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.primed = false
	d.previous = nil
	d.mu.Unlock()
}
