// Package selection owns the single currently-selected station and its
// change notifications. Search results, marker clicks, and the automatic
// default pass all funnel through one coordinator, so every view observes
// the same selection.
package selection

import (
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/klimakarte/station-map/internal/directory"
	"github.com/klimakarte/station-map/internal/stations"
)

var (
	// ErrStaleSelection is returned when a select names an id absent from
	// the current directory generation. The selection is left unchanged.
	ErrStaleSelection = errors.New("station id not in current directory generation")
)

// Event describes one selection change. Selected is nil after a clear.
type Event struct {
	Selected *stations.StationRecord `json:"selected"`
}

// Coordinator holds the selection state. Exactly one station may be
// selected at a time; selecting a new one atomically replaces the old.
// Station identity persists across directory generations while record
// instances do not, so the held record is refreshed by id on every load.
type Coordinator struct {
	dir         *directory.Directory
	defaultName string

	mu       sync.RWMutex
	selected stations.StationRecord
	active   bool

	subscribers map[string]chan Event
}

// New creates a Coordinator with no selection. defaultName is the station
// name (case-insensitive) picked automatically once data arrives; empty
// disables the default pass.
func New(dir *directory.Directory, defaultName string) *Coordinator {
	return &Coordinator{
		dir:         dir,
		defaultName: defaultName,
		subscribers: make(map[string]chan Event),
	}
}

// Select sets the selection to the station with the given id. The id must
// belong to the current directory generation; otherwise the selection is
// unchanged and ErrStaleSelection is returned.
func (c *Coordinator) Select(id string) (stations.StationRecord, error) {
	record, ok := c.dir.GetByID(id)
	if !ok {
		return stations.StationRecord{}, ErrStaleSelection
	}

	c.mu.Lock()
	c.selected = record
	c.active = true
	c.mu.Unlock()

	c.broadcast(Event{Selected: &record})
	return record, nil
}

// Clear removes the selection.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	c.selected = stations.StationRecord{}
	c.active = false
	c.mu.Unlock()

	c.broadcast(Event{Selected: nil})
}

// Current returns the selected record, if any.
func (c *Coordinator) Current() (stations.StationRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.selected, c.active
}

// OnDirectoryLoaded reconciles the selection with a freshly replaced
// directory generation. The held record is refreshed by id (the instance
// from the prior generation is stale); if the id vanished, the selection is
// cleared. After that, if nothing is selected and a configured default name
// exists, the first record whose name equals it case-insensitively is
// selected. An existing selection is never overridden by the default pass.
func (c *Coordinator) OnDirectoryLoaded() {
	c.mu.Lock()

	cleared := false
	if c.active {
		if refreshed, ok := c.dir.GetByID(c.selected.StationID); ok {
			c.selected = refreshed
			c.mu.Unlock()

			c.broadcast(Event{Selected: &refreshed})
			return
		}

		log.Printf("selection: station %s left the directory; clearing selection", c.selected.StationID)
		c.selected = stations.StationRecord{}
		c.active = false
		cleared = true
	}

	if c.defaultName != "" {
		for _, r := range c.dir.All() {
			if strings.EqualFold(r.Name, c.defaultName) {
				c.selected = r
				c.active = true
				c.mu.Unlock()

				c.broadcast(Event{Selected: &r})
				return
			}
		}
	}

	c.mu.Unlock()

	if cleared {
		c.broadcast(Event{Selected: nil})
	}
}

// Subscribe registers an observer and returns its event channel. An
// existing subscription under the same id is replaced.
func (c *Coordinator) Subscribe(id string) <-chan Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.subscribers[id]; ok {
		close(existing)
		delete(c.subscribers, id)
	}

	// Buffered so a slow consumer cannot block selection changes.
	ch := make(chan Event, 16)
	c.subscribers[id] = ch

	return ch
}

// Unsubscribe removes an observer and closes its channel.
func (c *Coordinator) Unsubscribe(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.subscribers[id]; ok {
		close(ch)
		delete(c.subscribers, id)
	}
}

// broadcast delivers an event to all subscribers without blocking; events
// to a full channel are dropped.
func (c *Coordinator) broadcast(ev Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for id, ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
			log.Printf("selection: dropping event for slow subscriber %s", id)
		}
	}
}
