// Package directory holds the in-memory station directory. One complete,
// atomically swapped snapshot of records is a generation; readers always see
// a whole generation, never a mix of two.
package directory

import (
	"sync"

	"github.com/klimakarte/station-map/internal/stations"
)

// Directory is a concurrency-safe, read-mostly collection of station
// records, keyed by station id. Replace swaps the entire generation; records
// are immutable values, so long-lived references held by callers (such as
// the selection coordinator) cannot observe torn reads.
type Directory struct {
	mu sync.RWMutex

	// records preserves input order; byID indexes the same generation.
	records    []stations.StationRecord
	byID       map[string]stations.StationRecord
	generation uint64
}

// New creates an empty Directory.
func New() *Directory {
	return &Directory{
		records: make([]stations.StationRecord, 0),
		byID:    make(map[string]stations.StationRecord),
	}
}

// Replace atomically swaps the whole collection with a new generation. The
// index is built fully before publication, so a concurrent reader sees
// either the prior generation in full or the new one in full. Duplicate ids
// keep the first occurrence; station ids are unique within one generation.
func (d *Directory) Replace(records []stations.StationRecord) {
	next := make([]stations.StationRecord, 0, len(records))
	byID := make(map[string]stations.StationRecord, len(records))

	for _, r := range records {
		if _, exists := byID[r.StationID]; exists {
			continue
		}
		byID[r.StationID] = r
		next = append(next, r)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.records = next
	d.byID = byID
	d.generation++
}

// GetByID returns the record for id in the current generation.
func (d *Directory) GetByID(id string) (stations.StationRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.byID[id]
	return r, ok
}

// All returns the current generation in input order. The slice is a copy to
// prevent external modification.
func (d *Directory) All() []stations.StationRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]stations.StationRecord, len(d.records))
	copy(result, d.records)
	return result
}

// Len returns the size of the current generation.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.records)
}

// Generation returns the monotonic generation counter; it increments once
// per Replace.
func (d *Directory) Generation() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.generation
}
