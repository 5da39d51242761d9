// Package availability answers "is this area free for this range" against
// the set of active (pending or paid) reservations.
package availability

import (
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/area-reservation/internal/model"
)

type entry struct {
	id string
	r  model.TimeRange
}

type areaSlots struct {
	entries []entry // sorted by (start, id)
	// longest duration ever indexed for the area; bounds the backwards scan
	maxDur time.Duration
}

// Index keeps, per area, the active reservations ordered by start time.
// Lookups only visit entries whose start lies in
// (range.Start - maxDuration, range.End), so the cost is proportional to
// the reservations near the queried range rather than the whole area.
//
// Index is safe for concurrent use.  It does not make check-then-add
// atomic on its own; callers that need that must serialize per area.
type Index struct {
	mu    sync.RWMutex
	areas map[uint64]*areaSlots
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{areas: make(map[uint64]*areaSlots)}
}

// Add indexes an active reservation.  Adding an id twice replaces the
// previous entry.
func (ix *Index) Add(areaID uint64, id string, r model.TimeRange) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	a := ix.areas[areaID]
	if a == nil {
		a = &areaSlots{}
		ix.areas[areaID] = a
	}
	a.remove(id)
	e := entry{id: id, r: r}
	i := sort.Search(len(a.entries), func(i int) bool { return !less(a.entries[i], e) })
	a.entries = append(a.entries, entry{})
	copy(a.entries[i+1:], a.entries[i:])
	a.entries[i] = e
	if d := r.Duration(); d > a.maxDur {
		a.maxDur = d
	}
}

// Remove drops a reservation from the index.  Unknown ids are ignored.
func (ix *Index) Remove(areaID uint64, id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if a := ix.areas[areaID]; a != nil {
		a.remove(id)
	}
}

// IsAvailable reports whether no indexed reservation of areaID, other
// than excludeID, overlaps r.  Pass an empty excludeID to consider all.
func (ix *Index) IsAvailable(areaID uint64, r model.TimeRange, excludeID string) bool {
	return len(ix.conflicts(areaID, r, excludeID, 1)) == 0
}

// Conflicts returns the ids of indexed reservations overlapping r, in
// start order.
func (ix *Index) Conflicts(areaID uint64, r model.TimeRange, excludeID string) []string {
	return ix.conflicts(areaID, r, excludeID, 0)
}

// Len returns the number of indexed reservations for areaID.
func (ix *Index) Len(areaID uint64) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if a := ix.areas[areaID]; a != nil {
		return len(a.entries)
	}
	return 0
}

func (ix *Index) conflicts(areaID uint64, r model.TimeRange, excludeID string, limit int) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	a := ix.areas[areaID]
	if a == nil {
		return nil
	}
	lower := r.Start.Add(-a.maxDur)
	i := sort.Search(len(a.entries), func(i int) bool { return a.entries[i].r.Start.After(lower) })
	var out []string
	for ; i < len(a.entries); i++ {
		e := a.entries[i]
		if !e.r.Start.Before(r.End) {
			break
		}
		if e.id == excludeID || !e.r.Overlaps(r) {
			continue
		}
		out = append(out, e.id)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (a *areaSlots) remove(id string) {
	for i, e := range a.entries {
		if e.id == id {
			a.entries = append(a.entries[:i], a.entries[i+1:]...)
			return
		}
	}
}

func less(a, b entry) bool {
	if !a.r.Start.Equal(b.r.Start) {
		return a.r.Start.Before(b.r.Start)
	}
	return a.id < b.id
}
