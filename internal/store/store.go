// Package store holds the currently loaded event set and its derived
// time bounds. The set is replaced wholesale on every load, never merged
// incrementally.
package store

import (
	"sort"
	"sync"

	"github.com/ScottCrass/quakescene/pkg/quake"
)

// Store is the exclusive owner of the loaded events. Reads are frequent
// (every visualization pass) so the held slice is handed out directly;
// callers must treat it as read-only.
type Store struct {
	mu     sync.RWMutex
	events []quake.Earthquake
	rng    quake.TimeRange
	loaded bool
}

func New() *Store {
	return &Store{}
}

// Replace swaps in a new event set, sorting it ascending by occurrence
// time and recomputing the time bounds. The input slice is copied so the
// caller keeps ownership of its own buffer.
func (s *Store) Replace(events []quake.Earthquake) {
	sorted := make([]quake.Earthquake, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = sorted
	if len(sorted) == 0 {
		s.rng = quake.TimeRange{}
		s.loaded = false
		return
	}
	s.rng = quake.TimeRange{
		Start: sorted[0].Time,
		End:   sorted[len(sorted)-1].Time,
	}
	s.loaded = true
}

// Events returns the held slice. Read-only by contract; a Replace builds
// a fresh slice rather than mutating this one, so a caller iterating a
// previously returned slice is never surprised mid-pass.
func (s *Store) Events() []quake.Earthquake {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events
}

// TimeRange returns the bounds of the loaded set. The second return is
// false until a non-empty set has been loaded.
func (s *Store) TimeRange() (quake.TimeRange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rng, s.loaded
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Clear drops the event set and bounds, returning the store to its
// pre-load state.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.rng = quake.TimeRange{}
	s.loaded = false
}
