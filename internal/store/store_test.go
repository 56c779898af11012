package store

import (
	"testing"

	"github.com/ScottCrass/quakescene/pkg/quake"
)

func TestStore_ReplaceSortsAscending(t *testing.T) {
	s := New()
	s.Replace([]quake.Earthquake{
		{ID: "c", Time: 3000},
		{ID: "a", Time: 1000},
		{ID: "b", Time: 2000},
	})

	events := s.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, id := range []string{"a", "b", "c"} {
		if events[i].ID != id {
			t.Errorf("expected %s at index %d, got %s", id, i, events[i].ID)
		}
	}
}

func TestStore_TimeRangeFromBounds(t *testing.T) {
	s := New()
	s.Replace([]quake.Earthquake{
		{ID: "b", Time: 5000},
		{ID: "a", Time: 1000},
	})

	rng, ok := s.TimeRange()
	if !ok {
		t.Fatal("expected a defined time range")
	}
	if rng.Start != 1000 {
		t.Errorf("expected start=1000, got %d", rng.Start)
	}
	if rng.End != 5000 {
		t.Errorf("expected end=5000, got %d", rng.End)
	}
}

func TestStore_TimeRangeUndefinedBeforeLoad(t *testing.T) {
	s := New()

	_, ok := s.TimeRange()
	if ok {
		t.Error("expected no time range before load")
	}
}

func TestStore_ReplaceWithEmptyClearsRange(t *testing.T) {
	s := New()
	s.Replace([]quake.Earthquake{{ID: "a", Time: 1000}})
	s.Replace(nil)

	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d events", s.Len())
	}
	if _, ok := s.TimeRange(); ok {
		t.Error("expected undefined range after empty replace")
	}
}

func TestStore_ReplaceCopiesInput(t *testing.T) {
	in := []quake.Earthquake{
		{ID: "b", Time: 2000},
		{ID: "a", Time: 1000},
	}
	s := New()
	s.Replace(in)

	// The caller's slice keeps its order; the store sorted its own copy.
	if in[0].ID != "b" {
		t.Errorf("expected caller slice untouched, got %s first", in[0].ID)
	}
	if s.Events()[0].ID != "a" {
		t.Errorf("expected sorted store copy, got %s first", s.Events()[0].ID)
	}
}

func TestStore_SingleEventRange(t *testing.T) {
	s := New()
	s.Replace([]quake.Earthquake{{ID: "only", Time: 4200}})

	rng, ok := s.TimeRange()
	if !ok {
		t.Fatal("expected a defined time range")
	}
	if rng.Start != 4200 || rng.End != 4200 {
		t.Errorf("expected collapsed range at 4200, got %+v", rng)
	}
}

func TestStore_Clear(t *testing.T) {
	s := New()
	s.Replace([]quake.Earthquake{{ID: "a", Time: 1000}})
	s.Clear()

	if s.Len() != 0 {
		t.Errorf("expected 0 events after clear, got %d", s.Len())
	}
	if _, ok := s.TimeRange(); ok {
		t.Error("expected undefined range after clear")
	}
}
