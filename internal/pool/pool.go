// Package pool owns the live visual representation of every event
// visible under the current time cutoff. The pool is reconciled, never
// rebuilt: one allocation per event per lifetime, mutation in place on
// every pass, eviction the moment an event falls outside the cutoff.
package pool

import (
	"log/slog"

	"github.com/ScottCrass/quakescene/internal/geo"
	"github.com/ScottCrass/quakescene/internal/visual"
	"github.com/ScottCrass/quakescene/pkg/quake"
	"github.com/ScottCrass/quakescene/pkg/scene"
)

var highlightColor = scene.RGB{R: 1, G: 1, B: 1}

// Entry is the persistent visual representation of one event: a point
// marker at the hypocenter and a segment from the surface down to it.
// Entries are owned exclusively by the pool; collaborators only see
// transient snapshots.
type Entry struct {
	ID      string
	Marker  scene.MarkerState
	Segment scene.SegmentState

	// Rest appearance, rewritten on every pass and restored when a
	// highlight is cleared.
	RestColor   scene.RGB
	RestOpacity float64
}

// Graph is the scene-side sink for entry lifecycle. Add attaches a
// freshly created entry's visuals, Remove releases them. A Remove error
// never blocks the pool from dropping its own bookkeeping.
type Graph interface {
	Add(e *Entry)
	Remove(e *Entry) error
}

// Stats summarizes one reconciliation pass.
type Stats struct {
	Created int
	Updated int
	Evicted int
}

// Option configures a Pool.
type Option func(*Pool)

// WithRamp overrides the color ramp used during state derivation.
func WithRamp(r visual.ColorRamp) Option {
	return func(p *Pool) { p.ramp = r }
}

// Pool maps event identifiers to their live entries. Not safe for
// concurrent use; the engine serializes passes, matching the
// no-reentrancy contract of reconciliation.
type Pool struct {
	entries  map[string]*Entry
	graph    Graph
	log      *slog.Logger
	ramp     visual.ColorRamp
	selected string
}

// New builds an empty pool. graph may be nil for headless use; logger
// may be nil to fall back to the default.
func New(graph Graph, logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		entries: make(map[string]*Entry),
		graph:   graph,
		log:     logger,
		ramp:    visual.ClassicRamp,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reconcile updates the pool to hold exactly the events with a
// timestamp at or before cutoffMs, which also serves as the reference
// time for age derivation. Returns pass statistics, or an error before
// touching anything if the extent is not ready.
func (p *Pool) Reconcile(events []quake.Earthquake, ext geo.Extent, cutoffMs int64) (Stats, error) {
	return p.reconcile(events, ext, cutoffMs, true)
}

// ReconcileAll updates the pool against the full event set with ages
// measured from nowMs, the unfiltered static view.
func (p *Pool) ReconcileAll(events []quake.Earthquake, ext geo.Extent, nowMs int64) (Stats, error) {
	return p.reconcile(events, ext, nowMs, false)
}

func (p *Pool) reconcile(events []quake.Earthquake, ext geo.Extent, refMs int64, bounded bool) (Stats, error) {
	if !ext.Ready() {
		return Stats{}, geo.ErrExtentNotReady
	}

	var stats Stats
	active := make(map[string]struct{}, len(events))
	for i := range events {
		ev := &events[i]
		if bounded && ev.Time > refMs {
			continue
		}
		active[ev.ID] = struct{}{}

		pos := ext.Project(ev.Latitude, ev.Longitude, ev.DepthKm)
		state := visual.DeriveWithRamp(ev.Time, refMs, p.ramp)

		e, ok := p.entries[ev.ID]
		if !ok {
			e = &Entry{ID: ev.ID}
			p.entries[ev.ID] = e
			apply(e, pos, state)
			if p.graph != nil {
				p.graph.Add(e)
			}
			stats.Created++
			continue
		}
		apply(e, pos, state)
		stats.Updated++
	}

	for id, e := range p.entries {
		if _, ok := active[id]; ok {
			continue
		}
		p.remove(e)
		stats.Evicted++
	}

	// Reapply the highlight after the pass so a selected entry stays
	// marked across reconciliations. Selection survives eviction; it
	// simply has no effect until the event is materialized again.
	if e, ok := p.entries[p.selected]; ok {
		highlight(e)
	}

	return stats, nil
}

// Select highlights one entry, restoring the previous selection's rest
// appearance first. Selecting an id that is not currently materialized
// records it without visual effect.
func (p *Pool) Select(id string) {
	if p.selected == id {
		return
	}
	if prev, ok := p.entries[p.selected]; ok {
		restore(prev)
	}
	p.selected = id
	if e, ok := p.entries[id]; ok {
		highlight(e)
	}
}

// ClearSelection restores the selected entry's rest appearance and
// forgets the selection.
func (p *Pool) ClearSelection() {
	if e, ok := p.entries[p.selected]; ok {
		restore(e)
	}
	p.selected = ""
}

// Selected returns the selected event id, if any.
func (p *Pool) Selected() (string, bool) {
	return p.selected, p.selected != ""
}

// Entry returns the live entry for an event id. Callers must not hold
// the pointer across passes.
func (p *Pool) Entry(id string) (*Entry, bool) {
	e, ok := p.entries[id]
	return e, ok
}

func (p *Pool) Len() int {
	return len(p.entries)
}

// Snapshot copies the current entries for transport or hit-testing.
// Order is unspecified.
func (p *Pool) Snapshot() []scene.EntrySnapshot {
	out := make([]scene.EntrySnapshot, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, scene.EntrySnapshot{
			EventID:  e.ID,
			Marker:   e.Marker,
			Segment:  e.Segment,
			Selected: e.ID == p.selected,
		})
	}
	return out
}

// Dispose releases every entry. Release failures are logged and never
// abort the teardown.
func (p *Pool) Dispose() {
	for _, e := range p.entries {
		p.remove(e)
	}
	p.selected = ""
}

func (p *Pool) remove(e *Entry) {
	if p.graph != nil {
		if err := p.graph.Remove(e); err != nil {
			p.log.Warn("failed to release entry visuals", "id", e.ID, "error", err)
		}
	}
	delete(p.entries, e.ID)
}

// apply writes the freshly derived appearance into the entry, marker
// and depth segment both, and refreshes the rest snapshot. The segment
// runs from the surface straight down to the hypocenter.
func apply(e *Entry, pos scene.Position, st visual.State) {
	e.Marker.Position = pos
	e.Marker.Scale = st.Scale
	e.Marker.Color = st.Color
	e.Marker.Glow = st.Glow
	e.Marker.Opacity = st.Opacity

	e.Segment.Top = scene.Position{X: pos.X, Y: pos.Y, Z: 0}
	e.Segment.Bottom = pos
	e.Segment.Color = st.Color
	e.Segment.Opacity = st.Opacity

	e.RestColor = st.Color
	e.RestOpacity = st.Opacity
}

func highlight(e *Entry) {
	e.Marker.Color = highlightColor
	e.Marker.Opacity = 1
	e.Segment.Color = highlightColor
	e.Segment.Opacity = 1
}

func restore(e *Entry) {
	e.Marker.Color = e.RestColor
	e.Marker.Opacity = e.RestOpacity
	e.Segment.Color = e.RestColor
	e.Segment.Opacity = e.RestOpacity
}
