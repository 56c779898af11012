// Package engine drives the earthquake overlay. It loads catalogs from
// the feed, keeps the visual pool reconciled against the playback
// cursor, and fans finished frames out to the host.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ScottCrass/quakescene/internal/archive"
	"github.com/ScottCrass/quakescene/internal/cache"
	"github.com/ScottCrass/quakescene/internal/channel"
	"github.com/ScottCrass/quakescene/internal/feed"
	"github.com/ScottCrass/quakescene/internal/geo"
	"github.com/ScottCrass/quakescene/internal/influx"
	"github.com/ScottCrass/quakescene/internal/model"
	"github.com/ScottCrass/quakescene/internal/playback"
	"github.com/ScottCrass/quakescene/internal/pool"
	"github.com/ScottCrass/quakescene/internal/store"
	"github.com/ScottCrass/quakescene/internal/visual"
	"github.com/ScottCrass/quakescene/pkg/quake"
	"github.com/ScottCrass/quakescene/pkg/scene"
)

// ErrDisposed is returned by operations on an engine after Dispose.
var ErrDisposed = errors.New("engine disposed")

// Dependencies holds the collaborators the engine is wired with. Feed
// is required; every other field may be nil and the matching concern is
// skipped.
type Dependencies struct {
	Feed        *feed.Client
	Cache       *cache.CatalogCache
	Archive     archive.Backend
	Influx      *influx.Manager
	Frames      channel.Sender[scene.Frame]
	Graph       pool.Graph
	Logger      *slog.Logger
	Contributor string
}

// Config tunes playback and rendering.
type Config struct {
	// Speed is the initial playback rate in simulated days per
	// wall-clock second.
	Speed float64
	// FrameInterval is the playback tick period.
	FrameInterval time.Duration
	// Ramp selects the age color ramp by name. Unknown names fall back
	// to the classic ramp.
	Ramp string
	// AutoResume starts playback after a successful load unless the
	// operator paused manually.
	AutoResume bool
	// Clock overrides the wall clock, for tests.
	Clock func() time.Time
}

// Service owns the loaded catalog and the reconciliation cycle. One
// mutex serializes every pass and every state mutation; feed fetches
// run outside it so a slow network never stalls a running playback.
type Service struct {
	deps  Dependencies
	log   *slog.Logger
	clock func() time.Time

	autoResume bool

	mu       sync.Mutex
	ext      geo.Extent
	store    *store.Store
	pool     *pool.Pool
	queryKey string
	dropped  int
	disposed bool

	onTimeRangeChange func(rng quake.TimeRange, defined bool)
	onTimeChange      func(cursorMs int64)
	onVisualize       func()

	ctrl *playback.Controller

	loads  metric.Int64Counter
	passes metric.Int64Counter
}

// New builds an engine from its collaborators. The playback loop stays
// idle until the first load installs a time range.
func New(deps Dependencies, cfg Config) (*Service, error) {
	if deps.Feed == nil {
		return nil, errors.New("feed client is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Service{
		deps:       deps,
		log:        deps.Logger,
		clock:      clock,
		autoResume: cfg.AutoResume,
		store:      store.New(),
	}
	s.pool = pool.New(deps.Graph, deps.Logger,
		pool.WithRamp(visual.RampByName(cfg.Ramp)))
	s.ctrl = playback.NewController(playback.Config{
		Speed:         cfg.Speed,
		FrameInterval: cfg.FrameInterval,
		Clock:         clock,
		OnAdvance:     s.advance,
		Logger:        deps.Logger,
	})

	m := meter()
	var err error
	s.loads, err = m.Int64Counter(
		"engine.loads",
		metric.WithDescription("Catalog loads completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating loads counter: %w", err)
	}
	s.passes, err = m.Int64Counter(
		"engine.passes",
		metric.WithDescription("Reconciliation passes run"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating passes counter: %w", err)
	}
	pooled, err := m.Int64ObservableGauge(
		"engine.pool.size",
		metric.WithDescription("Live visual objects in the pool"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pool gauge: %w", err)
	}
	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			s.mu.Lock()
			n := int64(s.pool.Len())
			s.mu.Unlock()
			o.ObserveInt64(pooled, n)
			return nil
		},
		pooled,
	)
	if err != nil {
		return nil, fmt.Errorf("registering pool gauge: %w", err)
	}

	return s, nil
}

// OnTimeRangeChange registers fn to run once per successful load with
// the loaded catalog's span. defined is false when the catalog came
// back empty. Register callbacks before the first load.
func (s *Service) OnTimeRangeChange(fn func(rng quake.TimeRange, defined bool)) {
	s.mu.Lock()
	s.onTimeRangeChange = fn
	s.mu.Unlock()
}

// OnTimeChange registers fn to run on every cursor change, tick or seek.
func (s *Service) OnTimeChange(fn func(cursorMs int64)) {
	s.mu.Lock()
	s.onTimeChange = fn
	s.mu.Unlock()
}

// OnVisualize registers fn to run after every reconciliation pass, once
// the pooled visuals reflect it. Hosts rebuild hit-testing here.
func (s *Service) OnVisualize(fn func()) {
	s.mu.Lock()
	s.onVisualize = fn
	s.mu.Unlock()
}

// SetTerrainExtent installs the terrain mapping published by the host.
// Until it arrives every pass fails fast and pools nothing. If a
// catalog is already loaded a pass runs immediately so its events
// materialize without waiting for the next tick.
func (s *Service) SetTerrainExtent(ext geo.Extent) {
	s.mu.Lock()
	s.ext = ext
	loaded := s.store.Len() > 0
	s.mu.Unlock()

	s.log.Info("terrain extent set", "ready", ext.Ready())
	if loaded && ext.Ready() {
		if frame, ok := s.runPass(s.ctrl.Cursor(), true); ok {
			s.emit(frame, false)
		}
	}
}

// Load replaces the loaded catalog with the result of q. The fetch runs
// outside the engine mutex; on any failure the previous catalog, time
// range, cursor, and pooled visuals stay untouched. Concurrent loads
// against the same engine must be awaited by the caller.
func (s *Service) Load(ctx context.Context, q feed.Query) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}

	key := q.Key()
	start := time.Now()
	events, cached, err := s.fetch(ctx, key, q)
	if err != nil {
		return fmt.Errorf("feed fetch: %w", err)
	}
	took := time.Since(start)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	s.store.Replace(events)
	s.queryKey = key
	rng, defined := s.store.TimeRange()
	if defined {
		s.ctrl.SetRange(rng)
	} else {
		s.ctrl.ClearRange()
	}
	onRange := s.onTimeRangeChange
	s.mu.Unlock()

	s.log.Info("catalog loaded",
		"queryKey", key,
		"events", len(events),
		"cached", cached,
		"took", took)
	s.loads.Add(ctx, 1, metric.WithAttributes(attribute.Bool("cached", cached)))
	if s.deps.Influx != nil {
		if err := s.deps.Influx.WritePoint(ctx, influx.BucketFeedActivity,
			influx.NewFeedFetchPoint(key, len(events), took, cached)); err != nil {
			s.log.Debug("feed point not written", "error", err)
		}
	}

	if onRange != nil {
		onRange(rng, defined)
	}

	// One pass right away so the new catalog shows before the first
	// tick. An empty catalog still passes, evicting everything.
	if defined {
		s.advance(rng.Start)
	} else if frame, ok := s.runPass(0, true); ok {
		s.emit(frame, false)
	}

	s.archiveCatalog(q, events)

	if defined && s.autoResume {
		s.Resume()
	}
	return nil
}

// fetch serves q from the catalog cache when possible, hitting the feed
// and filling the cache otherwise.
func (s *Service) fetch(ctx context.Context, key string, q feed.Query) ([]quake.Earthquake, bool, error) {
	if s.deps.Cache != nil {
		if events, ok := s.deps.Cache.Get(key); ok {
			s.log.Debug("catalog served from cache", "queryKey", key)
			return events, true, nil
		}
	}
	events, err := s.deps.Feed.Fetch(ctx, q)
	if err != nil {
		return nil, false, err
	}
	if s.deps.Cache != nil {
		s.deps.Cache.Set(key, events)
	}
	return events, false, nil
}

// archiveCatalog persists one load. Archiving is best effort; a failure
// never fails the load that produced the data.
func (s *Service) archiveCatalog(q feed.Query, events []quake.Earthquake) {
	if s.deps.Archive == nil {
		return
	}
	cat := model.NewCatalog(q, s.deps.Contributor, events)
	if err := s.deps.Archive.SaveCatalog(&cat, events); err != nil {
		s.log.Error("archiving catalog failed",
			"queryKey", cat.QueryKey,
			"error", err)
	}
}

// Play starts playback from the current cursor on explicit user intent.
// Without a loaded range this is a silent no-op.
func (s *Service) Play() {
	s.ctrl.Play()
	s.publishState()
}

// Resume starts playback only when the operator has not paused
// manually. Hosts call this after regaining focus.
func (s *Service) Resume() {
	s.ctrl.Resume()
	s.publishState()
}

// Pause halts playback and remembers the operator chose to.
func (s *Service) Pause() {
	s.ctrl.Pause()
	s.publishState()
}

// Stop halts playback and rewinds the cursor to the range start,
// running a pass there.
func (s *Service) Stop() {
	s.ctrl.Stop()
	s.publishState()
}

// Seek moves the cursor and runs a pass at the new position. Playback
// state is unchanged; a playing engine keeps playing from there.
func (s *Service) Seek(cursorMs int64) {
	s.ctrl.Seek(cursorMs)
}

// SetPlaybackSpeed changes the rate in simulated days per wall-clock
// second, effective on the next tick. Non-positive rates are ignored.
func (s *Service) SetPlaybackSpeed(speed float64) {
	s.ctrl.SetSpeed(speed)
}

// VisualizeAt runs one bounded pass with the given cutoff without
// touching the playback cursor.
func (s *Service) VisualizeAt(cutoffMs int64) {
	if frame, ok := s.runPass(cutoffMs, true); ok {
		s.emit(frame, false)
	}
}

// VisualizeNow shows the whole catalog at once with ages measured from
// the wall clock, the static view used before playback starts.
func (s *Service) VisualizeNow() {
	now := s.clock().UnixMilli()
	if frame, ok := s.runPass(now, false); ok {
		s.emit(frame, false)
	}
}

// SetSelectedEarthquake highlights the entry for id if it is currently
// pooled, restoring any previous selection first. A frame goes out
// immediately so the highlight shows while playback is stopped.
func (s *Service) SetSelectedEarthquake(id string) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.pool.Select(id)
	frame := s.snapshotLocked()
	s.mu.Unlock()
	s.pushFrame(frame)
}

// ClearSelectedEarthquake restores the selected entry, if any.
func (s *Service) ClearSelectedEarthquake() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.pool.ClearSelection()
	frame := s.snapshotLocked()
	s.mu.Unlock()
	s.pushFrame(frame)
}

// SelectedEarthquake returns the highlighted event, if any.
func (s *Service) SelectedEarthquake() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Selected()
}

// TimeRange returns the loaded catalog's span. ok is false before the
// first non-empty load.
func (s *Service) TimeRange() (quake.TimeRange, bool) {
	return s.ctrl.Range()
}

// CurrentTime returns the playback cursor in milliseconds since epoch.
func (s *Service) CurrentTime() int64 {
	return s.ctrl.Cursor()
}

// State returns the playback state.
func (s *Service) State() playback.State {
	return s.ctrl.State()
}

// Speed returns the playback rate in simulated days per second.
func (s *Service) Speed() float64 {
	return s.ctrl.Speed()
}

// Status is a point-in-time summary for the monitor loop.
type Status struct {
	QueryKey      string  `json:"queryKey,omitempty"`
	Events        int     `json:"events"`
	Pooled        int     `json:"pooled"`
	State         string  `json:"state"`
	Cursor        int64   `json:"cursor"`
	Speed         float64 `json:"speed"`
	Selected      string  `json:"selected,omitempty"`
	FramesDropped int     `json:"framesDropped"`
}

// Status reports the engine's current state.
func (s *Service) Status() Status {
	s.mu.Lock()
	key := s.queryKey
	events := s.store.Len()
	pooled := s.pool.Len()
	dropped := s.dropped
	selected, _ := s.pool.Selected()
	s.mu.Unlock()

	return Status{
		QueryKey:      key,
		Events:        events,
		Pooled:        pooled,
		State:         s.ctrl.State().String(),
		Cursor:        s.ctrl.Cursor(),
		Speed:         s.ctrl.Speed(),
		Selected:      selected,
		FramesDropped: dropped,
	}
}

// Dispose halts playback and releases every pooled entry. It never
// fails, is safe to call repeatedly, and is safe during active
// playback. The engine is inert afterwards.
func (s *Service) Dispose() {
	s.ctrl.ClearRange()

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.pool.Dispose()
	s.store.Clear()
	s.mu.Unlock()

	s.log.Info("engine disposed")
}

// advance is the controller's per-cursor-change hook: tick, seek, and
// stop all land here.
func (s *Service) advance(cursorMs int64) {
	frame, ok := s.runPass(cursorMs, true)
	if !ok {
		return
	}
	s.emit(frame, true)
}

// runPass executes one reconciliation pass under the engine mutex and
// returns the finished frame. ok is false when the engine is disposed
// or the pass failed before touching anything.
func (s *Service) runPass(refMs int64, bounded bool) (scene.Frame, bool) {
	start := time.Now()

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return scene.Frame{}, false
	}
	events := s.store.Events()
	var (
		stats pool.Stats
		err   error
	)
	if bounded {
		stats, err = s.pool.Reconcile(events, s.ext, refMs)
	} else {
		stats, err = s.pool.ReconcileAll(events, s.ext, refMs)
	}
	if err != nil {
		s.mu.Unlock()
		s.log.Warn("reconciliation pass skipped", "error", err)
		return scene.Frame{}, false
	}
	frame := scene.Frame{
		Time:    refMs,
		Entries: s.pool.Snapshot(),
		Created: stats.Created,
		Evicted: stats.Evicted,
	}
	active := s.pool.Len()
	key := s.queryKey
	s.mu.Unlock()

	s.passes.Add(context.Background(), 1)
	if s.deps.Influx != nil {
		if err := s.deps.Influx.WritePoint(context.Background(), influx.BucketOverlayPerformance,
			influx.NewReconcilePoint(key, stats.Created, stats.Updated, stats.Evicted, active, time.Since(start))); err != nil {
			s.log.Debug("reconcile point not written", "error", err)
		}
	}
	return frame, true
}

// emit delivers one finished pass: cursor callback when the cursor
// moved, then the frame, then the visualize callback once the visuals
// are current.
func (s *Service) emit(frame scene.Frame, cursorMoved bool) {
	s.mu.Lock()
	onTime := s.onTimeChange
	onVis := s.onVisualize
	s.mu.Unlock()

	if cursorMoved && onTime != nil {
		onTime(frame.Time)
	}
	s.pushFrame(frame)
	if onVis != nil {
		onVis()
	}
}

// pushFrame hands the frame to the viewer without ever blocking the
// reconciliation path; a slow viewer loses frames, not the engine.
func (s *Service) pushFrame(frame scene.Frame) {
	if s.deps.Frames == nil {
		return
	}
	if !s.deps.Frames.TrySend(frame) {
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		s.log.Debug("frame dropped, viewer not keeping up", "time", frame.Time)
	}
}

// snapshotLocked builds a frame from the current pool state without
// running a pass. Caller holds the mutex.
func (s *Service) snapshotLocked() scene.Frame {
	return scene.Frame{
		Time:    s.ctrl.Cursor(),
		Entries: s.pool.Snapshot(),
	}
}

// publishState records a playback state transition.
func (s *Service) publishState() {
	state := s.ctrl.State().String()
	cursor := s.ctrl.Cursor()

	s.mu.Lock()
	key := s.queryKey
	s.mu.Unlock()

	s.log.Debug("playback state", "state", state, "cursor", cursor)
	if s.deps.Influx != nil {
		if err := s.deps.Influx.WritePoint(context.Background(), influx.BucketPlaybackSessions,
			influx.NewPlaybackStatePoint(key, state, s.ctrl.Speed(), cursor)); err != nil {
			s.log.Debug("playback point not written", "error", err)
		}
	}
}
