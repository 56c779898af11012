// Package playback drives the simulated-time cursor through the loaded
// time range: a small stopped/playing/paused state machine ticking at a
// display-like frame interval.
package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ScottCrass/quakescene/pkg/quake"
)

// Cursor advance is measured in simulated days per real second.
const msPerDay = 86_400_000

const defaultFrameInterval = 33 * time.Millisecond

type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Config carries the controller's collaborators and tuning. Zero values
// fall back to defaults; Clock exists so tests can drive time by hand.
type Config struct {
	Speed         float64
	FrameInterval time.Duration
	Clock         func() time.Time
	OnAdvance     func(cursorMs int64)
	Logger        *slog.Logger
}

// Controller owns the playback cursor. All methods are safe for
// concurrent use; the tick loop runs on its own goroutine and is
// guaranteed to be the only one outstanding.
type Controller struct {
	mu             sync.Mutex
	state          State
	manuallyPaused bool
	cursor         int64
	hasRange       bool
	rng            quake.TimeRange
	speed          float64
	frameInterval  time.Duration
	lastTick       time.Time
	stopTick       chan struct{}
	now            func() time.Time
	onAdvance      func(cursorMs int64)
	log            *slog.Logger
}

func NewController(cfg Config) *Controller {
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = defaultFrameInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		speed:         cfg.Speed,
		frameInterval: cfg.FrameInterval,
		now:           cfg.Clock,
		onAdvance:     cfg.OnAdvance,
		log:           cfg.Logger,
	}
}

// SetRange installs freshly loaded time bounds. The cursor resets to
// the start and the controller returns to the idle stopped state. The
// manual-pause flag is left alone so an explicit pause keeps holding
// off automatic resumes across loads.
func (c *Controller) SetRange(rng quake.TimeRange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTickLocked()
	c.rng = rng
	c.hasRange = true
	c.cursor = rng.Start
	c.state = Stopped
}

// ClearRange forgets the loaded bounds, stopping any playback.
func (c *Controller) ClearRange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTickLocked()
	c.rng = quake.TimeRange{}
	c.hasRange = false
	c.cursor = 0
	c.state = Stopped
	c.manuallyPaused = false
}

// Play starts the tick loop on explicit user intent, clearing the
// manual-pause flag. Silently a no-op before any load; routine in a
// UI-driven flow, not an error. Playing twice never stacks loops.
func (c *Controller) Play() {
	c.mu.Lock()
	if !c.hasRange {
		c.mu.Unlock()
		c.log.Debug("play ignored, no time range loaded")
		return
	}
	c.manuallyPaused = false
	if c.state == Playing {
		c.mu.Unlock()
		return
	}
	c.startLocked()
	c.mu.Unlock()
}

// Resume starts playback on behalf of an automatic path, such as after
// a reload. Unlike Play it honors the manual-pause flag: a user who
// paused explicitly stays paused.
func (c *Controller) Resume() {
	c.mu.Lock()
	if !c.hasRange || c.manuallyPaused || c.state == Playing {
		c.mu.Unlock()
		return
	}
	c.startLocked()
	c.mu.Unlock()
}

// startLocked transitions to Playing and spawns the loop. Caller holds
// the mutex.
func (c *Controller) startLocked() {
	c.state = Playing
	c.lastTick = c.now()
	stop := make(chan struct{})
	c.stopTick = stop
	go c.loop(stop)
}

// Pause halts ticking and records the pause as manual. Idempotent.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasRange {
		return
	}
	c.cancelTickLocked()
	c.state = Paused
	c.manuallyPaused = true
}

// Stop halts ticking, resets the cursor to the start of the range and
// runs one advance pass at the reset position.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.hasRange {
		c.mu.Unlock()
		return
	}
	c.cancelTickLocked()
	c.cursor = c.rng.Start
	c.state = Stopped
	cursor := c.cursor
	fn := c.onAdvance
	c.mu.Unlock()

	if fn != nil {
		fn(cursor)
	}
}

// Seek moves the cursor directly and runs one advance pass. The
// playback state is untouched and the value is not clamped; keeping the
// cursor inside the range is the caller's responsibility.
func (c *Controller) Seek(cursorMs int64) {
	c.mu.Lock()
	c.cursor = cursorMs
	cursor := c.cursor
	fn := c.onAdvance
	c.mu.Unlock()

	if fn != nil {
		fn(cursor)
	}
}

// SetSpeed updates the rate in simulated days per real second, taking
// effect on the next tick. Non-positive rates are ignored.
func (c *Controller) SetSpeed(speed float64) {
	if speed <= 0 {
		c.log.Warn("ignoring non-positive playback speed", "speed", speed)
		return
	}
	c.mu.Lock()
	c.speed = speed
	c.mu.Unlock()
}

func (c *Controller) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

func (c *Controller) Cursor() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Range returns the installed bounds; false before any load.
func (c *Controller) Range() (quake.TimeRange, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng, c.hasRange
}

func (c *Controller) ManuallyPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manuallyPaused
}

func (c *Controller) loop(stop chan struct{}) {
	ticker := time.NewTicker(c.frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !c.step() {
				return
			}
		}
	}
}

// step advances the cursor by the wall-clock delta since the previous
// tick, scaled to simulated time. Clamping at the end of the range
// transitions to Stopped and reports false to end the loop.
func (c *Controller) step() bool {
	c.mu.Lock()
	if c.state != Playing {
		c.mu.Unlock()
		return false
	}
	now := c.now()
	delta := now.Sub(c.lastTick).Seconds()
	c.lastTick = now
	c.cursor += int64(delta * c.speed * msPerDay)

	finished := false
	if c.cursor >= c.rng.End {
		c.cursor = c.rng.End
		c.state = Stopped
		c.cancelTickLocked()
		finished = true
	}
	cursor := c.cursor
	fn := c.onAdvance
	c.mu.Unlock()

	if fn != nil {
		fn(cursor)
	}
	return !finished
}

// cancelTickLocked closes the outstanding loop's stop channel, if any.
// Caller holds the mutex. The nil reset makes cancellation idempotent
// across pause/stop/clamp racing each other.
func (c *Controller) cancelTickLocked() {
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
}
