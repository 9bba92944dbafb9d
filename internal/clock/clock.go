// Package clock converts wall-clock time into a frame-quantized timeline
// position and drives play, pause and seek.
package clock

import (
	"math"
	"sync"
	"time"

	"github.com/ivlev/vidcanvas/internal/logging"
	"github.com/ivlev/vidcanvas/internal/metrics"
)

// State of the playback clock.
type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// Hooks are invoked by the clock with the owner's lock held.
type Hooks struct {
	// OnAdvance runs whenever logical time is published: every tick, every
	// seek, and on play/pause transitions. t is frame-quantized. For a seek
	// past the end it is the requested position, not the clamped clock
	// time, so elements that ended before it are hidden.
	OnAdvance func(t float64, playing bool)

	// OnStateChange runs after a play/stop transition.
	OnStateChange func(s State)
}

// Clock is the timeline clock of one session.
//
// Play, Pause and Seek must be called with the owner's lock held. Ticks come
// from the Scheduler and take that lock themselves. Every call that changes
// the schedule bumps a generation number, so a tick queued before a seek or
// pause finds itself stale and does nothing.
type Clock struct {
	fps      int
	maxTime  int64
	interval time.Duration
	sched    Scheduler
	lock     sync.Locker
	hooks    Hooks

	frame          int64
	playing        bool
	anchorWall     time.Time
	anchorTimeline float64
	pending        Handle
	gen            uint64
}

// New creates a stopped clock at time 0. lock is the owner's lock; nil means
// the caller drives everything from a single goroutine.
func New(fps int, maxTime int64, sched Scheduler, lock sync.Locker) *Clock {
	if lock == nil {
		lock = noopLocker{}
	}
	return &Clock{
		fps:      fps,
		maxTime:  maxTime,
		interval: time.Second / time.Duration(fps),
		sched:    sched,
		lock:     lock,
	}
}

// SetHooks installs the advance/state callbacks.
func (c *Clock) SetHooks(h Hooks) {
	c.hooks = h
}

func (c *Clock) FPS() int        { return c.fps }
func (c *Clock) MaxTime() int64  { return c.maxTime }
func (c *Clock) Frame() int64    { return c.frame }
func (c *Clock) IsPlaying() bool { return c.playing }

// State returns Playing or Stopped.
func (c *Clock) State() State {
	if c.playing {
		return Playing
	}
	return Stopped
}

// CurrentTime is the logical time in ms: frame * 1000 / fps.
func (c *Clock) CurrentTime() float64 {
	return float64(c.frame) * 1000 / float64(c.fps)
}

// frameEpsilon absorbs the rounding error of frame*1000/fps so that a
// published time maps back to the same frame.
const frameEpsilon = 1e-6

func (c *Clock) frameAt(t float64) int64 {
	return int64(math.Floor(t*float64(c.fps)/1000 + frameEpsilon))
}

func (c *Clock) setTime(t float64) {
	c.frame = c.frameAt(t)
}

func (c *Clock) quantize(t float64) float64 {
	return float64(c.frameAt(t)) * 1000 / float64(c.fps)
}

func (c *Clock) publish() {
	c.publishAt(c.CurrentTime())
}

func (c *Clock) publishAt(t float64) {
	if c.hooks.OnAdvance != nil {
		c.hooks.OnAdvance(t, c.playing)
	}
}

func (c *Clock) stateChanged() {
	if c.hooks.OnStateChange != nil {
		c.hooks.OnStateChange(c.State())
	}
}

// Play starts playback from the current logical time. Playing again is a
// no-op.
func (c *Clock) Play() {
	if c.playing {
		return
	}
	c.playing = true
	c.anchorWall = c.sched.Now()
	c.anchorTimeline = c.CurrentTime()
	c.publish()
	c.stateChanged()
	c.scheduleNext()
	logging.Debug("clock: play from %.0fms", c.anchorTimeline)
}

// Pause stops playback and freezes logical time.
func (c *Clock) Pause() {
	if !c.playing {
		return
	}
	c.halt()
	c.publish()
	c.stateChanged()
	logging.Debug("clock: paused at %.0fms", c.CurrentTime())
}

// Seek stops playback if needed and jumps to clamp(t, 0, maxTime).
func (c *Clock) Seek(t float64) {
	wasPlaying := c.playing
	if wasPlaying {
		c.halt()
	}
	c.setTime(clampTime(t, c.maxTime))
	c.publishAt(c.quantize(math.Max(0, t)))
	if wasPlaying {
		c.stateChanged()
	}
}

func (c *Clock) halt() {
	c.playing = false
	c.gen++
	if c.pending != nil {
		c.pending.Cancel()
		c.pending = nil
	}
}

func (c *Clock) scheduleNext() {
	c.gen++
	gen := c.gen
	c.pending = c.sched.Schedule(c.interval, func() { c.tick(gen) })
}

func (c *Clock) tick(gen uint64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if gen != c.gen || !c.playing {
		return
	}
	c.pending = nil
	metrics.ClockTicksTotal.Inc()

	elapsed := c.sched.Now().Sub(c.anchorWall)
	newTime := c.anchorTimeline + float64(elapsed)/float64(time.Millisecond)

	c.setTime(newTime)
	c.publish()

	if newTime > float64(c.maxTime) {
		c.halt()
		c.setTime(0)
		c.publish()
		c.stateChanged()
		logging.Debug("clock: reached end of timeline, rewound to 0")
		return
	}
	c.scheduleNext()
}

func clampTime(t float64, maxTime int64) float64 {
	if t < 0 {
		return 0
	}
	if t > float64(maxTime) {
		return float64(maxTime)
	}
	return t
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}
