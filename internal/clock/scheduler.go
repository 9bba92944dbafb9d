package clock

import (
	"sort"
	"sync"
	"time"
)

// Handle cancels a scheduled callback.
type Handle interface {
	// Cancel prevents the callback from running. It reports whether the
	// callback was still pending.
	Cancel() bool
}

// Scheduler is the "run this again on the next display interval" primitive.
// Callbacks are best effort: they may fire late, and callers must derive
// time from Now rather than from the requested delay.
type Scheduler interface {
	Now() time.Time
	Schedule(d time.Duration, fn func()) Handle
}

// RealScheduler schedules on wall-clock timers.
type RealScheduler struct{}

func (RealScheduler) Now() time.Time {
	return time.Now()
}

func (RealScheduler) Schedule(d time.Duration, fn func()) Handle {
	return realHandle{t: time.AfterFunc(d, fn)}
}

type realHandle struct {
	t *time.Timer
}

func (h realHandle) Cancel() bool {
	return h.t.Stop()
}

// ManualScheduler is a deterministic Scheduler driven by the caller. Time
// only moves through Advance or FireNext.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending []*manualTask
}

type manualTask struct {
	at        time.Time
	seq       uint64
	fn        func()
	cancelled bool
	s         *ManualScheduler
}

func (t *manualTask) Cancel() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.cancelled {
		return false
	}
	t.cancelled = true
	t.s.drop(t)
	return true
}

// NewManualScheduler starts a manual clock at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ManualScheduler) Schedule(d time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTask{at: s.now.Add(d), seq: s.seq, fn: fn, s: s}
	s.pending = append(s.pending, t)
	return t
}

// Pending returns the number of callbacks waiting to run.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Advance moves time forward by d, running every callback that falls due on
// the way (including ones scheduled by callbacks) at its nominal due time.
// It returns the number of callbacks run.
func (s *ManualScheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	ran := 0
	for {
		s.mu.Lock()
		next := s.earliest()
		if next == nil || next.at.After(target) {
			s.now = target
			s.mu.Unlock()
			return ran
		}
		s.now = next.at
		next.cancelled = true
		s.drop(next)
		s.mu.Unlock()

		next.fn()
		ran++
	}
}

// FireNext moves time forward by elapsed and then runs the earliest pending
// callback regardless of its nominal due time, the way a late or early
// animation frame would. It reports whether a callback ran.
func (s *ManualScheduler) FireNext(elapsed time.Duration) bool {
	s.mu.Lock()
	s.now = s.now.Add(elapsed)
	next := s.earliest()
	if next == nil {
		s.mu.Unlock()
		return false
	}
	next.cancelled = true
	s.drop(next)
	s.mu.Unlock()

	next.fn()
	return true
}

// earliest returns the next task by (due time, scheduling order). s.mu held.
func (s *ManualScheduler) earliest() *manualTask {
	if len(s.pending) == 0 {
		return nil
	}
	sort.SliceStable(s.pending, func(i, j int) bool {
		if s.pending[i].at.Equal(s.pending[j].at) {
			return s.pending[i].seq < s.pending[j].seq
		}
		return s.pending[i].at.Before(s.pending[j].at)
	})
	return s.pending[0]
}

// drop removes t from the pending list. s.mu held.
func (s *ManualScheduler) drop(t *manualTask) {
	for i, p := range s.pending {
		if p == t {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}
