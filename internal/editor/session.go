// Package editor ties the scene model, the playback clock and the render
// graph together into one editing session.
//
// A Session is an explicit context object: it owns its model, clock and
// synchronizer, and serializes every operation (and every clock tick) on a
// single mutex. Several sessions can live side by side.
package editor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ivlev/vidcanvas/internal/clock"
	"github.com/ivlev/vidcanvas/internal/config"
	"github.com/ivlev/vidcanvas/internal/failure"
	"github.com/ivlev/vidcanvas/internal/graph"
	"github.com/ivlev/vidcanvas/internal/logging"
	"github.com/ivlev/vidcanvas/internal/media"
	"github.com/ivlev/vidcanvas/internal/scene"
	"github.com/ivlev/vidcanvas/internal/surface"
)

// ElementState is an element together with its render-side state.
type ElementState struct {
	scene.Element
	Visible bool
	// Bound is false when the element was skipped by the last rebuild.
	Bound bool
}

// Snapshot is the observable session state after an operation.
type Snapshot struct {
	TimeMs   float64
	Playing  bool
	ActiveID string
	Elements []ElementState
}

// Element returns the state of id from the snapshot.
func (s Snapshot) Element(id string) (ElementState, bool) {
	for _, e := range s.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return ElementState{}, false
}

// Session is one editor instance.
type Session struct {
	mu      sync.Mutex
	model   *scene.Model
	clock   *clock.Clock
	sync    *graph.Synchronizer
	library *media.Library
	surface surface.Surface
	sched   clock.Scheduler
	lease   *ExportLease
}

// New creates a session drawing on surf with media from lib.
func New(cfg *config.Config, surf surface.Surface, lib *media.Library, sched clock.Scheduler) *Session {
	s := &Session{
		model:   scene.NewModel(cfg.MaxTime, cfg.ReferenceHeight),
		library: lib,
		surface: surf,
		sched:   sched,
	}
	s.clock = clock.New(cfg.FPS, cfg.MaxTime, sched, &s.mu)
	s.clock.SetHooks(clock.Hooks{
		OnAdvance: func(t float64, playing bool) {
			s.sync.AdvanceTo(s.model.Elements(), t, playing)
		},
		OnStateChange: func(st clock.State) {
			logging.Debug("session: clock %s at %.0fms", st, s.clock.CurrentTime())
		},
	})
	s.sync = graph.New(surf, lib, sessionSink{s})
	return s
}

func (s *Session) Surface() surface.Surface   { return s.surface }
func (s *Session) Library() *media.Library    { return s.library }
func (s *Session) Scheduler() clock.Scheduler { return s.sched }

// FPS is the clock frame rate.
func (s *Session) FPS() int { return s.clock.FPS() }

// MaxTime is the timeline length in ms.
func (s *Session) MaxTime() int64 { return s.clock.MaxTime() }

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Elements returns the elements in z-order.
func (s *Session) Elements() []scene.Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Elements()
}

// AddElement appends an element built from c and rebuilds the render graph.
func (s *Session) AddElement(c scene.Content) (scene.Element, Snapshot, error) {
	if !c.Kind.Valid() {
		return scene.Element{}, Snapshot{}, failure.New(failure.CodeUnsupportedElementVariant, "editor.add",
			fmt.Errorf("kind %q", c.Kind))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	el := s.model.Add(c)
	logging.Debug("session: added %s %q (%s)", el.Kind, el.Name, el.ID)
	err := s.rebuild()
	return el, s.snapshot(), err
}

// UpdateTimeFrame clamps and merges patch into element id, then refreshes
// visibility and media state in the same critical section.
func (s *Session) UpdateTimeFrame(id string, patch scene.TimeFramePatch) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.model.UpdateTimeFrame(id, patch); !ok {
		return s.snapshot(), false
	}
	s.advance()
	return s.snapshot(), true
}

// SetActive selects id exclusively; "" clears. Unknown ids are ignored.
func (s *Session) SetActive(id string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setActive(id)
	return s.snapshot()
}

// ReplaceElement swaps element id for el and rebuilds.
func (s *Session) ReplaceElement(id string, el scene.Element) (Snapshot, bool, error) {
	if !el.Kind.Valid() {
		return Snapshot{}, false, failure.ForElement(failure.CodeUnsupportedElementVariant, "editor.replace", id,
			fmt.Errorf("kind %q", el.Kind))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.model.Replace(id, el) {
		return s.snapshot(), false, nil
	}
	err := s.rebuild()
	return s.snapshot(), true, err
}

// RemoveElement deletes element id and rebuilds.
func (s *Session) RemoveElement(id string) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.model.Remove(id) {
		return s.snapshot(), false, nil
	}
	err := s.rebuild()
	return s.snapshot(), true, err
}

// Rebuild forces a render graph rebuild.
func (s *Session) Rebuild() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.rebuild()
	return s.snapshot(), err
}

// Play starts the clock. Rejected while an export owns the clock.
func (s *Session) Play() (Snapshot, error) {
	return s.drive("editor.play", func() { s.clock.Play() })
}

// Pause stops the clock. Rejected while an export owns the clock.
func (s *Session) Pause() (Snapshot, error) {
	return s.drive("editor.pause", func() { s.clock.Pause() })
}

// Seek jumps to t ms (clamped). Rejected while an export owns the clock.
func (s *Session) Seek(t float64) (Snapshot, error) {
	return s.drive("editor.seek", func() { s.clock.Seek(t) })
}

func (s *Session) drive(op string, fn func()) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lease != nil {
		return s.snapshot(), failure.New(failure.CodeExportInProgress, op, errExportOwnsClock)
	}
	fn()
	return s.snapshot(), nil
}

// Close stops the clock and drops the render graph.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock.Pause()
	s.sync.Close()
}

var errExportOwnsClock = errors.New("an export owns the playback clock")

func (s *Session) rebuild() error {
	if err := s.sync.Rebuild(s.model.Elements(), s.model.ActiveID()); err != nil {
		return err
	}
	s.advance()
	return nil
}

// advance runs the visibility pass at the current clock position.
func (s *Session) advance() {
	s.sync.AdvanceTo(s.model.Elements(), s.clock.CurrentTime(), s.clock.IsPlaying())
}

func (s *Session) setActive(id string) {
	if s.model.SetActive(id) {
		s.sync.SyncSelection(s.model.ActiveID())
	}
}

func (s *Session) snapshot() Snapshot {
	t := s.clock.CurrentTime()
	els := s.model.Elements()
	snap := Snapshot{
		TimeMs:   t,
		Playing:  s.clock.IsPlaying(),
		ActiveID: s.model.ActiveID(),
		Elements: make([]ElementState, len(els)),
	}
	for i, el := range els {
		st := ElementState{Element: el}
		if b, ok := s.sync.Binding(el.ID); ok {
			st.Bound = true
			st.Visible = b.Live()
		}
		snap.Elements[i] = st
	}
	return snap
}

// sessionSink feeds surface-originated edits back into the session. The
// surface delivers these outside the session lock.
type sessionSink struct {
	s *Session
}

func (k sessionSink) UpdateElement(id string, fn func(scene.Element) scene.Element) bool {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()

	el, ok := k.s.model.Get(id)
	if !ok {
		return false
	}
	if !k.s.model.Replace(id, fn(el)) {
		return false
	}
	k.s.advance()
	return true
}

func (k sessionSink) SelectElement(id string) {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()
	k.s.setActive(id)
}
