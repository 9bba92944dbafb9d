package editor

import (
	"errors"

	"github.com/ivlev/vidcanvas/internal/failure"
	"github.com/ivlev/vidcanvas/internal/logging"
	"github.com/ivlev/vidcanvas/internal/scene"
)

// ExportLease is exclusive ownership of a session's clock. While a lease is
// held, user Play, Pause and Seek fail with ExportInProgress; the lease
// drives the clock instead.
type ExportLease struct {
	s        *Session
	released bool
}

// AcquireExport takes the clock for an export. Only one lease exists at a
// time.
func (s *Session) AcquireExport() (*ExportLease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lease != nil {
		return nil, failure.New(failure.CodeExportInProgress, "editor.acquire_export",
			errors.New("another export is running"))
	}
	s.lease = &ExportLease{s: s}
	logging.Debug("session: export lease acquired")
	return s.lease, nil
}

// ExportActive reports whether a lease is held.
func (s *Session) ExportActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lease != nil
}

func (l *ExportLease) do(fn func(s *Session)) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.released || l.s.lease != l {
		return
	}
	fn(l.s)
}

func (l *ExportLease) Seek(t float64) { l.do(func(s *Session) { s.clock.Seek(t) }) }
func (l *ExportLease) Play()          { l.do(func(s *Session) { s.clock.Play() }) }
func (l *ExportLease) Pause()         { l.do(func(s *Session) { s.clock.Pause() }) }

// ClearSelection deselects everything so no outline is captured.
func (l *ExportLease) ClearSelection() {
	l.do(func(s *Session) { s.setActive("") })
}

// Elements returns the session elements in z-order.
func (l *ExportLease) Elements() []scene.Element {
	var out []scene.Element
	l.do(func(s *Session) { out = s.model.Elements() })
	return out
}

// CurrentTime is the logical clock time in ms.
func (l *ExportLease) CurrentTime() float64 {
	var t float64
	l.do(func(s *Session) { t = s.clock.CurrentTime() })
	return t
}

// Release stops the clock and hands it back to the user. Releasing twice is
// harmless.
func (l *ExportLease) Release() {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	if l.s.lease == l {
		l.s.clock.Pause()
		l.s.lease = nil
		logging.Debug("session: export lease released")
	}
}
