// Package media loads the sources that image, video and audio elements
// draw from, and keeps them in a Library addressed by source id.
package media

import (
	"image"
	"sync"
	"time"

	"github.com/ivlev/vidcanvas/internal/scene"
)

// Source is one imported piece of media. Stills ignore the play position;
// timed sources pick their frame from it.
type Source interface {
	ID() string
	Kind() scene.Kind
	Path() string
	NaturalSize() (width, height int)
	// Duration is zero for stills.
	Duration() time.Duration
	// Frame is the picture at the current position, nil for audio.
	Frame() image.Image

	Seek(sec float64)
	SetPlaying(playing bool)
	Position() float64
	Playing() bool

	Close() error
}

// Content describes src for scene.Model.Add.
func Content(src Source, name string) scene.Content {
	w, h := src.NaturalSize()
	return scene.Content{
		Kind:          src.Kind(),
		Name:          name,
		SourceID:      src.ID(),
		NaturalWidth:  float64(w),
		NaturalHeight: float64(h),
		Duration:      src.Duration().Milliseconds(),
	}
}

// transport is the play state shared by every source kind.
type transport struct {
	mu       sync.RWMutex
	position float64
	playing  bool
}

func (t *transport) Seek(sec float64) {
	if sec < 0 {
		sec = 0
	}
	t.mu.Lock()
	t.position = sec
	t.mu.Unlock()
}

func (t *transport) SetPlaying(p bool) {
	t.mu.Lock()
	t.playing = p
	t.mu.Unlock()
}

func (t *transport) Position() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.position
}

func (t *transport) Playing() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.playing
}
