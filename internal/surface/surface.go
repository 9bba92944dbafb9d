// Package surface implements the drawing-surface collaborator: a flat list
// of transformable objects with per-object user events, an active
// selection, single-shot rendering and frame capture.
package surface

import "image"

// Surface is what the render-graph synchronizer needs from a canvas.
type Surface interface {
	Add(obj *Object)
	// Remove disposes objs together with every handler registered on them.
	Remove(objs ...*Object)
	Objects() []*Object
	// SetActive programmatically selects obj (nil clears). It never fires
	// selection events.
	SetActive(obj *Object)
	Active() *Object
	RenderOnce()
	Capture(fps int) (Stream, error)
	// OnBackground registers fn for clicks that hit no object.
	OnBackground(fn func()) Token
	Size() (width, height int)

	// User interactions. These fire per-object events synchronously.
	Select(obj *Object)
	Click(x, y float64)
	CommitTransform(obj *Object, t Transform)
}

// Stream is a frame-rate-bound capture of a surface.
type Stream interface {
	FPS() int
	Size() (width, height int)
	// Grab renders the current surface state into dst.
	Grab(dst *image.RGBA) error
	Close() error
}

// Token revokes one handler registration.
type Token struct {
	revoke func()
}

// Revoke unregisters the handler. Revoking twice is harmless.
func (t Token) Revoke() {
	if t.revoke != nil {
		t.revoke()
	}
}
