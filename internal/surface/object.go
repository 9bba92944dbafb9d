package surface

import (
	"image"
	"image/color"
	"sync"
)

// ObjectKind is the drawing primitive behind an object.
type ObjectKind int

const (
	KindText ObjectKind = iota
	KindRaster
)

func (k ObjectKind) String() string {
	if k == KindText {
		return "textbox"
	}
	return "raster"
}

// Event identifies a per-object user event.
type Event string

const (
	// EventModified fires when the user finishes a move/scale/rotate.
	EventModified Event = "modified"
	// EventSelected fires when the user selects the object.
	EventSelected Event = "selected"
	// EventDeselected fires when a user selection moves elsewhere.
	EventDeselected Event = "deselected"
)

// Handler receives the object an event fired on.
type Handler func(obj *Object)

// Transform is the on-surface geometry of an object. Width and Height are
// the intrinsic size before scaling; Angle is in degrees around the
// top-left corner.
type Transform struct {
	Left, Top      float64
	Angle          float64
	ScaleX, ScaleY float64
	Width, Height  float64
}

// TextStyle describes a text box.
type TextStyle struct {
	Text       string
	FontSize   float64
	FontWeight int
	Fill       color.Color
}

// FrameSource supplies the current picture of a raster object.
type FrameSource interface {
	Frame() image.Image
}

// Filter post-processes a raster frame before drawing.
type Filter func(image.Image) image.Image

type handlerEntry struct {
	event Event
	fn    Handler
}

// Object is one live object on a drawing surface. Its identity is assigned
// by the surface it is added to; Name carries the element id it mirrors.
type Object struct {
	name string
	kind ObjectKind

	mu        sync.RWMutex
	id        uint64
	transform Transform
	visible   bool
	style     TextStyle
	source    FrameSource
	filter    Filter
	handlers  map[uint64]handlerEntry
	nextToken uint64
	disposed  bool

	lastFrame    image.Image
	lastFiltered image.Image
}

// NewTextBox creates a text object.
func NewTextBox(name string, t Transform, style TextStyle) *Object {
	if style.Fill == nil {
		style.Fill = color.Black
	}
	return &Object{
		name:      name,
		kind:      KindText,
		transform: t,
		visible:   true,
		style:     style,
		handlers:  make(map[uint64]handlerEntry),
	}
}

// NewRaster creates an object drawing frames from src.
func NewRaster(name string, src FrameSource, t Transform) *Object {
	return &Object{
		name:      name,
		kind:      KindRaster,
		transform: t,
		visible:   true,
		source:    src,
		handlers:  make(map[uint64]handlerEntry),
	}
}

// ID is the surface-assigned identity, 0 until added.
func (o *Object) ID() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.id
}

func (o *Object) Name() string     { return o.name }
func (o *Object) Kind() ObjectKind { return o.kind }

func (o *Object) Transform() Transform {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.transform
}

func (o *Object) SetTransform(t Transform) {
	o.mu.Lock()
	o.transform = t
	o.mu.Unlock()
}

func (o *Object) Visible() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.visible
}

func (o *Object) SetVisible(v bool) {
	o.mu.Lock()
	o.visible = v
	o.mu.Unlock()
}

func (o *Object) Style() TextStyle {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.style
}

// SetText replaces the text of a text box, as in-place editing would.
func (o *Object) SetText(s string) {
	o.mu.Lock()
	o.style.Text = s
	o.mu.Unlock()
}

// SetFilter installs a frame filter on a raster object.
func (o *Object) SetFilter(f Filter) {
	o.mu.Lock()
	o.filter = f
	o.lastFrame, o.lastFiltered = nil, nil
	o.mu.Unlock()
}

// Disposed reports whether the object was removed from its surface.
func (o *Object) Disposed() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.disposed
}

// On registers fn for ev. The returned token revokes just this handler;
// removing the object from its surface revokes all of them.
func (o *Object) On(ev Event, fn Handler) Token {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disposed {
		return Token{}
	}
	o.nextToken++
	key := o.nextToken
	o.handlers[key] = handlerEntry{event: ev, fn: fn}
	return Token{revoke: func() {
		o.mu.Lock()
		delete(o.handlers, key)
		o.mu.Unlock()
	}}
}

// HandlerCount returns the number of live handlers.
func (o *Object) HandlerCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.handlers)
}

func (o *Object) emit(ev Event) {
	o.mu.RLock()
	if o.disposed {
		o.mu.RUnlock()
		return
	}
	var fns []Handler
	for _, h := range o.handlers {
		if h.event == ev {
			fns = append(fns, h.fn)
		}
	}
	o.mu.RUnlock()

	for _, fn := range fns {
		fn(o)
	}
}

func (o *Object) dispose() {
	o.mu.Lock()
	o.disposed = true
	o.handlers = make(map[uint64]handlerEntry)
	o.source = nil
	o.lastFrame, o.lastFiltered = nil, nil
	o.mu.Unlock()
}

// frame returns the filtered current frame of a raster object. Filtering is
// cached while the source keeps returning the same image.
func (o *Object) frame() image.Image {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.source == nil {
		return nil
	}
	img := o.source.Frame()
	if img == nil || o.filter == nil {
		return img
	}
	if img == o.lastFrame && o.lastFiltered != nil {
		return o.lastFiltered
	}
	o.lastFrame = img
	o.lastFiltered = o.filter(img)
	return o.lastFiltered
}
