package surface

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/vidcanvas/internal/logging"
)

// ErrClosed is returned by streams of a closed canvas.
var ErrClosed = errors.New("surface closed")

var selectionColor = color.RGBA{R: 0x00, G: 0xa0, B: 0xf5, A: 0xff}

// Canvas is the software Surface. It draws objects in insertion order onto
// an RGBA buffer with bilinear affine sampling.
type Canvas struct {
	// renderMu serializes writers of frame and readers copying it. It is
	// taken before mu.
	renderMu sync.Mutex

	mu         sync.Mutex
	width      int
	height     int
	background color.RGBA
	objects    []*Object
	active     *Object
	nextID     uint64
	bgHandlers map[uint64]func()
	nextToken  uint64
	frame      *image.RGBA
	renders    int
	closed     bool
}

var _ Surface = (*Canvas)(nil)

// NewCanvas creates an empty canvas.
func NewCanvas(width, height int, background color.RGBA) *Canvas {
	return &Canvas{
		width:      width,
		height:     height,
		background: background,
		bgHandlers: make(map[uint64]func()),
	}
}

func (c *Canvas) Size() (int, int) { return c.width, c.height }

func (c *Canvas) Add(obj *Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	obj.mu.Lock()
	obj.id = c.nextID
	obj.mu.Unlock()
	c.objects = append(c.objects, obj)
}

func (c *Canvas) Remove(objs ...*Object) {
	c.mu.Lock()
	drop := make(map[*Object]bool, len(objs))
	for _, o := range objs {
		drop[o] = true
	}
	kept := c.objects[:0]
	for _, o := range c.objects {
		if !drop[o] {
			kept = append(kept, o)
		}
	}
	for i := len(kept); i < len(c.objects); i++ {
		c.objects[i] = nil
	}
	c.objects = kept
	if c.active != nil && drop[c.active] {
		c.active = nil
	}
	c.mu.Unlock()

	for _, o := range objs {
		o.dispose()
	}
}

func (c *Canvas) Objects() []*Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Object, len(c.objects))
	copy(out, c.objects)
	return out
}

func (c *Canvas) SetActive(obj *Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if obj != nil && !c.contains(obj) {
		return
	}
	c.active = obj
}

func (c *Canvas) Active() *Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Canvas) contains(obj *Object) bool {
	for _, o := range c.objects {
		if o == obj {
			return true
		}
	}
	return false
}

func (c *Canvas) OnBackground(fn func()) Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextToken++
	key := c.nextToken
	c.bgHandlers[key] = fn
	return Token{revoke: func() {
		c.mu.Lock()
		delete(c.bgHandlers, key)
		c.mu.Unlock()
	}}
}

// Select makes obj the active object as a user would, firing deselected on
// the previous selection and selected on obj.
func (c *Canvas) Select(obj *Object) {
	c.mu.Lock()
	if obj == nil || !c.contains(obj) {
		c.mu.Unlock()
		return
	}
	prev := c.active
	c.active = obj
	c.mu.Unlock()

	if prev != nil && prev != obj {
		prev.emit(EventDeselected)
	}
	obj.emit(EventSelected)
}

// Click hit-tests (x, y) against visible objects, topmost first. A miss
// clears the selection and fires the background handlers.
func (c *Canvas) Click(x, y float64) {
	c.mu.Lock()
	var hit *Object
	for i := len(c.objects) - 1; i >= 0; i-- {
		if o := c.objects[i]; o.Visible() && contains(o, x, y) {
			hit = o
			break
		}
	}
	if hit != nil {
		c.mu.Unlock()
		c.Select(hit)
		return
	}
	prev := c.active
	c.active = nil
	fns := make([]func(), 0, len(c.bgHandlers))
	for _, fn := range c.bgHandlers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	if prev != nil {
		prev.emit(EventDeselected)
	}
	for _, fn := range fns {
		fn()
	}
}

// CommitTransform applies a finished user move/scale/rotate and fires
// EventModified.
func (c *Canvas) CommitTransform(obj *Object, t Transform) {
	c.mu.Lock()
	ok := c.contains(obj)
	c.mu.Unlock()
	if !ok {
		return
	}
	obj.SetTransform(t)
	obj.emit(EventModified)
}

// RenderOnce redraws the internal frame buffer.
func (c *Canvas) RenderOnce() {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	c.mu.Lock()
	if c.frame == nil {
		c.frame = image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	}
	dst := c.frame
	c.renders++
	c.mu.Unlock()

	c.Draw(dst)
}

// Renders is the number of RenderOnce calls so far.
func (c *Canvas) Renders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renders
}

// Frame returns a copy of the last rendered frame, or nil.
func (c *Canvas) Frame() *image.RGBA {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frame == nil {
		return nil
	}
	out := image.NewRGBA(c.frame.Rect)
	copy(out.Pix, c.frame.Pix)
	return out
}

// Close invalidates open streams.
func (c *Canvas) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Draw renders the current state into dst.
func (c *Canvas) Draw(dst *image.RGBA) {
	c.mu.Lock()
	objs := make([]*Object, len(c.objects))
	copy(objs, c.objects)
	active := c.active
	bg := c.background
	c.mu.Unlock()

	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	for _, o := range objs {
		if !o.Visible() {
			continue
		}
		if err := drawObject(dst, o); err != nil {
			logging.Warn("draw %s %q: %v", o.Kind(), o.Name(), err)
		}
	}
	if active != nil && active.Visible() {
		drawOutline(dst, active)
	}
}

func (c *Canvas) Capture(fps int) (Stream, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("capture: invalid fps %d", fps)
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return &canvasStream{canvas: c, fps: fps}, nil
}

// affine maps source pixels of an object image (size srcW x srcH) to
// canvas coordinates: scale to the displayed size, rotate around the
// top-left corner, translate.
func affine(t Transform, srcW, srcH int) f64.Aff3 {
	sx := t.ScaleX * t.Width / float64(srcW)
	sy := t.ScaleY * t.Height / float64(srcH)
	rad := t.Angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	return f64.Aff3{
		cos * sx, -sin * sy, t.Left,
		sin * sx, cos * sy, t.Top,
	}
}

func drawObject(dst *image.RGBA, o *Object) error {
	t := o.Transform()
	var src image.Image
	switch o.Kind() {
	case KindText:
		img, err := renderText(o.Style(), t.Width)
		if err != nil {
			return err
		}
		if img == nil {
			return nil
		}
		src = img
		t.Height = float64(img.Bounds().Dy())
	default:
		src = o.frame()
	}
	if src == nil {
		return nil
	}
	b := src.Bounds()
	if b.Empty() || t.Width <= 0 || t.Height <= 0 {
		return nil
	}
	m := affine(t, b.Dx(), b.Dy())
	// Transform maps from src coordinates, so fold the bounds origin in.
	m[2] -= m[0]*float64(b.Min.X) + m[1]*float64(b.Min.Y)
	m[5] -= m[3]*float64(b.Min.X) + m[4]*float64(b.Min.Y)
	xdraw.BiLinear.Transform(dst, m, src, b, xdraw.Over, nil)
	return nil
}

// displaySize is the on-canvas width and height before rotation.
func displaySize(o *Object) (float64, float64) {
	t := o.Transform()
	h := t.Height
	if o.Kind() == KindText {
		if _, _, th, err := textLayout(o.Style(), t.Width); err == nil {
			h = float64(th)
		}
	}
	return t.Width * t.ScaleX, h * t.ScaleY
}

// corners returns the four displayed corners, clockwise from top-left.
func corners(o *Object) [4][2]float64 {
	t := o.Transform()
	w, h := displaySize(o)
	rad := t.Angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	local := [4][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}}
	var out [4][2]float64
	for i, p := range local {
		out[i] = [2]float64{
			t.Left + p[0]*cos - p[1]*sin,
			t.Top + p[0]*sin + p[1]*cos,
		}
	}
	return out
}

func contains(o *Object, x, y float64) bool {
	t := o.Transform()
	w, h := displaySize(o)
	rad := -t.Angle * math.Pi / 180
	dx, dy := x-t.Left, y-t.Top
	lx := dx*math.Cos(rad) - dy*math.Sin(rad)
	ly := dx*math.Sin(rad) + dy*math.Cos(rad)
	return lx >= 0 && ly >= 0 && lx <= w && ly <= h
}

func drawOutline(dst *image.RGBA, o *Object) {
	pts := corners(o)
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		drawLine(dst, a[0], a[1], b[0], b[1], selectionColor)
	}
}

func drawLine(dst *image.RGBA, x0, y0, x1, y1 float64, c color.RGBA) {
	steps := int(math.Max(math.Abs(x1-x0), math.Abs(y1-y0)))
	if steps == 0 {
		dst.SetRGBA(int(x0), int(y0), c)
		return
	}
	for i := 0; i <= steps; i++ {
		f := float64(i) / float64(steps)
		dst.SetRGBA(int(math.Round(x0+(x1-x0)*f)), int(math.Round(y0+(y1-y0)*f)), c)
	}
}

type canvasStream struct {
	canvas *Canvas
	fps    int
	mu     sync.Mutex
	closed bool
}

func (s *canvasStream) FPS() int         { return s.fps }
func (s *canvasStream) Size() (int, int) { return s.canvas.Size() }

func (s *canvasStream) Grab(dst *image.RGBA) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	s.canvas.mu.Lock()
	closed = s.canvas.closed
	s.canvas.mu.Unlock()
	if closed {
		return ErrClosed
	}
	w, h := s.canvas.Size()
	if dst.Bounds().Dx() != w || dst.Bounds().Dy() != h {
		return fmt.Errorf("grab: buffer %v does not match canvas %dx%d", dst.Bounds(), w, h)
	}
	s.canvas.Draw(dst)
	return nil
}

func (s *canvasStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
