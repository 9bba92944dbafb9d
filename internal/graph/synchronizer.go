// Package graph keeps the drawing surface's object set isomorphic to the
// scene model and reflects user transform edits back into it.
//
// The surface is a disposable cache: Rebuild discards every object and
// recreates one per renderable element. The element -> object relation lives
// in a side table here, so scene elements stay plain values.
package graph

import (
	"fmt"
	"math"

	"github.com/ivlev/vidcanvas/internal/effects"
	"github.com/ivlev/vidcanvas/internal/failure"
	"github.com/ivlev/vidcanvas/internal/logging"
	"github.com/ivlev/vidcanvas/internal/media"
	"github.com/ivlev/vidcanvas/internal/metrics"
	"github.com/ivlev/vidcanvas/internal/scene"
	"github.com/ivlev/vidcanvas/internal/surface"
)

// Sink receives model updates that originate on the surface. Calls arrive
// synchronously from surface event handlers.
type Sink interface {
	// UpdateElement replaces the element with id by fn(current). Unknown
	// ids are ignored.
	UpdateElement(id string, fn func(scene.Element) scene.Element) bool
	// SelectElement makes id the active element; "" clears.
	SelectElement(id string)
}

// Binding is the render side of one element.
type Binding struct {
	ElementID string
	Kind      scene.Kind
	// Object is nil for audio.
	Object *surface.Object
	// Source is nil for text.
	Source media.Source
	// Aspect-fit scale established at creation, image/video only.
	FitScaleX, FitScaleY float64

	tokens []surface.Token
	live   bool
}

// Live reports whether the last visibility pass found the element inside
// its time frame.
func (b *Binding) Live() bool {
	return b.live
}

func (b *Binding) revoke() {
	for _, t := range b.tokens {
		t.Revoke()
	}
	b.tokens = nil
}

// Synchronizer owns the bindings of one surface. It is not safe for
// concurrent use; the editor session serializes calls.
type Synchronizer struct {
	surface  surface.Surface
	library  *media.Library
	sink     Sink
	bindings map[string]*Binding
	bgToken  surface.Token
}

// New binds a synchronizer to s. Background clicks on s clear the model
// selection through sink.
func New(s surface.Surface, lib *media.Library, sink Sink) *Synchronizer {
	sy := &Synchronizer{
		surface:  s,
		library:  lib,
		sink:     sink,
		bindings: make(map[string]*Binding),
	}
	sy.bgToken = s.OnBackground(func() { sink.SelectElement("") })
	return sy
}

// RenderObject returns the live object bound to element id.
func (s *Synchronizer) RenderObject(id string) (*surface.Object, bool) {
	b, ok := s.bindings[id]
	if !ok || b.Object == nil {
		return nil, false
	}
	return b.Object, true
}

// Binding returns the binding of element id.
func (s *Synchronizer) Binding(id string) (*Binding, bool) {
	b, ok := s.bindings[id]
	return b, ok
}

// Bound reports how many elements currently have a binding.
func (s *Synchronizer) Bound() int {
	return len(s.bindings)
}

// Rebuild discards the render graph and recreates it from elements.
// Unsupported kinds abort before the surface is touched. Elements whose
// media source is missing are logged and skipped for this pass.
func (s *Synchronizer) Rebuild(elements []scene.Element, activeID string) error {
	for _, el := range elements {
		if !el.Kind.Valid() {
			return failure.ForElement(failure.CodeUnsupportedElementVariant, "graph.rebuild", el.ID,
				fmt.Errorf("kind %q", el.Kind))
		}
	}

	s.clear()

	for _, el := range elements {
		b, err := s.bind(el)
		if err != nil {
			metrics.RenderTargetsMissingTotal.Inc()
			logging.Warn("skipping %s %q: %v", el.Kind, el.Name, err)
			continue
		}
		s.bindings[el.ID] = b
	}

	s.SyncSelection(activeID)
	s.surface.RenderOnce()

	metrics.RebuildsTotal.Inc()
	metrics.RenderObjects.Set(float64(len(s.surface.Objects())))
	logging.Debug("render graph rebuilt: %d elements, %d bound", len(elements), len(s.bindings))
	return nil
}

// Close drops every object and the background handler.
func (s *Synchronizer) Close() {
	s.clear()
	s.bgToken.Revoke()
	metrics.RenderObjects.Set(0)
}

func (s *Synchronizer) clear() {
	for _, b := range s.bindings {
		b.revoke()
	}
	s.bindings = make(map[string]*Binding)
	if objs := s.surface.Objects(); len(objs) > 0 {
		s.surface.Remove(objs...)
	}
}

func (s *Synchronizer) bind(el scene.Element) (*Binding, error) {
	b := &Binding{ElementID: el.ID, Kind: el.Kind}
	p := el.Placement

	switch el.Kind {
	case scene.KindText:
		b.Object = surface.NewTextBox(el.ID, surface.Transform{
			Left: p.X, Top: p.Y, Angle: p.Rotation,
			ScaleX: p.ScaleX, ScaleY: p.ScaleY,
			Width: p.Width, Height: p.Height,
		}, surface.TextStyle{
			Text:       el.Properties.Text,
			FontSize:   el.Properties.FontSize,
			FontWeight: el.Properties.FontWeight,
		})

	case scene.KindImage, scene.KindVideo:
		src, err := s.library.Lookup(el.Properties.SourceID)
		if err != nil {
			return nil, failure.ForElement(failure.CodeMissingRenderTarget, "graph.rebuild", el.ID, err)
		}
		nw, nh := src.NaturalSize()
		if nw <= 0 || nh <= 0 {
			return nil, failure.ForElement(failure.CodeMissingRenderTarget, "graph.rebuild", el.ID,
				fmt.Errorf("source %q has no picture", src.ID()))
		}
		b.Source = src
		b.FitScaleX = p.Width / float64(nw)
		b.FitScaleY = p.Height / float64(nh)
		b.Object = surface.NewRaster(el.ID, src, surface.Transform{
			Left: p.X, Top: p.Y, Angle: p.Rotation,
			ScaleX: b.FitScaleX * p.ScaleX,
			ScaleY: b.FitScaleY * p.ScaleY,
			Width:  float64(nw), Height: float64(nh),
		})
		if !effects.IsNone(el.Properties.Effect) {
			eff, err := effects.New(el.Properties.Effect)
			if err != nil {
				logging.Warn("%s %q: %v", el.Kind, el.Name, err)
			} else {
				b.Object.SetFilter(eff.Apply)
			}
		}

	case scene.KindAudio:
		src, err := s.library.Lookup(el.Properties.SourceID)
		if err != nil {
			return nil, failure.ForElement(failure.CodeMissingRenderTarget, "graph.rebuild", el.ID, err)
		}
		b.Source = src
		return b, nil
	}

	s.surface.Add(b.Object)
	b.tokens = append(b.tokens,
		b.Object.On(surface.EventModified, s.commitHandler(b)),
		b.Object.On(surface.EventSelected, func(*surface.Object) { s.sink.SelectElement(b.ElementID) }),
	)
	return b, nil
}

// commitHandler translates a finished surface transform into a placement.
// The current element is read at commit time, so edits made after the
// rebuild are not overwritten with stale values.
func (s *Synchronizer) commitHandler(b *Binding) surface.Handler {
	return func(obj *surface.Object) {
		t := obj.Transform()
		s.sink.UpdateElement(b.ElementID, func(el scene.Element) scene.Element {
			p := el.Placement
			p.X, p.Y, p.Rotation = t.Left, t.Top, t.Angle

			if b.Kind == scene.KindText {
				p.Width, p.Height = t.Width, t.Height
				p.ScaleX, p.ScaleY = t.ScaleX, t.ScaleY
				el.Properties.Text = obj.Style().Text
			} else {
				p.ScaleX = normalizeScale(t.ScaleX, b.FitScaleX, p.ScaleX)
				p.ScaleY = normalizeScale(t.ScaleY, b.FitScaleY, p.ScaleY)
			}
			el.Placement = p
			return el
		})
	}
}

// normalizeScale strips the aspect-fit factor from an observed surface
// scale so placements only carry the user's extra scaling.
func normalizeScale(observed, fit, fallback float64) float64 {
	if observed <= 0 || fit <= 0 || math.IsInf(observed/fit, 0) {
		return fallback
	}
	return observed / fit
}

// SyncSelection mirrors the model selection onto the surface without
// firing selection events.
func (s *Synchronizer) SyncSelection(activeID string) {
	if obj, ok := s.RenderObject(activeID); ok {
		s.surface.SetActive(obj)
		return
	}
	s.surface.SetActive(nil)
}

// AdvanceTo applies the visibility pass for timeline position t (ms). Bound
// objects are shown inside their time frame; timed sources are sought to
// the element-relative position and play only while the clock plays inside
// the frame. Repeated calls with the same arguments change nothing.
func (s *Synchronizer) AdvanceTo(elements []scene.Element, t float64, playing bool) {
	for _, el := range elements {
		b, ok := s.bindings[el.ID]
		if !ok {
			continue
		}
		live := el.TimeFrame.Contains(t)
		b.live = live
		if b.Object != nil {
			b.Object.SetVisible(live)
		}
		if el.Kind.Timed() && b.Source != nil {
			b.Source.Seek(math.Max(0, (t-float64(el.TimeFrame.Start))/1000))
			b.Source.SetPlaying(playing && live)
		}
	}
}
