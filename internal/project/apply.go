package project

import (
	"context"
	"fmt"

	"github.com/ivlev/vidcanvas/internal/editor"
	"github.com/ivlev/vidcanvas/internal/logging"
	"github.com/ivlev/vidcanvas/internal/media"
	"github.com/ivlev/vidcanvas/internal/scene"
)

// Apply imports every element of p into sess in script order. Media is
// loaded through loader and registered in the session library. Elements
// added before a failure stay in the session.
func Apply(ctx context.Context, sess *editor.Session, loader Loader, p *Project) ([]scene.Element, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var added []scene.Element
	for i, pe := range p.Elements {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		el, err := applyElement(ctx, sess, loader, pe)
		if err != nil {
			return added, fmt.Errorf("element %d (%s): %w", i, pe.Kind, err)
		}
		added = append(added, el)
	}
	logging.Info("project: imported %d elements", len(added))
	return added, nil
}

func applyElement(ctx context.Context, sess *editor.Session, loader Loader, pe Element) (scene.Element, error) {
	kind := scene.Kind(pe.Kind)
	c := scene.Content{
		Kind:       kind,
		Name:       pe.Name,
		Text:       pe.Text,
		FontSize:   pe.FontSize,
		FontWeight: pe.FontWeight,
	}

	if kind.HasMedia() {
		lib := sess.Library()
		src, err := loader.Load(ctx, lib.NextID(kind), pe)
		if err != nil {
			return scene.Element{}, err
		}
		if err := lib.Add(src); err != nil {
			src.Close()
			return scene.Element{}, err
		}
		c = media.Content(src, pe.Name)
	}
	c.Effect = pe.Effect

	el, _, err := sess.AddElement(c)
	if err != nil {
		return el, err
	}

	if pe.Placement != nil {
		el.Placement = merge(el.Placement, *pe.Placement)
		if _, _, err := sess.ReplaceElement(el.ID, el); err != nil {
			return el, err
		}
	}
	if tf := pe.TimeFrame; tf != nil && (tf.Start != nil || tf.End != nil) {
		snap, _ := sess.UpdateTimeFrame(el.ID, scene.TimeFramePatch{Start: tf.Start, End: tf.End})
		if st, ok := snap.Element(el.ID); ok {
			el = st.Element
		}
	}
	return el, nil
}

func merge(base scene.Placement, p Placement) scene.Placement {
	base.X, base.Y, base.Rotation = p.X, p.Y, p.Rotation
	if p.Width > 0 {
		base.Width = p.Width
	}
	if p.Height > 0 {
		base.Height = p.Height
	}
	if p.ScaleX > 0 {
		base.ScaleX = p.ScaleX
	}
	if p.ScaleY > 0 {
		base.ScaleY = p.ScaleY
	}
	return base
}
