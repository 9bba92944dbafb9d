package project

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ivlev/vidcanvas/internal/media"
	"github.com/ivlev/vidcanvas/internal/scene"
)

// Loader opens the media behind one script element.
type Loader interface {
	Load(ctx context.Context, id string, el Element) (media.Source, error)
}

// FileLoader opens media from disk. Relative paths resolve against BaseDir.
type FileLoader struct {
	BaseDir string
	Decode  media.DecodeOptions
	// MaxDim caps decoded stills.
	MaxDim int
	DPI    float64
	QRSize int
}

func (l FileLoader) path(p string) string {
	if filepath.IsAbs(p) || l.BaseDir == "" {
		return p
	}
	return filepath.Join(l.BaseDir, p)
}

func (l FileLoader) Load(ctx context.Context, id string, el Element) (media.Source, error) {
	var (
		src media.Source
		err error
	)
	switch scene.Kind(el.Kind) {
	case scene.KindImage:
		src, err = l.still(id, el)
	case scene.KindVideo:
		var v *media.Video
		if v, err = media.OpenVideo(ctx, id, l.path(el.Source), l.Decode); err == nil {
			src = v
		}
	case scene.KindAudio:
		var a *media.Audio
		if a, err = media.OpenAudio(ctx, id, l.path(el.Source), l.Decode.FFprobe); err == nil {
			src = a
		}
	default:
		err = fmt.Errorf("%s elements have no media", el.Kind)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

func (l FileLoader) still(id string, el Element) (media.Source, error) {
	var (
		s   *media.Still
		err error
	)
	switch {
	case el.QR != "":
		size := l.QRSize
		if size <= 0 {
			size = 256
		}
		s, err = media.NewQRCode(id, el.QR, size)
	case el.PDF != "":
		dpi := l.DPI
		if dpi <= 0 {
			dpi = 150
		}
		s, err = media.OpenPDFPage(id, l.path(el.PDF), el.Page, dpi, l.MaxDim)
	default:
		s, err = media.OpenImage(id, l.path(el.Source), l.MaxDim)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
