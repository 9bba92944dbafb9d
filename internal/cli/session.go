package cli

import (
	"context"
	"path/filepath"

	"github.com/ivlev/vidcanvas/internal/clock"
	"github.com/ivlev/vidcanvas/internal/config"
	"github.com/ivlev/vidcanvas/internal/editor"
	"github.com/ivlev/vidcanvas/internal/logging"
	"github.com/ivlev/vidcanvas/internal/media"
	"github.com/ivlev/vidcanvas/internal/project"
	"github.com/ivlev/vidcanvas/internal/surface"
)

// workspace is a session loaded from a project script.
type workspace struct {
	session *editor.Session
	canvas  *surface.Canvas
	library *media.Library
}

func (w *workspace) Close() {
	w.session.Close()
	w.canvas.Close()
	if err := w.library.Close(); err != nil {
		logging.Warn("close media: %v", err)
	}
}

// openWorkspace builds a session and imports the project at path. An empty
// path picks the latest project script in the working directory.
func openWorkspace(ctx context.Context, cfg *config.Config, path string, sched clock.Scheduler) (*workspace, error) {
	if path == "" {
		latest, err := project.FindLatestProject(".")
		if err != nil {
			return nil, err
		}
		path = latest
		logging.Info("using project %s", path)
	}
	p, err := project.Read(path)
	if err != nil {
		return nil, err
	}

	bg, err := cfg.BackgroundColor()
	if err != nil {
		return nil, err
	}
	w := &workspace{
		canvas:  surface.NewCanvas(cfg.CanvasWidth, cfg.CanvasHeight, bg),
		library: media.NewLibrary(),
	}
	w.session = editor.New(cfg, w.canvas, w.library, sched)

	loader := project.FileLoader{
		BaseDir: filepath.Dir(path),
		Decode: media.DecodeOptions{
			FFmpeg:  cfg.FFmpegPath,
			FFprobe: cfg.FFprobePath,
			Height:  cfg.CanvasHeight,
			FPS:     cfg.FPS,
		},
		MaxDim: 2 * max(cfg.CanvasWidth, cfg.CanvasHeight),
	}
	if _, err := project.Apply(ctx, w.session, loader, p); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}
