// Package export records the drawing surface while the session clock plays
// the timeline once, then transcodes the recording into the output
// container.
//
// Stages run strictly in order: prepare, capture, record, auto-stop,
// assemble, transcode, deliver. Any failure aborts the rest, discards the
// partial recording and hands the clock back to the user.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/vidcanvas/internal/clock"
	"github.com/ivlev/vidcanvas/internal/config"
	"github.com/ivlev/vidcanvas/internal/editor"
	"github.com/ivlev/vidcanvas/internal/failure"
	"github.com/ivlev/vidcanvas/internal/logging"
	"github.com/ivlev/vidcanvas/internal/metrics"
	"github.com/ivlev/vidcanvas/internal/scene"
	"github.com/ivlev/vidcanvas/internal/surface"
	"github.com/ivlev/vidcanvas/internal/system"
)

// Stage names, also used as metric labels.
const (
	StagePrepare   = "prepare"
	StageCapture   = "capture"
	StageRecord    = "record"
	StageAssemble  = "assemble"
	StageTranscode = "transcode"
	StageDeliver   = "deliver"
)

// Result describes a delivered export.
type Result struct {
	Path       string
	Bytes      int64
	Frames     int
	Duplicated int
	AudioTrack int
	Stages     map[string]time.Duration
	Total      time.Duration
}

// Pipeline exports one session.
type Pipeline struct {
	Session    *editor.Session
	Recorder   Recorder
	Transcoder Transcoder
	Config     *config.Config
	// Pool supplies capture frames; nil uses the shared pool.
	Pool *system.ImagePool
}

// Run exports the session timeline to outPath. An empty outPath names the
// file after the current time inside the configured output directory.
func (p *Pipeline) Run(ctx context.Context, outPath string) (*Result, error) {
	start := time.Now()
	res := &Result{Stages: make(map[string]time.Duration)}
	if outPath == "" {
		outPath = DefaultOutputPath(p.Config, start)
	}

	err := p.run(ctx, outPath, res)
	res.Total = time.Since(start)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("failure").Inc()
		logging.Error("export failed: %v", err)
		return nil, err
	}
	metrics.ExportsTotal.WithLabelValues("success").Inc()
	metrics.ExportOutputBytes.Set(float64(res.Bytes))
	logging.Info("export finished: %s (%s, %d frames, %d duplicated) in %.2fs",
		res.Path, system.FormatBytes(uint64(res.Bytes)), res.Frames, res.Duplicated, res.Total.Seconds())
	return res, nil
}

func (p *Pipeline) timed(res *Result, stage string, fn func() error) error {
	t0 := time.Now()
	err := fn()
	d := time.Since(t0)
	res.Stages[stage] = d
	metrics.ObserveStage(stage, d)
	logging.Debug("export: %s took %s", stage, d.Round(time.Millisecond))
	return err
}

func (p *Pipeline) run(ctx context.Context, outPath string, res *Result) error {
	cfg := p.Config
	sched := p.Session.Scheduler()
	surf := p.Session.Surface()

	// 1. Prepare
	lease, err := p.Session.AcquireExport()
	if err != nil {
		return err
	}
	defer lease.Release()

	err = p.timed(res, StagePrepare, func() error {
		lease.Seek(0)
		lease.ClearSelection()
		surf.RenderOnce()
		return wait(ctx, sched, cfg.SettleDelay)
	})
	if err != nil {
		return err
	}

	// 2. Capture start
	var (
		stream    surface.Stream
		recording Recording
	)
	err = p.timed(res, StageCapture, func() error {
		tracks, err := p.audioTracks(lease.Elements())
		if err != nil {
			return err
		}
		res.AudioTrack = len(tracks)
		if len(tracks) == 0 {
			logging.Debug("export: no audio elements, skipping audio mix")
		}

		s, err := surf.Capture(cfg.FPS)
		if err != nil {
			return failure.New(failure.CodeCaptureFailure, "export.capture", err)
		}
		stream = s

		w, h := s.Size()
		params := config.RecordParams{
			Width:    w,
			Height:   h,
			FPS:      cfg.FPS,
			Duration: cfg.MaxDuration(),
			Encoder:  cfg.VideoEncoder,
			Quality:  cfg.Quality,
			Format:   cfg.IntermediateFormat,
		}
		rec, err := p.Recorder.Start(ctx, params, tracks)
		if err != nil {
			return failure.New(failure.CodeCaptureFailure, "export.recorder", err)
		}
		recording = rec
		return nil
	})
	if stream != nil {
		defer stream.Close()
	}
	if err != nil {
		return err
	}

	// 3-4. Record until exactly maxTime has elapsed
	var chunks [][]byte
	err = p.timed(res, StageRecord, func() error {
		lease.Play()
		stats, err := capture(ctx, captureParams{
			stream:    stream,
			recording: recording,
			sched:     sched,
			pool:      p.pool(),
			fps:       cfg.FPS,
			duration:  cfg.MaxDuration(),
		})
		lease.Pause()
		if err != nil {
			recording.Abort()
			return failure.New(failure.CodeCaptureFailure, "export.record", err)
		}
		res.Frames, res.Duplicated = stats.frames, stats.duplicated

		chunks, err = recording.Stop()
		if err != nil {
			return failure.New(failure.CodeCaptureFailure, "export.stop", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 5. Assemble
	var blob []byte
	err = p.timed(res, StageAssemble, func() error {
		blob = bytes.Join(chunks, nil)
		chunks = nil
		if len(blob) == 0 {
			return failure.New(failure.CodeCaptureFailure, "export.assemble", errors.New("recording is empty"))
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 6. Transcode
	var out []byte
	err = p.timed(res, StageTranscode, func() error {
		var err error
		out, err = p.transcode(ctx, blob)
		blob = nil
		return err
	})
	if err != nil {
		return err
	}

	// 7. Deliver
	return p.timed(res, StageDeliver, func() error {
		if err := deliver(outPath, out); err != nil {
			return fmt.Errorf("deliver %s: %w", outPath, err)
		}
		res.Path = outPath
		res.Bytes = int64(len(out))
		return nil
	})
}

type streamCloser interface {
	Close() error
}

func (p *Pipeline) pool() *system.ImagePool {
	if p.Pool != nil {
		return p.Pool
	}
	return system.SharedImagePool()
}

func (p *Pipeline) audioTracks(elements []scene.Element) ([]AudioTrack, error) {
	var tracks []AudioTrack
	for _, el := range elements {
		if el.Kind != scene.KindAudio {
			continue
		}
		src, err := p.Session.Library().Lookup(el.Properties.SourceID)
		if err != nil {
			return nil, failure.ForElement(failure.CodeCaptureFailure, "export.audio", el.ID, err)
		}
		tracks = append(tracks, AudioTrack{
			ElementID: el.ID,
			Path:      src.Path(),
			Offset:    time.Duration(el.TimeFrame.Start) * time.Millisecond,
			Length:    time.Duration(el.TimeFrame.Duration()) * time.Millisecond,
		})
	}
	return tracks, nil
}

func (p *Pipeline) transcode(ctx context.Context, blob []byte) ([]byte, error) {
	fail := func(op string, err error) error {
		return failure.New(failure.CodeTranscodeFailure, op, err)
	}
	t := p.Transcoder
	defer t.Close()

	in := "input." + containerExt(p.Config.IntermediateFormat)
	out := "output." + containerExt(p.Config.OutputFormat)

	if err := t.Load(ctx); err != nil {
		return nil, fail("export.transcode.load", err)
	}
	if err := t.WriteFile(in, blob); err != nil {
		return nil, fail("export.transcode.write", err)
	}
	if err := t.Exec(ctx, "-i", in, "-c", "copy", out); err != nil {
		return nil, fail("export.transcode.exec", err)
	}
	data, err := t.ReadFile(out)
	if err != nil {
		return nil, fail("export.transcode.read", err)
	}
	if len(data) == 0 {
		return nil, fail("export.transcode.read", errors.New("transcoder produced no output"))
	}
	return data, nil
}

// containerExt maps an ffmpeg muxer name to a file extension.
func containerExt(format string) string {
	switch strings.ToLower(format) {
	case "matroska", "mkv", "":
		return "mkv"
	case "webm":
		return "webm"
	case "mov":
		return "mov"
	default:
		return strings.ToLower(format)
	}
}

// DefaultOutputPath names an export after t inside cfg.OutputDir, unless
// cfg.OutputVideo is set.
func DefaultOutputPath(cfg *config.Config, t time.Time) string {
	if cfg.OutputVideo != "" {
		return cfg.OutputVideo
	}
	name := fmt.Sprintf("video-%s.%s", t.Format("20060102-150405"), containerExt(cfg.OutputFormat))
	return filepath.Join(cfg.OutputDir, name)
}

// wait blocks until d has passed on sched.
func wait(ctx context.Context, sched clock.Scheduler, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	done := make(chan struct{})
	h := sched.Schedule(d, func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		h.Cancel()
		return ctx.Err()
	}
}
