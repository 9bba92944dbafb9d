package export

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/vidcanvas/internal/clock"
	"github.com/ivlev/vidcanvas/internal/metrics"
	"github.com/ivlev/vidcanvas/internal/surface"
	"github.com/ivlev/vidcanvas/internal/system"
)

type captureParams struct {
	stream    surface.Stream
	recording Recording
	sched     clock.Scheduler
	pool      *system.ImagePool
	fps       int
	duration  time.Duration
}

type captureStats struct {
	frames     int
	duplicated int
}

// frameJob is one grabbed frame written repeat times. Repeats make up for
// ticks that arrived late, so the recording keeps wall-clock pacing.
type frameJob struct {
	img    *image.RGBA
	repeat int
}

// totalFrames is the frame count of a recording of d at fps.
func totalFrames(d time.Duration, fps int) int {
	return int(math.Ceil(d.Seconds() * float64(fps)))
}

// dueFrames is how many frames should exist after elapsed, capped at total.
func dueFrames(elapsed time.Duration, fps, total int) int {
	n := int(elapsed*time.Duration(fps)/time.Second) + 1
	if n > total {
		n = total
	}
	return n
}

// capture grabs the surface once per display interval and feeds the
// recording until exactly duration has elapsed from the first frame.
// Grabbing and writing run in separate goroutines so a slow recorder does
// not delay the pacing of grabs.
func capture(ctx context.Context, p captureParams) (captureStats, error) {
	total := totalFrames(p.duration, p.fps)
	interval := time.Second / time.Duration(p.fps)
	w, h := p.stream.Size()
	rect := image.Rect(0, 0, w, h)

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan frameJob, 4)
	var stats captureStats

	g.Go(func() error {
		defer close(jobs)
		start := p.sched.Now()
		sent := 0
		for sent < total {
			due := dueFrames(p.sched.Now().Sub(start), p.fps, total)
			if due > sent {
				img := p.pool.Get(rect)
				if err := p.stream.Grab(img); err != nil {
					p.pool.Put(img)
					return fmt.Errorf("grab frame %d: %w", sent, err)
				}
				job := frameJob{img: img, repeat: due - sent}
				select {
				case jobs <- job:
				case <-gctx.Done():
					p.pool.Put(img)
					return gctx.Err()
				}
				stats.frames += job.repeat
				stats.duplicated += job.repeat - 1
				sent = due
				if sent >= total {
					break
				}
			}
			if err := wait(gctx, p.sched, interval); err != nil {
				return err
			}
		}
		// Stop at exactly duration after the first frame, not at the last grab.
		if rest := p.duration - p.sched.Now().Sub(start); rest > 0 {
			return wait(gctx, p.sched, rest)
		}
		return nil
	})

	g.Go(func() error {
		for job := range jobs {
			for i := 0; i < job.repeat; i++ {
				if err := p.recording.WriteFrame(job.img); err != nil {
					p.pool.Put(job.img)
					return fmt.Errorf("write frame: %w", err)
				}
			}
			metrics.CaptureFramesTotal.WithLabelValues("rendered").Inc()
			if job.repeat > 1 {
				metrics.CaptureFramesTotal.WithLabelValues("duplicated").Add(float64(job.repeat - 1))
			}
			p.pool.Put(job.img)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return captureStats{}, err
	}
	return stats, nil
}
