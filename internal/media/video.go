package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os/exec"
	"strings"
	"time"

	"github.com/ivlev/vidcanvas/internal/logging"
	"github.com/ivlev/vidcanvas/internal/scene"
	"github.com/ivlev/vidcanvas/internal/system"
)

// DecodeOptions controls how video frames are preloaded.
type DecodeOptions struct {
	FFmpeg  string
	FFprobe string
	// Height of decoded frames; width follows the aspect ratio.
	Height int
	// FPS of the decoded frame sequence.
	FPS int
}

// Video is a clip whose frames are decoded up front. Frame returns the
// picture at the current seek position.
type Video struct {
	transport
	id       string
	path     string
	width    int
	height   int
	duration time.Duration
	fps      int
	frames   []image.Image
}

// NewVideo builds a clip from already decoded frames at fps.
func NewVideo(id, path string, width, height int, duration time.Duration, fps int, frames []image.Image) *Video {
	return &Video{
		id:       id,
		path:     path,
		width:    width,
		height:   height,
		duration: duration,
		fps:      fps,
		frames:   frames,
	}
}

// OpenVideo probes path and decodes its frames through ffmpeg.
func OpenVideo(ctx context.Context, id, path string, opts DecodeOptions) (*Video, error) {
	info, err := system.ProbeMedia(ctx, opts.FFprobe, path)
	if err != nil {
		return nil, err
	}
	if info.Width == 0 || info.Height == 0 {
		return nil, fmt.Errorf("%s has no video stream", path)
	}

	w, h := decodeSize(info.Width, info.Height, opts.Height)
	args := decodeArgs(path, w, h, opts.FPS)
	logging.Debug("decoding %s: ffmpeg %s", path, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, opts.FFmpeg, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	frames, readErr := readFrames(bufio.NewReaderSize(stdout, w*h*4), w, h)
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode error: %v, output: %s", err, stderr.String())
	}
	if readErr != nil {
		return nil, readErr
	}
	logging.Info("loaded %s: %dx%d, %d frames, %.2fs", path, info.Width, info.Height, len(frames), info.Duration.Seconds())
	return NewVideo(id, path, info.Width, info.Height, info.Duration, opts.FPS, frames), nil
}

// decodeSize scales to the target height keeping even dimensions.
func decodeSize(w, h, target int) (int, int) {
	if target <= 0 || target >= h {
		return w &^ 1, h &^ 1
	}
	sw := int(math.Round(float64(w) * float64(target) / float64(h)))
	return max(2, sw&^1), max(2, target&^1)
}

func decodeArgs(path string, w, h, fps int) []string {
	return []string{
		"-v", "error",
		"-i", path,
		"-an",
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", fps, w, h),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}
}

func readFrames(r io.Reader, w, h int) ([]image.Image, error) {
	var frames []image.Image
	size := w * h * 4
	for {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		_, err := io.ReadFull(r, img.Pix[:size])
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("read frame %d: %w", len(frames), err)
		}
		frames = append(frames, img)
	}
}

func (v *Video) ID() string              { return v.id }
func (v *Video) Kind() scene.Kind        { return scene.KindVideo }
func (v *Video) Path() string            { return v.path }
func (v *Video) NaturalSize() (int, int) { return v.width, v.height }
func (v *Video) Duration() time.Duration { return v.duration }

// Frame picks the decoded frame for the current position, holding the last
// frame past the end.
func (v *Video) Frame() image.Image {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if len(v.frames) == 0 {
		return nil
	}
	i := int(v.position * float64(v.fps))
	if i >= len(v.frames) {
		i = len(v.frames) - 1
	}
	return v.frames[i]
}

func (v *Video) Close() error {
	v.mu.Lock()
	v.frames = nil
	v.mu.Unlock()
	return nil
}

// Audio is a sound file. It has no frames; the exporter mixes it from Path.
type Audio struct {
	transport
	id       string
	path     string
	duration time.Duration
}

// NewAudio describes an audio file of known duration.
func NewAudio(id, path string, duration time.Duration) *Audio {
	return &Audio{id: id, path: path, duration: duration}
}

// OpenAudio probes the duration of path.
func OpenAudio(ctx context.Context, id, path, ffprobe string) (*Audio, error) {
	info, err := system.ProbeMedia(ctx, ffprobe, path)
	if err != nil {
		return nil, err
	}
	return NewAudio(id, path, info.Duration), nil
}

func (a *Audio) ID() string              { return a.id }
func (a *Audio) Kind() scene.Kind        { return scene.KindAudio }
func (a *Audio) Path() string            { return a.path }
func (a *Audio) NaturalSize() (int, int) { return 0, 0 }
func (a *Audio) Duration() time.Duration { return a.duration }
func (a *Audio) Frame() image.Image      { return nil }
func (a *Audio) Close() error            { return nil }
