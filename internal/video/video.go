package video

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ivlev/vidcanvas/internal/config"
	"github.com/ivlev/vidcanvas/internal/export"
	"github.com/ivlev/vidcanvas/internal/logging"
	"github.com/ivlev/vidcanvas/internal/system"
)

const defaultChunkSize = 256 << 10

// FFmpegRecorder records raw RGBA frames through a single ffmpeg process.
// Audio tracks are mixed in the same process; the intermediate container is
// streamed to stdout and collected in chunks.
type FFmpegRecorder struct {
	FFmpeg    string
	ChunkSize int
}

var _ export.Recorder = (*FFmpegRecorder)(nil)

func NewFFmpegRecorder(ffmpeg string) *FFmpegRecorder {
	return &FFmpegRecorder{FFmpeg: ffmpeg, ChunkSize: defaultChunkSize}
}

func (r *FFmpegRecorder) Start(ctx context.Context, p config.RecordParams, tracks []export.AudioTrack) (export.Recording, error) {
	if p.Encoder == "" {
		p.Encoder = system.GetBestH264Encoder(r.FFmpeg)
	}
	args := buildRecordArgs(p, tracks)
	logging.Debug("recording: %s %s", r.FFmpeg, strings.Join(args, " "))

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, r.FFmpeg, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	chunkSize := r.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	rec := &ffmpegRecording{
		cmd:      cmd,
		stdin:    stdin,
		stderr:   stderr,
		cancel:   cancel,
		readDone: make(chan error, 1),
		width:    p.Width,
		height:   p.Height,
	}
	go rec.collect(stdout, chunkSize)
	return rec, nil
}

// buildRecordArgs lays out the ffmpeg command line: raw frames on input 0,
// one input per audio track, an optional mix graph, and the intermediate
// container on stdout.
func buildRecordArgs(p config.RecordParams, tracks []export.AudioTrack) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", fmt.Sprintf("%d", p.FPS),
		"-i", "-",
	}
	for _, t := range tracks {
		args = append(args, "-i", t.Path)
	}

	if graph, out := audioGraph(tracks); graph != "" {
		args = append(args, "-filter_complex", graph, "-map", "0:v", "-map", out)
	} else {
		args = append(args, "-map", "0:v")
	}

	args = append(args,
		"-t", seconds(p.Duration),
		"-pix_fmt", "yuv420p",
		"-c:v", p.Encoder,
	)
	args = append(args, qualityArgs(p.Encoder, p.Quality)...)
	if len(tracks) > 0 {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	}

	format := p.Format
	if format == "" {
		format = "matroska"
	}
	return append(args, "-f", format, "-")
}

// audioGraph trims each track to its element length, delays it to the
// element start and mixes the results.
func audioGraph(tracks []export.AudioTrack) (string, string) {
	if len(tracks) == 0 {
		return "", ""
	}
	var parts []string
	labels := ""
	for i, t := range tracks {
		label := fmt.Sprintf("[a%d]", i)
		parts = append(parts, fmt.Sprintf("[%d:a]atrim=0:%s,asetpts=PTS-STARTPTS,adelay=%d:all=1%s",
			i+1, seconds(t.Length), t.Offset.Milliseconds(), label))
		labels += label
	}
	if len(tracks) == 1 {
		return strings.Join(parts, ";"), "[a0]"
	}
	parts = append(parts, fmt.Sprintf("%samix=inputs=%d:duration=longest:dropout_transition=0[aout]", labels, len(tracks)))
	return strings.Join(parts, ";"), "[aout]"
}

// qualityArgs maps the quality knob onto each encoder's rate control.
// Zero selects the encoder default.
func qualityArgs(encoder string, quality int) []string {
	switch encoder {
	case "h264_videotoolbox":
		// VideoToolbox does not take -q:v on every version; use a bitrate.
		if quality == 0 {
			quality = 75
		}
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		if quality == 0 {
			quality = 23
		}
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default: // libx264
		if quality == 0 {
			quality = 23
		}
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

type ffmpegRecording struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stderr   *lockedBuffer
	cancel   context.CancelFunc
	readDone chan error
	width    int
	height   int

	mu       sync.Mutex
	chunks   [][]byte
	finished bool
}

func (r *ffmpegRecording) collect(stdout io.Reader, size int) {
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(stdout, buf)
		if n > 0 {
			r.mu.Lock()
			r.chunks = append(r.chunks, buf[:n])
			r.mu.Unlock()
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			r.readDone <- nil
			return
		}
		if err != nil {
			r.readDone <- err
			return
		}
	}
}

// WriteFrame sends one frame to ffmpeg as tightly packed RGBA.
func (r *ffmpegRecording) WriteFrame(img *image.RGBA) error {
	if img.Rect.Dx() != r.width || img.Rect.Dy() != r.height {
		return fmt.Errorf("frame %v does not match recording %dx%d", img.Rect, r.width, r.height)
	}
	if img.Stride != r.width*4 || img.Rect.Min != (image.Point{}) {
		packed := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
		draw.Draw(packed, packed.Rect, img, img.Rect.Min, draw.Src)
		img = packed
	}
	if _, err := r.stdin.Write(img.Pix); err != nil {
		return fmt.Errorf("write raw error: %w", err)
	}
	return nil
}

// Stop closes the frame input and waits for ffmpeg to flush the container.
func (r *ffmpegRecording) Stop() ([][]byte, error) {
	if !r.finish() {
		return nil, fmt.Errorf("recording already finished")
	}
	defer r.cancel()

	r.stdin.Close()
	readErr := <-r.readDone
	if err := r.cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg record error: %v, output: %s", err, r.stderr.String())
	}
	if readErr != nil {
		return nil, fmt.Errorf("read recording: %w", readErr)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	chunks := r.chunks
	r.chunks = nil
	return chunks, nil
}

// Abort kills ffmpeg and drops everything collected.
func (r *ffmpegRecording) Abort() {
	if !r.finish() {
		return
	}
	r.cancel()
	r.stdin.Close()
	<-r.readDone
	r.cmd.Wait()

	r.mu.Lock()
	r.chunks = nil
	r.mu.Unlock()
}

func (r *ffmpegRecording) finish() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return false
	}
	r.finished = true
	return true
}

type lockedBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}
