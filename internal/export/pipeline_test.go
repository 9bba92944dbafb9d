package export

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/vidcanvas/internal/clock"
	"github.com/ivlev/vidcanvas/internal/config"
	"github.com/ivlev/vidcanvas/internal/editor"
	"github.com/ivlev/vidcanvas/internal/failure"
	"github.com/ivlev/vidcanvas/internal/media"
	"github.com/ivlev/vidcanvas/internal/scene"
	"github.com/ivlev/vidcanvas/internal/surface"
	"github.com/ivlev/vidcanvas/internal/system"
)

type fakeRecorder struct {
	mu       sync.Mutex
	params   config.RecordParams
	tracks   []AudioTrack
	startErr error
	writeErr error
	rec      *fakeRecording
}

func (r *fakeRecorder) Start(_ context.Context, p config.RecordParams, tracks []AudioTrack) (Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.params, r.tracks = p, tracks
	r.rec = &fakeRecording{writeErr: r.writeErr}
	return r.rec, nil
}

type fakeRecording struct {
	mu       sync.Mutex
	frames   int
	writeErr error
	aborted  bool
	stopped  bool
}

func (r *fakeRecording) WriteFrame(img *image.RGBA) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	r.frames++
	return nil
}

func (r *fakeRecording) Stop() ([][]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	return [][]byte{[]byte("mkv-"), []byte("chunk")}, nil
}

func (r *fakeRecording) Abort() {
	r.mu.Lock()
	r.aborted = true
	r.mu.Unlock()
}

type fakeTranscoder struct {
	files   map[string][]byte
	args    []string
	execErr error
	closed  bool
}

func (t *fakeTranscoder) Load(context.Context) error {
	t.files = make(map[string][]byte)
	return nil
}

func (t *fakeTranscoder) WriteFile(name string, data []byte) error {
	t.files[name] = append([]byte(nil), data...)
	return nil
}

func (t *fakeTranscoder) Exec(_ context.Context, args ...string) error {
	t.args = args
	if t.execErr != nil {
		return t.execErr
	}
	t.files[args[len(args)-1]] = append([]byte("mp4:"), t.files[args[1]]...)
	return nil
}

func (t *fakeTranscoder) ReadFile(name string) ([]byte, error) {
	data, ok := t.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func (t *fakeTranscoder) Close() error {
	t.closed = true
	return nil
}

type exportHarness struct {
	cfg        *config.Config
	session    *editor.Session
	canvas     *surface.Canvas
	lib        *media.Library
	sched      *clock.ManualScheduler
	recorder   *fakeRecorder
	transcoder *fakeTranscoder
	out        string
}

func newExportHarness(t *testing.T) *exportHarness {
	t.Helper()
	cfg := config.Default()
	cfg.FPS = 25
	cfg.MaxTime = 1000
	cfg.CanvasWidth, cfg.CanvasHeight = 32, 32
	cfg.SettleDelay = 100 * time.Millisecond

	h := &exportHarness{
		cfg:        cfg,
		canvas:     surface.NewCanvas(32, 32, color.RGBA{A: 0xff}),
		lib:        media.NewLibrary(),
		sched:      clock.NewManualScheduler(time.Unix(1700000000, 0)),
		recorder:   &fakeRecorder{},
		transcoder: &fakeTranscoder{},
		out:        filepath.Join(t.TempDir(), "out", "final.mp4"),
	}
	h.session = editor.New(cfg, h.canvas, h.lib, h.sched)
	t.Cleanup(h.session.Close)
	return h
}

func (h *exportHarness) pipeline() *Pipeline {
	return &Pipeline{
		Session:    h.session,
		Recorder:   h.recorder,
		Transcoder: h.transcoder,
		Config:     h.cfg,
	}
}

// run executes the pipeline while advancing the manual clock in small,
// uneven steps from the test goroutine.
func (h *exportHarness) run(t *testing.T) (*Result, error) {
	t.Helper()
	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := h.pipeline().Run(context.Background(), h.out)
		done <- outcome{res, err}
	}()

	steps := []time.Duration{7 * time.Millisecond, 13 * time.Millisecond, 40 * time.Millisecond}
	deadline := time.After(10 * time.Second)
	for i := 0; ; i++ {
		select {
		case o := <-done:
			return o.res, o.err
		case <-deadline:
			t.Fatal("export did not finish")
		default:
			h.sched.Advance(steps[i%len(steps)])
			time.Sleep(200 * time.Microsecond)
		}
	}
}

func TestExportWithoutAudio(t *testing.T) {
	h := newExportHarness(t)
	el, _, err := h.session.AddElement(scene.Content{Kind: scene.KindText, Text: "hi"})
	require.NoError(t, err)
	h.session.SetActive(el.ID)

	res, err := h.run(t)
	require.NoError(t, err)

	assert.Equal(t, h.out, res.Path)
	assert.Equal(t, 25, res.Frames)
	assert.Equal(t, 25, h.recorder.rec.frames)
	assert.Zero(t, res.AudioTrack)
	assert.Empty(t, h.recorder.tracks)
	assert.True(t, h.recorder.rec.stopped)
	assert.False(t, h.recorder.rec.aborted)

	assert.Equal(t, config.RecordParams{Width: 32, Height: 32, FPS: 25, Duration: time.Second, Format: "matroska"}, h.recorder.params)
	assert.Equal(t, []string{"-i", "input.mkv", "-c", "copy", "output.mp4"}, h.transcoder.args)
	assert.True(t, h.transcoder.closed)

	data, err := os.ReadFile(h.out)
	require.NoError(t, err)
	assert.Equal(t, "mp4:mkv-chunk", string(data))
	assert.EqualValues(t, len(data), res.Bytes)

	for _, st := range reportStages {
		assert.Contains(t, res.Stages, st)
	}

	snap := h.session.Snapshot()
	assert.False(t, h.session.ExportActive())
	assert.False(t, snap.Playing)
	assert.Empty(t, snap.ActiveID, "selection is cleared for capture")
}

func TestExportRoutesAudioElements(t *testing.T) {
	h := newExportHarness(t)
	a := media.NewAudio("audio-0", "/music/theme.mp3", 10*time.Second)
	require.NoError(t, h.lib.Add(a))
	el, _, err := h.session.AddElement(media.Content(a, ""))
	require.NoError(t, err)
	start := int64(250)
	h.session.UpdateTimeFrame(el.ID, scene.TimeFramePatch{Start: &start})

	res, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AudioTrack)
	assert.Equal(t, []AudioTrack{{
		ElementID: el.ID,
		Path:      "/music/theme.mp3",
		Offset:    250 * time.Millisecond,
		Length:    750 * time.Millisecond,
	}}, h.recorder.tracks)
}

func TestExportTranscodeFailureDiscardsOutput(t *testing.T) {
	h := newExportHarness(t)
	h.transcoder.execErr = errors.New("codec missing")

	_, err := h.run(t)
	require.ErrorIs(t, err, failure.ErrTranscodeFailure)
	assert.ErrorContains(t, err, "codec missing")

	_, statErr := os.Stat(h.out)
	assert.True(t, os.IsNotExist(statErr))
	assert.False(t, h.session.ExportActive())
}

func TestExportRecorderStartFailure(t *testing.T) {
	h := newExportHarness(t)
	h.recorder.startErr = errors.New("no ffmpeg")

	_, err := h.run(t)
	require.ErrorIs(t, err, failure.ErrCaptureFailure)
	assert.Nil(t, h.transcoder.files, "transcoder never loaded")
	assert.False(t, h.session.ExportActive())
}

func TestExportWriteFailureAborts(t *testing.T) {
	h := newExportHarness(t)
	h.recorder.writeErr = errors.New("broken pipe")

	_, err := h.run(t)
	require.ErrorIs(t, err, failure.ErrCaptureFailure)
	assert.True(t, h.recorder.rec.aborted)
	assert.False(t, h.recorder.rec.stopped)
	assert.False(t, h.session.Snapshot().Playing)
}

func TestExportMissingAudioSource(t *testing.T) {
	h := newExportHarness(t)
	_, _, err := h.session.AddElement(scene.Content{Kind: scene.KindAudio, SourceID: "audio-9", Duration: 500})
	require.NoError(t, err)

	_, err = h.run(t)
	require.ErrorIs(t, err, failure.ErrCaptureFailure)
}

func TestExportRejectedWhileAnotherRuns(t *testing.T) {
	h := newExportHarness(t)
	lease, err := h.session.AcquireExport()
	require.NoError(t, err)
	defer lease.Release()

	_, err = h.pipeline().Run(context.Background(), h.out)
	assert.ErrorIs(t, err, failure.ErrExportInProgress)
}

func TestExportCancelled(t *testing.T) {
	h := newExportHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.pipeline().Run(ctx, h.out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, h.session.ExportActive())
}

func TestFramePacing(t *testing.T) {
	assert.Equal(t, 25, totalFrames(time.Second, 25))
	assert.Equal(t, 1800, totalFrames(30*time.Second, 60))
	assert.Equal(t, 3, totalFrames(100*time.Millisecond, 25))

	assert.Equal(t, 1, dueFrames(0, 25, 25))
	assert.Equal(t, 1, dueFrames(39*time.Millisecond, 25, 25))
	assert.Equal(t, 2, dueFrames(40*time.Millisecond, 25, 25))
	assert.Equal(t, 5, dueFrames(170*time.Millisecond, 25, 25))
	assert.Equal(t, 25, dueFrames(10*time.Second, 25, 25))
}

func TestDefaultOutputPath(t *testing.T) {
	cfg := config.Default()
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, filepath.Join("output", "video-20240309-140507.mp4"), DefaultOutputPath(cfg, at))

	cfg.OutputVideo = "custom.mp4"
	assert.Equal(t, "custom.mp4", DefaultOutputPath(cfg, at))
}

func TestPipelineFramePool(t *testing.T) {
	p := &Pipeline{}
	assert.Same(t, system.SharedImagePool(), p.pool())

	own := system.NewImagePool()
	p.Pool = own
	assert.Same(t, own, p.pool())
}

func TestContainerExt(t *testing.T) {
	assert.Equal(t, "mkv", containerExt("matroska"))
	assert.Equal(t, "mkv", containerExt(""))
	assert.Equal(t, "webm", containerExt("webm"))
	assert.Equal(t, "mp4", containerExt("MP4"))
}

func TestDeliverIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "a.mp4")
	require.NoError(t, deliver(path, []byte("one")))
	require.NoError(t, deliver(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
