package system

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	touch(t, filepath.Join(dir, "old.yaml"), base)
	touch(t, filepath.Join(dir, "new.YML"), base.Add(time.Hour))
	touch(t, filepath.Join(dir, "newest.txt"), base.Add(2*time.Hour))

	got, err := FindLatest(dir, ProjectExtensions...)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "new.YML"), got)

	got, err = FindLatest(filepath.Join(dir, "old.yaml"), ProjectExtensions...)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "new.YML"), got)

	_, err = FindLatest(dir, PDFExtensions...)
	assert.ErrorContains(t, err, "no .pdf files found")

	_, err = FindLatest(filepath.Join(dir, "missing"), PDFExtensions...)
	assert.Error(t, err)
}

func TestParseProbe(t *testing.T) {
	out := []byte("width=1920\nheight=1080\nwidth=N/A\nheight=N/A\nduration=12.500000\n")
	info, err := parseProbe(out)
	require.NoError(t, err)
	assert.Equal(t, MediaInfo{Width: 1920, Height: 1080, Duration: 12500 * time.Millisecond}, info)

	info, err = parseProbe([]byte("duration=3.2\n"))
	require.NoError(t, err)
	assert.Zero(t, info.Width)
	assert.Equal(t, 3200*time.Millisecond, info.Duration)

	_, err = parseProbe([]byte("duration=N/A\n"))
	assert.Error(t, err)
}

func TestPickEncoder(t *testing.T) {
	assert.Equal(t, "libx264", pickEncoder(""))
	assert.Equal(t, "h264_nvenc", pickEncoder(" V....D h264_nvenc  NVIDIA NVENC"))
	assert.Equal(t, "h264_videotoolbox", pickEncoder("h264_nvenc\nh264_videotoolbox"))
}

func TestImagePoolReuses(t *testing.T) {
	p := NewImagePool()
	rect := image.Rect(0, 0, 8, 4)

	img := p.Get(rect)
	assert.Equal(t, rect, img.Rect)
	assert.EqualValues(t, 1, p.Allocated())

	p.Put(img)
	p.Put(nil)
	p.Put(image.NewRGBA(image.Rect(0, 0, 1, 1)))

	again := p.Get(rect)
	assert.Equal(t, rect, again.Rect)
	assert.LessOrEqual(t, p.Allocated(), int64(2))
}

func TestSharedImagePool(t *testing.T) {
	shared := SharedImagePool()
	require.NotNil(t, shared)
	assert.Same(t, shared, SharedImagePool())
	assert.NotSame(t, shared, NewImagePool())
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KiB", FormatBytes(1536))
	assert.Equal(t, "2.0 GiB", FormatBytes(2<<30))
}
