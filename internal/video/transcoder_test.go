package video

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const copyScript = `while [ $# -gt 1 ]; do
  if [ "$1" = "-i" ]; then in="$2"; fi
  shift
done
cp "$in" "$1"`

func TestTranscoderRunsInWorkspace(t *testing.T) {
	tr := NewFFmpegTranscoder(script(t, copyScript))
	require.NoError(t, tr.Load(context.Background()))
	dir := tr.dir

	require.NoError(t, tr.WriteFile("input.mkv", []byte("container")))
	require.NoError(t, tr.Exec(context.Background(), "-i", "input.mkv", "-c", "copy", "output.mp4"))

	out, err := tr.ReadFile("output.mp4")
	require.NoError(t, err)
	assert.Equal(t, "container", string(out))

	require.NoError(t, tr.Close())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, tr.Close())
}

func TestTranscoderExecFailureCarriesOutput(t *testing.T) {
	tr := NewFFmpegTranscoder(script(t, "echo unknown codec >&2\nexit 1"))
	require.NoError(t, tr.Load(context.Background()))
	defer tr.Close()

	err := tr.Exec(context.Background(), "-i", "input.mkv", "output.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown codec")
}

func TestTranscoderRejectsPathsOutsideWorkspace(t *testing.T) {
	tr := NewFFmpegTranscoder(script(t, "exit 0"))
	require.NoError(t, tr.Load(context.Background()))
	defer tr.Close()

	assert.Error(t, tr.WriteFile("../escape", []byte("x")))
	assert.Error(t, tr.WriteFile(filepath.Join("sub", "file"), []byte("x")))
	_, err := tr.ReadFile("")
	assert.Error(t, err)
}

func TestTranscoderRequiresLoad(t *testing.T) {
	tr := NewFFmpegTranscoder("ffmpeg")
	assert.Error(t, tr.WriteFile("input.mkv", nil))
	assert.Error(t, tr.Exec(context.Background(), "-version"))
}

func TestTranscoderLoadFailsForMissingBinary(t *testing.T) {
	tr := NewFFmpegTranscoder(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, tr.Load(context.Background()))
}
