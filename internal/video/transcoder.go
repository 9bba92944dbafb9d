package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ivlev/vidcanvas/internal/export"
	"github.com/ivlev/vidcanvas/internal/logging"
	"github.com/ivlev/vidcanvas/internal/system"
)

// FFmpegTranscoder runs ffmpeg inside a private temp workspace. Names passed
// to WriteFile, Exec and ReadFile are relative to that workspace.
type FFmpegTranscoder struct {
	FFmpeg string

	bin string
	dir string
}

var _ export.Transcoder = (*FFmpegTranscoder)(nil)

func NewFFmpegTranscoder(ffmpeg string) *FFmpegTranscoder {
	return &FFmpegTranscoder{FFmpeg: ffmpeg}
}

// Load resolves the ffmpeg binary and creates the workspace.
func (t *FFmpegTranscoder) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bin, err := system.CheckBinary(t.FFmpeg)
	if err != nil {
		return err
	}
	dir, err := os.MkdirTemp("", "vidcanvas_")
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	t.bin, t.dir = bin, dir
	return nil
}

func (t *FFmpegTranscoder) path(name string) (string, error) {
	if t.dir == "" {
		return "", fmt.Errorf("transcoder not loaded")
	}
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid workspace file name %q", name)
	}
	return filepath.Join(t.dir, name), nil
}

func (t *FFmpegTranscoder) WriteFile(name string, data []byte) error {
	p, err := t.path(name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func (t *FFmpegTranscoder) ReadFile(name string) ([]byte, error) {
	p, err := t.path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// Exec runs ffmpeg with args in the workspace, overwriting outputs.
func (t *FFmpegTranscoder) Exec(ctx context.Context, args ...string) error {
	if t.dir == "" {
		return fmt.Errorf("transcoder not loaded")
	}
	full := append([]string{"-y", "-hide_banner", "-loglevel", "error"}, args...)
	logging.Debug("transcode: ffmpeg %s", strings.Join(full, " "))

	cmd := exec.CommandContext(ctx, t.bin, full...)
	cmd.Dir = t.dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg transcode error: %v, output: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Close removes the workspace.
func (t *FFmpegTranscoder) Close() error {
	if t.dir == "" {
		return nil
	}
	err := os.RemoveAll(t.dir)
	t.dir = ""
	return err
}
