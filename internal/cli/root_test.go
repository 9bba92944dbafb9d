package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/vidcanvas/internal/project"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("v1.2.3")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand("dev")
	require.NotNil(t, cmd)
	assert.Equal(t, "vidcanvas", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand("dev")
	for _, name := range []string{"export", "preview", "snapshot", "init", "version"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand("dev")
	for _, name := range []string{"config", "log-level", "fps", "max-time", "metrics-file", "stats"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "c", cmd.PersistentFlags().Lookup("config").Shorthand)

	snap, _, err := cmd.Find([]string{"snapshot"})
	require.NoError(t, err)
	assert.Equal(t, "frame.png", snap.Flags().Lookup("out").DefValue)
	assert.NotNil(t, snap.Flags().Lookup("at"))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vidcanvas v1.2.3")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "version")
	assert.Error(t, err)
}

func TestInitWritesTemplateOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")

	out, err := execute(t, "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	p, err := project.Read(path)
	require.NoError(t, err)
	assert.Equal(t, project.Template(), p)

	_, err = execute(t, "init", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "init", "--force", path)
	assert.NoError(t, err)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := loadConfig(&RootOptions{FPS: 30, MaxTime: 1500, Stats: true, MetricsFile: "m.prom", Version: "x"})
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.FPS)
	assert.Equal(t, int64(1500), cfg.MaxTime)
	assert.True(t, cfg.ShowStats)
	assert.Equal(t, "m.prom", cfg.MetricsFile)
	assert.Equal(t, "x", cfg.BuildVersion)

	_, err = loadConfig(&RootOptions{FPS: 1000})
	assert.Error(t, err)

	_, err = loadConfig(&RootOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidcanvas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fps: 24\ncanvas_width: 640\ncanvas_height: 360\nlog_level: warn\n"), 0o644))

	cfg, err := loadConfig(&RootOptions{ConfigPath: path, MaxTime: 2000})
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.FPS)
	assert.Equal(t, 640, cfg.CanvasWidth)
	assert.Equal(t, int64(2000), cfg.MaxTime)
}

func TestSnapshotRendersProject(t *testing.T) {
	dir := t.TempDir()
	projectPath := filepath.Join(dir, "project.yaml")
	require.NoError(t, project.Write(project.Template(), projectPath))
	framePath := filepath.Join(dir, "frame.png")
	metricsPath := filepath.Join(dir, "metrics.prom")

	out, err := execute(t, "snapshot", projectPath, "--at", "500", "--out", framePath, "--metrics-file", metricsPath)
	require.NoError(t, err)
	assert.Contains(t, out, "at 500ms (2 of 2 elements visible)")

	img, err := imaging.Open(framePath)
	require.NoError(t, err)
	assert.Equal(t, 360, img.Bounds().Dx())
	assert.Equal(t, 640, img.Bounds().Dy())

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vidcanvas_rebuilds_total")
}

func TestSnapshotAfterTitleEnds(t *testing.T) {
	dir := t.TempDir()
	projectPath := filepath.Join(dir, "project.yaml")
	require.NoError(t, project.Write(project.Template(), projectPath))

	out, err := execute(t, "snapshot", projectPath, "--at", "6000", "--out", filepath.Join(dir, "late.png"))
	require.NoError(t, err)
	assert.Contains(t, out, "(1 of 2 elements visible)")
}

func TestSnapshotMissingProject(t *testing.T) {
	_, err := execute(t, "snapshot", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
