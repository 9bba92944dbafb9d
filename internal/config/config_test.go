package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "editor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(30000), cfg.MaxTime)
	assert.Equal(t, 60, cfg.FPS)
	assert.Equal(t, time.Second/60, cfg.FrameInterval())
	assert.Equal(t, 30*time.Second, cfg.MaxDuration())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
fps: 30
max_time_ms: 10000
settle_delay: 250ms
background: "#102030"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.FPS)
	assert.Equal(t, int64(10000), cfg.MaxTime)
	assert.Equal(t, 250*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, 360, cfg.CanvasWidth, "unset keys keep defaults")

	bg, err := cfg.BackgroundColor()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 255}, bg)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "frames_per_second: 30\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero fps", func(c *Config) { c.FPS = 0 }},
		{"negative max time", func(c *Config) { c.MaxTime = -1 }},
		{"odd canvas", func(c *Config) { c.CanvasWidth = 361 }},
		{"bad background", func(c *Config) { c.Background = "grey" }},
		{"negative settle", func(c *Config) { c.SettleDelay = -time.Second }},
		{"zero reference height", func(c *Config) { c.ReferenceHeight = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
