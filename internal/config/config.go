package config

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	FPS                int           `yaml:"fps"`
	MaxTime            int64         `yaml:"max_time_ms"`
	CanvasWidth        int           `yaml:"canvas_width"`
	CanvasHeight       int           `yaml:"canvas_height"`
	Background         string        `yaml:"background"`
	SettleDelay        time.Duration `yaml:"settle_delay"`
	ReferenceHeight    float64       `yaml:"reference_height"`
	VideoEncoder       string        `yaml:"video_encoder"`
	Quality            int           `yaml:"quality"`
	IntermediateFormat string        `yaml:"intermediate_format"`
	OutputFormat       string        `yaml:"output_format"`
	OutputDir          string        `yaml:"output_dir"`
	OutputVideo        string        `yaml:"output_video"`
	LogLevel           string        `yaml:"log_level"`
	MetricsFile        string        `yaml:"metrics_file"`
	ShowStats          bool          `yaml:"show_stats"`
	FFmpegPath         string        `yaml:"ffmpeg_path"`
	FFprobePath        string        `yaml:"ffprobe_path"`
	BuildVersion       string        `yaml:"-"`
}

// RecordParams describes one recording of the drawing surface.
type RecordParams struct {
	Width, Height int
	FPS           int
	Duration      time.Duration
	Encoder       string
	Quality       int
	Format        string
}

// Default returns the editor defaults: a 360x640 portrait canvas and a 30s
// timeline at 60 fps.
func Default() *Config {
	return &Config{
		FPS:                60,
		MaxTime:            30 * 1000,
		CanvasWidth:        360,
		CanvasHeight:       640,
		Background:         "#ededed",
		SettleDelay:        time.Second,
		ReferenceHeight:    300,
		IntermediateFormat: "matroska",
		OutputFormat:       "mp4",
		OutputDir:          "output",
		LogLevel:           "info",
		FFmpegPath:         "ffmpeg",
		FFprobePath:        "ffprobe",
	}
}

// Load reads a YAML file on top of the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges and formats.
func (c *Config) Validate() error {
	var errs []error
	if c.FPS <= 0 || c.FPS > 240 {
		errs = append(errs, fmt.Errorf("fps must be in 1..240, got %d", c.FPS))
	}
	if c.MaxTime <= 0 {
		errs = append(errs, fmt.Errorf("max_time_ms must be positive, got %d", c.MaxTime))
	}
	if c.CanvasWidth <= 0 || c.CanvasHeight <= 0 {
		errs = append(errs, fmt.Errorf("canvas size must be positive, got %dx%d", c.CanvasWidth, c.CanvasHeight))
	}
	if c.CanvasWidth%2 != 0 || c.CanvasHeight%2 != 0 {
		errs = append(errs, fmt.Errorf("canvas size must be even for yuv420p, got %dx%d", c.CanvasWidth, c.CanvasHeight))
	}
	if c.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("settle_delay must not be negative"))
	}
	if c.ReferenceHeight <= 0 {
		errs = append(errs, fmt.Errorf("reference_height must be positive"))
	}
	if c.Quality < 0 {
		errs = append(errs, fmt.Errorf("quality must not be negative"))
	}
	if _, err := c.BackgroundColor(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// BackgroundColor parses Background as #rrggbb.
func (c *Config) BackgroundColor() (color.RGBA, error) {
	s := strings.TrimPrefix(strings.TrimSpace(c.Background), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("background must be #rrggbb, got %q", c.Background)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("background must be #rrggbb, got %q", c.Background)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// FrameInterval is the nominal display interval at the configured fps.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FPS)
}

// MaxDuration is MaxTime as a time.Duration.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.MaxTime) * time.Millisecond
}
