// Package cli wires the vidcanvas commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivlev/vidcanvas/internal/config"
	"github.com/ivlev/vidcanvas/internal/logging"
	"github.com/ivlev/vidcanvas/internal/metrics"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath  string
	LogLevel    string
	FPS         int
	MaxTime     int64
	MetricsFile string
	Stats       bool
	Version     string
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{Version: version}

	cmd := &cobra.Command{
		Use:   "vidcanvas",
		Short: "Timeline canvas composer",
		Long: `vidcanvas composes text, image, video and audio elements on a timed
canvas, previews the timeline in the terminal and exports it to MP4.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.LogLevel == "" {
				return nil
			}
			lvl, err := logging.ParseLevel(opts.LogLevel)
			if err != nil {
				return err
			}
			logging.SetLevel(lvl)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().IntVar(&opts.FPS, "fps", 0, "timeline frame rate (overrides config)")
	cmd.PersistentFlags().Int64Var(&opts.MaxTime, "max-time", 0, "timeline length in ms (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "write prometheus metrics to this file on exit")
	cmd.PersistentFlags().BoolVar(&opts.Stats, "stats", false, "print a performance report after export")

	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewPreviewCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.FPS != 0 {
		cfg.FPS = opts.FPS
	}
	if opts.MaxTime != 0 {
		cfg.MaxTime = opts.MaxTime
	}
	if opts.MetricsFile != "" {
		cfg.MetricsFile = opts.MetricsFile
	}
	if opts.Stats {
		cfg.ShowStats = true
	}
	cfg.BuildVersion = opts.Version

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	// A config file level applies unless --log-level was given.
	if opts.LogLevel == "" && opts.ConfigPath != "" {
		lvl, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		logging.SetLevel(lvl)
	}
	return cfg, nil
}

func flushMetrics(cfg *config.Config) {
	if cfg.MetricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		logging.Warn("%v", err)
	}
}
