package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ivlev/vidcanvas/internal/clock"
	"github.com/ivlev/vidcanvas/internal/export"
	"github.com/ivlev/vidcanvas/internal/system"
	"github.com/ivlev/vidcanvas/internal/video"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export [project.yaml]",
		Short: "Record the timeline and write an MP4",
		Long: `Play the project timeline once in real time, record the canvas together
with every audio element, and transcode the recording to MP4.

Without a project argument the most recently modified project script in
the working directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, rootOpts, firstArg(args), out)
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default: timestamped file in the output directory)")
	return cmd
}

func runExport(cmd *cobra.Command, opts *RootOptions, projectPath, out string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	defer flushMetrics(cfg)
	system.InitResourceLimits()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	w, err := openWorkspace(ctx, cfg, projectPath, clock.RealScheduler{})
	if err != nil {
		return err
	}
	defer w.Close()

	if out == "" {
		out = cfg.OutputVideo
	}
	p := &export.Pipeline{
		Session:    w.session,
		Recorder:   video.NewFFmpegRecorder(cfg.FFmpegPath),
		Transcoder: video.NewFFmpegTranscoder(cfg.FFmpegPath),
		Config:     cfg,
	}
	res, err := p.Run(ctx, out)
	if err != nil {
		return err
	}

	if cfg.ShowStats {
		export.ShowStats(context.WithoutCancel(ctx), res, cfg.BuildVersion)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %s\n", res.Path)
	return nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
