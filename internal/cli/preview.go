package cli

import (
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/vidcanvas/internal/clock"
	"github.com/ivlev/vidcanvas/internal/preview"
)

// NewPreviewCommand creates the preview command.
func NewPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	var refresh time.Duration

	cmd := &cobra.Command{
		Use:   "preview [project.yaml]",
		Short: "Play the timeline interactively in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			defer flushMetrics(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			w, err := openWorkspace(ctx, cfg, firstArg(args), clock.RealScheduler{})
			if err != nil {
				return err
			}
			defer w.Close()

			return preview.Run(ctx, w.session, refresh)
		},
	}

	cmd.Flags().DurationVar(&refresh, "refresh", 100*time.Millisecond, "view refresh interval")
	return cmd
}
