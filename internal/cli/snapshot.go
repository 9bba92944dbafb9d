package cli

import (
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/ivlev/vidcanvas/internal/clock"
)

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		at  float64
		out string
	)

	cmd := &cobra.Command{
		Use:   "snapshot [project.yaml]",
		Short: "Render a single timeline instant to an image",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			defer flushMetrics(cfg)

			w, err := openWorkspace(cmd.Context(), cfg, firstArg(args), clock.RealScheduler{})
			if err != nil {
				return err
			}
			defer w.Close()

			w.session.SetActive("")
			snap, err := w.session.Seek(at)
			if err != nil {
				return err
			}
			w.canvas.RenderOnce()
			if err := imaging.Save(w.canvas.Frame(), out); err != nil {
				return fmt.Errorf("save snapshot: %w", err)
			}

			visible := 0
			for _, e := range snap.Elements {
				if e.Visible {
					visible++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s at %.0fms (%d of %d elements visible)\n",
				out, snap.TimeMs, visible, len(snap.Elements))
			return nil
		},
	}

	cmd.Flags().Float64Var(&at, "at", 0, "timeline position in ms")
	cmd.Flags().StringVarP(&out, "out", "o", "frame.png", "output image (format from extension)")
	return cmd
}
