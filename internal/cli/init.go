package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ivlev/vidcanvas/internal/project"
)

// NewInitCommand creates the init command.
func NewInitCommand(_ *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [project.yaml]",
		Short: "Write a starter project script",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := firstArg(args)
			if path == "" {
				path = "project.yaml"
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := project.Write(project.Template(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
