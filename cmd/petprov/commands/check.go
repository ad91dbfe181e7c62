package commands

import (
	"github.com/spf13/cobra"

	"github.com/pkg-perl/petprov/cmd/petprov/handlers"
)

// Check returns the command that evaluates a plan's guards without
// applying anything.
func Check() *cobra.Command {
	var opts handlers.CheckOptions

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report which steps of a plan would change the target",
		Long: `Evaluate every guard of a plan against its target and report
which steps are satisfied and which would be applied. Nothing is changed.

With --strict the command fails when any step is pending, which makes it
usable as a drift check from cron or CI.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Check(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to plan file (default: petprov.yaml)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Exit non-zero if any step is pending")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}
