package commands

import (
	"github.com/spf13/cobra"

	"github.com/pkg-perl/petprov/cmd/petprov/handlers"
)

// Apply returns the command that applies a plan to its target.
//
// Optional flags:
//
//	--config, -c: Path to the plan file (default: petprov.yaml)
//	--dry-run: Evaluate guards only
//	--metrics-file: Write run metrics for the node-exporter textfile collector
//	--verbose, -v: Log every action at debug level
//
// Environment variables:
//
//	PETPROV_DATABASE_DSN: Overrides database.dsn from the plan
//	HCLOUD_TOKEN: Required when the target is resolved by hcloud_server
func Apply() *cobra.Command {
	var opts handlers.ApplyOptions

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a plan to its target",
		Long: `Apply a provisioning plan to its target host.

Steps run strictly in order. A step whose guard already holds is skipped;
the first failing step stops the run and nothing after it is attempted.
Re-running a plan is always safe.

If no plan file is specified, petprov.yaml in the current directory is
used. Use 'petprov init' to create one.

Examples:
  # Apply petprov.yaml from the current directory
  petprov apply

  # Show what would change without changing anything
  petprov apply --dry-run

  # Apply a specific plan and export metrics
  petprov apply -c pet.toml --metrics-file /var/lib/node_exporter/petprov.prom`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to plan file (default: petprov.yaml)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Evaluate guards without applying any effect")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}
