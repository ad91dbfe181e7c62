package commands

import (
	"github.com/spf13/cobra"

	"github.com/pkg-perl/petprov/cmd/petprov/handlers"
)

// Init returns the command that writes the default pet plan.
//
// On a terminal it asks for the target and database settings; otherwise,
// or with --yes, the flag values are used as they are.
func Init() *cobra.Command {
	var opts handlers.InitOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a plan for a pet host",
		Long: `Create a provisioning plan for a pet host.

The plan installs PostgreSQL with the debversion extension, creates the pet
role and database and seeds the pkg-perl team data. The configuration files
it deploys are written to files/ next to the plan.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputPath, "output", "o", "petprov.yaml", "Output file path")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Overwrite existing files")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Do not prompt, use flag values")
	cmd.Flags().StringVar(&opts.Target, "target", "local", "Target type: local or ssh")
	cmd.Flags().StringVar(&opts.Host, "host", "", "SSH host")
	cmd.Flags().StringVar(&opts.HCloudServer, "hcloud-server", "", "Resolve the SSH host from this Hetzner Cloud server")
	cmd.Flags().StringVar(&opts.User, "user", "root", "SSH user")
	cmd.Flags().StringVar(&opts.KeyPath, "key", "~/.ssh/id_ed25519", "SSH private key")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "PostgreSQL connection string (default: the plan's)")

	return cmd
}
