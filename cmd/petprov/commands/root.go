// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the petprov CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "petprov",
		Short:         "Provision a pet host: packages, files, database and seed data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(Init())
	cmd.AddCommand(Apply())
	cmd.AddCommand(Check())
	cmd.AddCommand(Version())

	return cmd
}
