// Package main is the entry point for the petprov CLI.
//
// petprov applies a provisioning plan to a pet host: it installs the
// packages, deploys the configuration files, creates the pet role and
// database and seeds the initial team data. Every step is guarded, so a
// plan can be applied any number of times.
//
// Commands: init, apply, check, version.
//
// For detailed usage information, run:
//
//	petprov --help
package main

import (
	"fmt"
	"os"

	"github.com/pkg-perl/petprov/cmd/petprov/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
