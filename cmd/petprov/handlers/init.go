package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/pkg-perl/petprov/internal/config"
)

// InitOptions are the init command flags. In interactive mode they are the
// form's initial values.
type InitOptions struct {
	OutputPath   string
	Force        bool
	Yes          bool
	Target       string
	Host         string
	HCloudServer string
	User         string
	KeyPath      string
	DSN          string
}

// Factory function variables for init, replaced in tests.
var (
	// isInteractive reports whether stdout is a terminal.
	isInteractive = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}

	// runInitForm asks for the values in opts.
	runInitForm = initForm

	// defaultPlan returns the built-in plan.
	defaultPlan = config.DefaultPlan

	// writePlan writes the plan and its files.
	writePlan = config.WritePlan
)

// Init writes the default pet plan to opts.OutputPath, with the target and
// database taken from opts or asked for on a terminal.
func Init(ctx context.Context, opts InitOptions) error {
	cfg, err := defaultPlan()
	if err != nil {
		return err
	}
	if opts.DSN == "" {
		opts.DSN = cfg.Database.DSN
	}
	if opts.KeyPath == "" {
		opts.KeyPath = "~/.ssh/id_ed25519"
	}

	if !opts.Yes && isInteractive() {
		if err := runInitForm(ctx, &opts); err != nil {
			return fmt.Errorf("init canceled: %w", err)
		}
	}

	if err := applyInitOptions(cfg, opts); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("generated plan is invalid: %w", err)
	}

	if err := writePlan(cfg, opts.OutputPath, opts.Force); err != nil {
		return err
	}

	printInitSuccess(opts.OutputPath, cfg)
	return nil
}

func applyInitOptions(cfg *config.Config, opts InitOptions) error {
	cfg.Database.DSN = opts.DSN

	switch opts.Target {
	case "", config.TargetLocal:
		cfg.Target = config.Target{Type: config.TargetLocal}
	case config.TargetSSH:
		if opts.Host == "" && opts.HCloudServer == "" {
			return errors.New("ssh target requires --host or --hcloud-server")
		}
		cfg.Target = config.Target{
			Type:         config.TargetSSH,
			Host:         opts.Host,
			HCloudServer: opts.HCloudServer,
			Port:         "22",
			User:         opts.User,
			KeyPath:      opts.KeyPath,
		}
	default:
		return fmt.Errorf("unknown target type %q", opts.Target)
	}
	return nil
}

// initForm prompts for target and database settings.
func initForm(ctx context.Context, opts *InitOptions) error {
	if opts.Target == "" {
		opts.Target = config.TargetLocal
	}

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Target").
				Description("Where the plan runs").
				Options(
					huh.NewOption("This machine", config.TargetLocal),
					huh.NewOption("Remote host over SSH", config.TargetSSH),
				).
				Value(&opts.Target),
		).Title("Target"),
		huh.NewGroup(
			huh.NewInput().
				Title("Host").
				Description("Address of the pet host. Leave empty to look it up in Hetzner Cloud.").
				Value(&opts.Host),
			huh.NewInput().
				Title("Hetzner Cloud server").
				Description("Server name, used when no host is given (needs HCLOUD_TOKEN)").
				Value(&opts.HCloudServer),
			huh.NewInput().
				Title("SSH user").
				Value(&opts.User),
			huh.NewInput().
				Title("SSH private key").
				Value(&opts.KeyPath),
		).Title("SSH").WithHideFunc(func() bool { return opts.Target != config.TargetSSH }),
		huh.NewGroup(
			huh.NewInput().
				Title("PostgreSQL DSN").
				Description("Used by the sql and seed steps").
				Value(&opts.DSN),
		).Title("Database"),
	).RunWithContext(ctx)
	return err
}

func printInitSuccess(outputPath string, cfg *config.Config) {
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, titleStyle.Render("Plan saved!"))
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  File:   %s\n", outputPath)
	fmt.Fprintf(stdout, "  Files:  %s\n", filepath.Join(filepath.Dir(outputPath), "files"))
	fmt.Fprintf(stdout, "  Target: %s\n", describeTarget(cfg.Target))
	fmt.Fprintf(stdout, "  Steps:  %d\n", len(cfg.Steps))
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Next Steps")
	fmt.Fprintln(stdout, "----------")
	fmt.Fprintln(stdout, "  1. Check what would change:")
	fmt.Fprintf(stdout, "     petprov check -c %s\n", outputPath)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "  2. Apply it:")
	fmt.Fprintf(stdout, "     petprov apply -c %s\n", outputPath)
	fmt.Fprintln(stdout)
}

func describeTarget(t config.Target) string {
	if t.Type != config.TargetSSH {
		return "local"
	}
	host := t.Host
	if host == "" {
		host = "hcloud:" + t.HCloudServer
	}
	return fmt.Sprintf("%s@%s:%s", t.User, host, t.Port)
}
