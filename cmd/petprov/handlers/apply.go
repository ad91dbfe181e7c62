// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic and can be tested independently of the
// CLI framework. Collaborators are held in package variables so tests can
// replace them.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"

	"github.com/pkg-perl/petprov/internal/config"
	"github.com/pkg-perl/petprov/internal/orchestration"
	"github.com/pkg-perl/petprov/internal/provisioning"
)

// ErrNotConverged is returned by a strict check when steps are pending.
var ErrNotConverged = errors.New("target has pending changes")

// Reconciler matches orchestration.Reconciler.
type Reconciler interface {
	Preflight(ctx context.Context) error
	Reconcile(ctx *provisioning.Context) (*provisioning.Report, error)
	Close() error
}

// Factory function variables, replaced in tests.
var (
	// loadPlan loads and validates a plan file.
	loadPlan = config.LoadFile

	// loadTimeouts reads timeouts from the environment.
	loadTimeouts = config.LoadTimeouts

	// newReconciler wires the target clients for a plan.
	newReconciler = func(ctx context.Context, cfg *config.Config, timeouts *config.Timeouts) (Reconciler, error) {
		return orchestration.NewReconciler(ctx, cfg, timeouts)
	}

	// buildLogger creates the run logger.
	buildLogger = newLogger

	// stdout receives the rendered report.
	stdout io.Writer = os.Stdout
)

// ApplyOptions are the apply command flags.
type ApplyOptions struct {
	ConfigPath  string
	DryRun      bool
	MetricsFile string
	Verbose     bool
}

// CheckOptions are the check command flags.
type CheckOptions struct {
	ConfigPath string
	Strict     bool
	Verbose    bool
}

// Apply runs the plan at opts.ConfigPath against its target and prints a
// report. Metrics are written even when the run fails.
func Apply(ctx context.Context, opts ApplyOptions) error {
	_, err := run(ctx, opts)
	return err
}

// Check evaluates every guard of the plan without applying anything. In
// strict mode any pending step is an error; steps without a guard re-apply
// on every run and never count as pending.
func Check(ctx context.Context, opts CheckOptions) error {
	report, err := run(ctx, ApplyOptions{ConfigPath: opts.ConfigPath, DryRun: true, Verbose: opts.Verbose})
	if err != nil {
		return err
	}
	if pending := report.Count(provisioning.StatusPending); opts.Strict && !report.Converged() {
		return fmt.Errorf("%w: %d of %d steps pending", ErrNotConverged, pending, len(report.Outcomes))
	}
	return nil
}

func run(ctx context.Context, opts ApplyOptions) (*provisioning.Report, error) {
	cfg, err := loadPlan(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	log, flush, err := buildLogger(opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	defer flush()

	rec, err := newReconciler(ctx, cfg, loadTimeouts())
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rec.Close(); cerr != nil {
			log.Error(cerr, "failed to close target connections")
		}
	}()

	if err := rec.Preflight(ctx); err != nil {
		return nil, fmt.Errorf("preflight failed: %w", err)
	}

	pctx := provisioning.NewContext(ctx, cfg.Name, provisioning.NewLogObserver(log))
	pctx.DryRun = opts.DryRun
	if opts.MetricsFile != "" {
		pctx.Metrics = provisioning.NewMetrics(cfg.Name)
	}

	log.Info("applying plan", "plan", cfg.Name, "steps", len(cfg.Steps), "target", cfg.Target.Type, "dry_run", opts.DryRun)
	report, runErr := rec.Reconcile(pctx)
	if report != nil {
		fmt.Fprint(stdout, renderReport(report))
	}

	if err := writeMetrics(log, pctx.Metrics, opts.MetricsFile); err != nil && runErr == nil {
		return report, err
	}
	return report, runErr
}

func writeMetrics(log logr.Logger, m *provisioning.Metrics, path string) error {
	if m == nil {
		return nil
	}
	if err := m.WriteTextfile(path); err != nil {
		log.Error(err, "failed to write metrics", "path", path)
		return err
	}
	log.V(1).Info("metrics written", "path", path)
	return nil
}
