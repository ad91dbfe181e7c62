package orchestration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg-perl/petprov/internal/config"
	"github.com/pkg-perl/petprov/internal/platform/hcloud"
	"github.com/pkg-perl/petprov/internal/platform/s3"
	sshexec "github.com/pkg-perl/petprov/internal/platform/ssh"
	"github.com/pkg-perl/petprov/internal/provisioning"
	"github.com/pkg-perl/petprov/internal/provisioning/database"
	"github.com/pkg-perl/petprov/internal/provisioning/host"
	"github.com/pkg-perl/petprov/internal/util/prerequisites"
)

// Reconciler applies a plan to its target.
type Reconciler struct {
	config   *config.Config
	timeouts *config.Timeouts

	exec     host.Executor
	stores   database.StoreProvider
	objects  host.ObjectGetter
	resolver hcloud.ServerResolver

	closers []io.Closer
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithExecutor replaces the executor built from the plan target.
func WithExecutor(exec host.Executor) Option {
	return func(r *Reconciler) { r.exec = exec }
}

// WithStores replaces the lazily opened postgres store.
func WithStores(stores database.StoreProvider) Option {
	return func(r *Reconciler) { r.stores = stores }
}

// WithObjects replaces the S3 client used for s3:// file sources.
func WithObjects(objects host.ObjectGetter) Option {
	return func(r *Reconciler) { r.objects = objects }
}

// WithServerResolver replaces the Hetzner Cloud resolver.
func WithServerResolver(resolver hcloud.ServerResolver) Option {
	return func(r *Reconciler) { r.resolver = resolver }
}

// NewReconciler wires the clients cfg needs. Nothing here touches the
// database; it is opened by the first sql or seed action.
func NewReconciler(ctx context.Context, cfg *config.Config, timeouts *config.Timeouts, opts ...Option) (*Reconciler, error) {
	r := &Reconciler{config: cfg, timeouts: timeouts}
	for _, opt := range opts {
		opt(r)
	}

	if r.exec == nil {
		exec, err := r.newExecutor(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to set up target: %w", err)
		}
		r.exec = exec
	}

	if r.stores == nil && cfg.NeedsDatabase() {
		r.stores = database.NewLazy(cfg.Database.DSN, timeouts)
	}
	if closer, ok := r.stores.(io.Closer); ok {
		r.closers = append(r.closers, closer)
	}

	if r.objects == nil && needsObjects(cfg) {
		s3cfg := cfg.Sources.S3
		client, err := s3.NewClient(ctx, s3.Options{
			Endpoint:     s3cfg.Endpoint,
			Region:       s3cfg.Region,
			AccessKey:    s3cfg.AccessKey,
			SecretKey:    s3cfg.SecretKey,
			UsePathStyle: s3cfg.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		r.objects = client
	}

	return r, nil
}

// Reconcile builds the actions and runs them in order.
func (r *Reconciler) Reconcile(ctx *provisioning.Context) (*provisioning.Report, error) {
	actions, err := BuildActions(r.config, Dependencies{
		Exec:    r.exec,
		Stores:  r.stores,
		Objects: r.objects,
	})
	if err != nil {
		return nil, err
	}
	return provisioning.Run(ctx, actions)
}

// Preflight checks that the tools the plan's steps run exist on the
// target.
func (r *Reconciler) Preflight(ctx context.Context) error {
	results, err := prerequisites.Check(ctx, r.exec, prerequisites.ToolsFor(r.config.Steps))
	if err != nil {
		return err
	}
	return results.Error()
}

// Close releases the SSH connection and the database pool.
func (r *Reconciler) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Reconciler) newExecutor(ctx context.Context) (host.Executor, error) {
	t := r.config.Target
	switch t.Type {
	case "", config.TargetLocal:
		return host.NewLocalExecutor(r.timeouts.Command), nil
	case config.TargetSSH:
	default:
		return nil, fmt.Errorf("unknown target type %q", t.Type)
	}

	addr := t.Host
	if addr == "" {
		resolver := r.resolver
		if resolver == nil {
			client, err := hcloud.NewFromEnv(hcloud.WithTimeouts(r.timeouts))
			if err != nil {
				return nil, err
			}
			resolver = client
		}
		ip, err := resolver.ServerIP(ctx, t.HCloudServer)
		if err != nil {
			return nil, err
		}
		addr = ip
	}

	key, err := os.ReadFile(t.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key: %w", err)
	}
	callback, err := sshexec.HostKeyCallback(t.KnownHostsPath, t.InsecureIgnoreHostKey)
	if err != nil {
		return nil, err
	}

	port := 0
	if t.Port != "" {
		port, err = strconv.Atoi(t.Port)
		if err != nil {
			return nil, fmt.Errorf("invalid ssh port %q: %w", t.Port, err)
		}
	}

	client, err := sshexec.NewClient(&sshexec.Config{
		Host:            addr,
		Port:            port,
		User:            t.User,
		PrivateKey:      key,
		DialTimeout:     r.timeouts.SSHDial,
		MaxRetries:      r.timeouts.RetryMaxAttempts,
		RetryDelay:      r.timeouts.RetryInitialDelay,
		CommandTimeout:  r.timeouts.Command,
		HostKeyCallback: callback,
	})
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, client)
	return client, nil
}

func needsObjects(cfg *config.Config) bool {
	for _, s := range cfg.Steps {
		if s.Kind == config.KindFile && s3.IsURI(s.Source) {
			return true
		}
	}
	return false
}
