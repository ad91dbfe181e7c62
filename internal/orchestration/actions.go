package orchestration

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg-perl/petprov/internal/config"
	"github.com/pkg-perl/petprov/internal/platform/s3"
	"github.com/pkg-perl/petprov/internal/provisioning"
	"github.com/pkg-perl/petprov/internal/provisioning/database"
	"github.com/pkg-perl/petprov/internal/provisioning/host"
)

// Dependencies are the clients actions are built on.
type Dependencies struct {
	Exec    host.Executor
	Stores  database.StoreProvider
	Objects host.ObjectGetter
}

// described overrides the description of an action with the plan's own.
type described struct {
	provisioning.Action
	label string
}

func (d described) Description() string { return d.label }
func (d described) Unguarded() bool     { return provisioning.IsUnguarded(d.Action) }

// BuildActions converts the plan steps to actions, preserving order.
func BuildActions(cfg *config.Config, deps Dependencies) ([]provisioning.Action, error) {
	actions := make([]provisioning.Action, 0, len(cfg.Steps))
	for i, step := range cfg.Steps {
		action, err := buildAction(cfg, step, deps)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Label(), err)
		}
		if step.Description != "" {
			action = described{Action: action, label: step.Description}
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func buildAction(cfg *config.Config, step config.Step, deps Dependencies) (provisioning.Action, error) {
	switch step.Kind {
	case config.KindPackage:
		return &host.Package{Exec: deps.Exec, Name: step.Package}, nil

	case config.KindFile:
		mode, err := config.ParseMode(step.Mode)
		if err != nil {
			return nil, err
		}
		source, err := fileSource(cfg.BaseDir, step, deps.Objects)
		if err != nil {
			return nil, err
		}
		return &host.File{
			Exec:   deps.Exec,
			Path:   step.Path,
			Owner:  step.Owner,
			Group:  step.Group,
			Mode:   mode,
			Source: source,
		}, nil

	case config.KindService:
		return &host.Service{Exec: deps.Exec, Name: step.Service, States: step.States}, nil

	case config.KindCommand:
		return &host.ShellCommand{
			Exec:   deps.Exec,
			Label:  step.Label(),
			Script: step.Command,
			User:   step.User,
			Env:    step.Env,
			NotIf:  step.NotIf,
			OnlyIf: step.OnlyIf,
		}, nil

	case config.KindUser:
		return &host.User{Exec: deps.Exec, Account: step.Account}, nil

	case config.KindSQL:
		statements := step.Statements
		if step.File != "" {
			data, err := os.ReadFile(resolvePath(cfg.BaseDir, step.File))
			if err != nil {
				return nil, fmt.Errorf("failed to read sql file: %w", err)
			}
			statements = []string{string(data)}
		}
		return &database.SQL{
			Stores:      deps.Stores,
			Label:       step.Label(),
			Role:        step.Role,
			Statements:  statements,
			UnlessQuery: step.UnlessQuery,
		}, nil

	case config.KindSeed:
		row, err := seedRow(step)
		if err != nil {
			return nil, err
		}
		return &database.Seed{Stores: deps.Stores, Row: row}, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", config.ErrInvalidStep, step.Kind)
}

func fileSource(baseDir string, step config.Step, objects host.ObjectGetter) (host.Source, error) {
	if step.Source == "" {
		return host.InlineSource{Content: step.Content}, nil
	}
	if s3.IsURI(step.Source) {
		bucket, key, err := s3.ParseURI(step.Source)
		if err != nil {
			return nil, err
		}
		return host.ObjectSource{Getter: objects, Bucket: bucket, Key: key}, nil
	}
	return host.LocalSource{Path: resolvePath(baseDir, step.Source)}, nil
}

func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

func seedRow(step config.Step) (database.SeedRow, error) {
	columns := make(map[string]any, len(step.Columns))
	for col, value := range step.Columns {
		ref, ok, err := config.ParseReference(value)
		if err != nil {
			return database.SeedRow{}, fmt.Errorf("column %s: %w", col, err)
		}
		if ok {
			columns[col] = database.Ref{Table: ref.Table, Key: ref.Key, Column: ref.Column}
			continue
		}
		columns[col] = value
	}
	return database.SeedRow{
		Table:   step.Table,
		Key:     step.Key,
		Columns: columns,
		Role:    step.Role,
	}, nil
}
