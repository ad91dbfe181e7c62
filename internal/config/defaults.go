package config

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/pet.yaml defaults/files/*
var defaultsFS embed.FS

// DefaultPlan returns the built-in pet host plan, parsed and defaulted.
func DefaultPlan() (*Config, error) {
	data, err := defaultsFS.ReadFile("defaults/pet.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read default plan: %w", err)
	}
	return Parse(data)
}

// WritePlan writes cfg as YAML to path together with the default files the
// built-in plan references (under files/ next to the plan). Existing files
// are not overwritten unless force is set.
func WritePlan(cfg *Config, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create plan directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}

	return fs.WalkDir(defaultsFS, "defaults/files", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		rel, err := filepath.Rel("defaults", p)
		if err != nil {
			return err
		}
		target := filepath.Join(dir, rel)
		if !force {
			if _, err := os.Stat(target); err == nil {
				return nil
			}
		}
		content, err := defaultsFS.ReadFile(p)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.WriteFile(target, content, 0o644)
	})
}
