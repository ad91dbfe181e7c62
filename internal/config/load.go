package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultPlanFile is the plan looked up in the working directory when no
// path is given.
const DefaultPlanFile = "petprov.yaml"

// EnvDatabaseDSN overrides database.dsn from the plan.
const EnvDatabaseDSN = "PETPROV_DATABASE_DSN"

// LoadFile reads and parses a plan from a YAML or TOML file.
// The format is chosen by extension (.toml is TOML, anything else YAML).
func LoadFile(path string) (*Config, error) {
	if path == "" {
		path = DefaultPlanFile
	}

	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		cfg, err = ParseTOML(data)
	} else {
		cfg, err = Parse(data)
	}
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan path: %w", err)
	}
	cfg.BaseDir = filepath.Dir(abs)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("plan validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes a YAML plan and applies defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// ParseTOML decodes a TOML plan and applies defaults. It does not validate.
func ParseTOML(data []byte) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode toml: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "pet"
	}
	if c.Target.Type == "" {
		c.Target.Type = TargetLocal
	}
	if c.Target.Type == TargetSSH {
		if c.Target.Port == "" {
			c.Target.Port = "22"
		}
		if c.Target.User == "" {
			c.Target.User = "root"
		}
	}
	c.Target.KeyPath = expandHome(c.Target.KeyPath)
	c.Target.KnownHostsPath = expandHome(c.Target.KnownHostsPath)
	if dsn := os.Getenv(EnvDatabaseDSN); dsn != "" {
		c.Database.DSN = dsn
	}

	for i := range c.Steps {
		s := &c.Steps[i]
		s.Kind = StepKind(strings.ToLower(strings.TrimSpace(string(s.Kind))))
		if s.Kind == KindFile {
			if s.Owner == "" {
				s.Owner = "root"
			}
			if s.Group == "" {
				s.Group = s.Owner
			}
			if s.Mode == "" {
				s.Mode = "644"
			}
		}
	}
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
