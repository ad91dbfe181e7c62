package config

import (
	"fmt"
	"sort"
	"strings"
)

// StepKind identifies what a plan step does on the target.
type StepKind string

const (
	// KindPackage installs an OS package through the package manager.
	KindPackage StepKind = "package"
	// KindFile deploys a file with owner, group and mode. Always re-applied.
	KindFile StepKind = "file"
	// KindService drives systemd lifecycle transitions. Always re-applied.
	KindService StepKind = "service"
	// KindCommand runs a shell command, optionally guarded by not_if/only_if.
	KindCommand StepKind = "command"
	// KindUser ensures a local account exists.
	KindUser StepKind = "user"
	// KindSQL runs SQL statements, optionally guarded by unless_query.
	KindSQL StepKind = "sql"
	// KindSeed inserts a row unless a row with the same natural key exists.
	KindSeed StepKind = "seed"
)

// Target types.
const (
	TargetLocal = "local"
	TargetSSH   = "ssh"
)

// Config is a provisioning plan: where to run and the ordered steps to run.
type Config struct {
	// Name labels the plan in logs and metrics.
	Name string `yaml:"name,omitempty" toml:"name"`

	Target   Target   `yaml:"target,omitempty" toml:"target"`
	Database Database `yaml:"database,omitempty" toml:"database"`
	Sources  Sources  `yaml:"sources,omitempty" toml:"sources"`

	// Steps run strictly in order. Later steps may rely on the
	// post-conditions of earlier ones.
	Steps []Step `yaml:"steps,omitempty" toml:"steps"`

	// BaseDir is the directory relative file sources resolve against.
	// Set by LoadFile to the plan file's directory.
	BaseDir string `yaml:"-" toml:"-"`
}

// Target describes the host the plan is applied to.
type Target struct {
	// Type is "local" (default) or "ssh".
	Type string `yaml:"type,omitempty" toml:"type"`

	Host string `yaml:"host,omitempty" toml:"host"`
	Port string `yaml:"port,omitempty" toml:"port"`
	User string `yaml:"user,omitempty" toml:"user"`

	// KeyPath is the private key used for SSH public key auth.
	KeyPath string `yaml:"key_path,omitempty" toml:"key_path"`
	// KnownHostsPath defaults to ~/.ssh/known_hosts.
	KnownHostsPath        string `yaml:"known_hosts_path,omitempty" toml:"known_hosts_path"`
	InsecureIgnoreHostKey bool   `yaml:"insecure_ignore_host_key,omitempty" toml:"insecure_ignore_host_key"`

	// HCloudServer resolves Host from a Hetzner Cloud server name when Host
	// is empty. Requires HCLOUD_TOKEN.
	HCloudServer string `yaml:"hcloud_server,omitempty" toml:"hcloud_server"`
}

// Database configures the connection used by sql and seed steps.
type Database struct {
	// DSN is a PostgreSQL connection string. PETPROV_DATABASE_DSN overrides it.
	DSN string `yaml:"dsn,omitempty" toml:"dsn"`
}

// Sources configures remote file content sources.
type Sources struct {
	S3 S3Source `yaml:"s3,omitempty" toml:"s3"`
}

// S3Source configures the object store behind s3:// file sources.
// Credentials come from the standard AWS chain unless both keys are set.
type S3Source struct {
	Endpoint     string `yaml:"endpoint,omitempty" toml:"endpoint"`
	Region       string `yaml:"region,omitempty" toml:"region"`
	AccessKey    string `yaml:"access_key,omitempty" toml:"access_key"`
	SecretKey    string `yaml:"secret_key,omitempty" toml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style,omitempty" toml:"use_path_style"`
}

// Step is one entry of the plan. Which fields apply depends on Kind.
type Step struct {
	Kind        StepKind `yaml:"kind,omitempty" toml:"kind"`
	Description string   `yaml:"description,omitempty" toml:"description"`

	// User is the OS account host steps run as. Empty means the executor's user.
	User string `yaml:"user,omitempty" toml:"user"`
	// Role is the database role sql and seed steps run as.
	Role string `yaml:"role,omitempty" toml:"role"`

	// package
	Package string `yaml:"package,omitempty" toml:"package"`

	// file
	Path    string `yaml:"path,omitempty" toml:"path"`
	Owner   string `yaml:"owner,omitempty" toml:"owner"`
	Group   string `yaml:"group,omitempty" toml:"group"`
	Mode    string `yaml:"mode,omitempty" toml:"mode"`
	Source  string `yaml:"source,omitempty" toml:"source"`
	Content string `yaml:"content,omitempty" toml:"content"`

	// service
	Service string   `yaml:"service,omitempty" toml:"service"`
	States  []string `yaml:"states,omitempty" toml:"states"`

	// command
	Command string            `yaml:"command,omitempty" toml:"command"`
	NotIf   string            `yaml:"not_if,omitempty" toml:"not_if"`
	OnlyIf  string            `yaml:"only_if,omitempty" toml:"only_if"`
	Env     map[string]string `yaml:"env,omitempty" toml:"env"`

	// user
	Account string `yaml:"account,omitempty" toml:"account"`

	// sql
	Statements  []string `yaml:"statements,omitempty" toml:"statements"`
	File        string   `yaml:"file,omitempty" toml:"file"`
	UnlessQuery string   `yaml:"unless_query,omitempty" toml:"unless_query"`

	// seed
	Table   string         `yaml:"table,omitempty" toml:"table"`
	Key     map[string]any `yaml:"key,omitempty" toml:"key"`
	Columns map[string]any `yaml:"columns,omitempty" toml:"columns"`
}

// Label returns the step's description, or a generated one.
func (s Step) Label() string {
	if s.Description != "" {
		return s.Description
	}
	switch s.Kind {
	case KindPackage:
		return fmt.Sprintf("package %s", s.Package)
	case KindFile:
		return fmt.Sprintf("file %s", s.Path)
	case KindService:
		return fmt.Sprintf("service %s [%s]", s.Service, strings.Join(s.States, ", "))
	case KindCommand:
		return fmt.Sprintf("execute %s", s.Command)
	case KindUser:
		return fmt.Sprintf("user %s", s.Account)
	case KindSQL:
		if s.File != "" {
			return fmt.Sprintf("sql %s", s.File)
		}
		return fmt.Sprintf("sql (%d statements)", len(s.Statements))
	case KindSeed:
		return fmt.Sprintf("seed %s %s", s.Table, FormatKey(s.Key))
	default:
		return string(s.Kind)
	}
}

// NeedsDatabase reports whether any step talks to the database.
func (c *Config) NeedsDatabase() bool {
	for _, s := range c.Steps {
		if s.Kind == KindSQL || s.Kind == KindSeed {
			return true
		}
	}
	return false
}

// FormatKey renders a natural key deterministically, e.g. "name=pkg-perl".
func FormatKey(key map[string]any) string {
	cols := make([]string, 0, len(key))
	for col := range key {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		parts = append(parts, fmt.Sprintf("%s=%v", col, key[col]))
	}
	return strings.Join(parts, ",")
}
