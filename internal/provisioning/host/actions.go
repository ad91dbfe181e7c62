package host

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Package installs a distribution package with apt-get. It has no guard:
// the package manager already skips installed packages.
type Package struct {
	Exec Executor
	Name string
}

func (a *Package) Kind() string        { return "package" }
func (a *Package) Description() string { return "package " + a.Name }
func (a *Package) Principal() string   { return "" }
func (a *Package) Unguarded() bool     { return true }

// Guard implements provisioning.Action.
func (a *Package) Guard(context.Context) (bool, error) { return false, nil }

// Apply implements provisioning.Action.
func (a *Package) Apply(ctx context.Context) error {
	return run(ctx, a.Exec, Command{
		Name: "apt-get",
		Args: []string{"install", "-y", "-q", a.Name},
		Env:  map[string]string{"DEBIAN_FRONTEND": "noninteractive"},
	})
}

// File writes a file and then sets its ownership and mode. The content is
// always rewritten.
type File struct {
	Exec   Executor
	Path   string
	Owner  string
	Group  string
	// Mode holds the plain octal permission bits, as in chmod(1).
	Mode   os.FileMode
	Source Source
}

func (a *File) Kind() string        { return "file" }
func (a *File) Description() string { return "file " + a.Path }
func (a *File) Principal() string   { return "" }
func (a *File) Unguarded() bool     { return true }

// Guard implements provisioning.Action.
func (a *File) Guard(context.Context) (bool, error) { return false, nil }

// Apply implements provisioning.Action.
func (a *File) Apply(ctx context.Context) error {
	content, err := a.Source.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = content.Close() }()

	write := Shell(`cat > "$1"`)
	write.Args = append(write.Args, "sh", a.Path)
	write.Stdin = content
	if err := run(ctx, a.Exec, write); err != nil {
		return fmt.Errorf("failed to write %s from %s: %w", a.Path, a.Source, err)
	}

	owner := a.Owner
	if a.Group != "" {
		owner += ":" + a.Group
	}
	if owner != "" {
		if err := run(ctx, a.Exec, Command{Name: "chown", Args: []string{owner, a.Path}}); err != nil {
			return err
		}
	}
	return run(ctx, a.Exec, Command{Name: "chmod", Args: []string{fmt.Sprintf("%04o", uint32(a.Mode)), a.Path}})
}

// serviceVerbs maps a desired service state to its systemctl verb.
var serviceVerbs = map[string]string{
	"restarted": "restart",
	"enabled":   "enable",
	"started":   "start",
	"stopped":   "stop",
	"reloaded":  "reload",
	"disabled":  "disable",
}

// Service drives a systemd unit through States in order. Every state is
// re-applied on each run.
type Service struct {
	Exec   Executor
	Name   string
	States []string
}

func (a *Service) Kind() string { return "service" }
func (a *Service) Description() string {
	return fmt.Sprintf("service %s [%s]", a.Name, strings.Join(a.States, ", "))
}
func (a *Service) Principal() string { return "" }
func (a *Service) Unguarded() bool   { return true }

// Guard implements provisioning.Action.
func (a *Service) Guard(context.Context) (bool, error) { return false, nil }

// Apply implements provisioning.Action.
func (a *Service) Apply(ctx context.Context) error {
	for _, state := range a.States {
		verb, ok := serviceVerbs[state]
		if !ok {
			return fmt.Errorf("unknown service state %q", state)
		}
		if err := run(ctx, a.Exec, Command{Name: "systemctl", Args: []string{verb, a.Name}}); err != nil {
			return err
		}
	}
	return nil
}

// ShellCommand runs a shell script as User. NotIf marks the action
// satisfied when it exits zero; OnlyIf marks it satisfied when it exits
// non-zero. Guards run as the same user with the same environment.
type ShellCommand struct {
	Exec   Executor
	Label  string
	Script string
	User   string
	Env    map[string]string
	NotIf  string
	OnlyIf string
}

func (a *ShellCommand) Kind() string { return "command" }
func (a *ShellCommand) Description() string {
	if a.Label != "" {
		return a.Label
	}
	return "command " + a.Script
}
func (a *ShellCommand) Principal() string { return a.User }
func (a *ShellCommand) Unguarded() bool   { return a.NotIf == "" && a.OnlyIf == "" }

func (a *ShellCommand) command(script string) Command {
	cmd := Shell(script)
	cmd.User = a.User
	cmd.Env = a.Env
	return cmd
}

// Guard implements provisioning.Action.
func (a *ShellCommand) Guard(ctx context.Context) (bool, error) {
	switch {
	case a.NotIf != "":
		return succeeds(ctx, a.Exec, a.command(a.NotIf))
	case a.OnlyIf != "":
		ok, err := succeeds(ctx, a.Exec, a.command(a.OnlyIf))
		return !ok, err
	}
	return false, nil
}

// Apply implements provisioning.Action.
func (a *ShellCommand) Apply(ctx context.Context) error {
	return run(ctx, a.Exec, a.command(a.Script))
}

// User ensures a local account with a home directory exists.
type User struct {
	Exec    Executor
	Account string
}

func (a *User) Kind() string        { return "user" }
func (a *User) Description() string { return "user " + a.Account }
func (a *User) Principal() string   { return "" }

// Guard implements provisioning.Action.
func (a *User) Guard(ctx context.Context) (bool, error) {
	return succeeds(ctx, a.Exec, Command{Name: "id", Args: []string{"-u", a.Account}})
}

// Apply implements provisioning.Action.
func (a *User) Apply(ctx context.Context) error {
	return run(ctx, a.Exec, Command{Name: "useradd", Args: []string{"--create-home", a.Account}})
}
