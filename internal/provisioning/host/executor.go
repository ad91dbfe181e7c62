package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ErrCommandFailed is returned when a command ran but exited non-zero.
var ErrCommandFailed = errors.New("command failed")

// Command describes one program invocation on the target.
type Command struct {
	Name string
	Args []string

	// User runs the command as another account through sudo.
	User string

	// Env is passed through env(1) so it survives sudo.
	Env map[string]string

	Stdin io.Reader
}

// Shell returns a command that runs script with sh -c.
func Shell(script string) Command {
	return Command{Name: "sh", Args: []string{"-c", script}}
}

// Argv returns the full argument vector, including the sudo and env
// prefixes.
func (c Command) Argv() []string {
	argv := append([]string{c.Name}, c.Args...)

	if len(c.Env) > 0 {
		keys := make([]string, 0, len(c.Env))
		for k := range c.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		prefix := []string{"env"}
		for _, k := range keys {
			prefix = append(prefix, k+"="+c.Env[k])
		}
		argv = append(prefix, argv...)
	}

	if c.User != "" {
		argv = append([]string{"sudo", "-n", "-H", "-u", c.User, "--"}, argv...)
	}
	return argv
}

// String renders the command as a shell-escaped line.
func (c Command) String() string {
	argv := c.Argv()
	return joinCommand(argv[0], argv[1:])
}

// Result is what a finished command produced.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Check converts a non-zero exit into an ErrCommandFailed error.
func (r Result) Check(cmd Command) error {
	if r.ExitCode == 0 {
		return nil
	}
	return fmt.Errorf("%w: cmd=%q exit=%d stderr=%q",
		ErrCommandFailed, cmd.String(), r.ExitCode, strings.TrimSpace(r.Stderr))
}

// Executor runs commands on the target machine.
//
// Run returns an error only when the command could not be run at all; a
// command that exits non-zero is reported through Result.ExitCode.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// run executes cmd and treats a non-zero exit as an error.
func run(ctx context.Context, exec Executor, cmd Command) error {
	res, err := exec.Run(ctx, cmd)
	if err != nil {
		return err
	}
	return res.Check(cmd)
}

// succeeds reports whether cmd exits zero.
func succeeds(ctx context.Context, exec Executor, cmd Command) (bool, error) {
	res, err := exec.Run(ctx, cmd)
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

func joinCommand(cmd string, args []string) string {
	if len(args) == 0 {
		return shellEscape(cmd)
	}

	var builder strings.Builder
	builder.WriteString(shellEscape(cmd))
	for _, arg := range args {
		builder.WriteByte(' ')
		builder.WriteString(shellEscape(arg))
	}

	return builder.String()
}

// shellEscape single-quotes value unless it is made only of safe characters.
func shellEscape(value string) string {
	if value == "" {
		return "''"
	}
	if strings.IndexFunc(value, unsafeShellRune) < 0 {
		return value
	}

	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

func unsafeShellRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("-_./:=@%+,", r):
		return false
	}
	return true
}

// JoinCommand renders argv as a single shell-escaped line, for executors
// that hand a command string to a remote shell.
func JoinCommand(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return joinCommand(argv[0], argv[1:])
}
