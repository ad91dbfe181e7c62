package host

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg-perl/petprov/internal/provisioning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackage_Apply(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	action := &Package{Exec: exec, Name: "postgresql-contrib"}

	satisfied, err := action.Guard(context.Background())
	require.NoError(t, err)
	assert.False(t, satisfied)

	require.NoError(t, action.Apply(context.Background()))
	assert.Equal(t, []string{"env DEBIAN_FRONTEND=noninteractive apt-get install -y -q postgresql-contrib"}, exec.lines())
	assert.Equal(t, "package postgresql-contrib", action.Description())
}

func TestPackage_ApplyFails(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{respond: func(Command) (Result, error) {
		return Result{ExitCode: 100, Stderr: "E: Unable to locate package nope"}, nil
	}}
	err := (&Package{Exec: exec, Name: "nope"}).Apply(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommandFailed)
	assert.Contains(t, err.Error(), "exit=100")
}

func TestFile_Apply(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	action := &File{
		Exec:   exec,
		Path:   "/etc/postgresql/9.1/main/pg_hba.conf",
		Owner:  "postgres",
		Group:  "postgres",
		Mode:   0o640,
		Source: InlineSource{Content: "local all postgres peer\n"},
	}

	require.NoError(t, action.Apply(context.Background()))

	assert.Equal(t, []string{
		`sh -c 'cat > "$1"' sh /etc/postgresql/9.1/main/pg_hba.conf`,
		"chown postgres:postgres /etc/postgresql/9.1/main/pg_hba.conf",
		"chmod 0640 /etc/postgresql/9.1/main/pg_hba.conf",
	}, exec.lines())
	assert.Equal(t, "local all postgres peer\n", exec.stdin[0])
}

func TestFile_ApplyLocalSource(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "hosts")
	require.NoError(t, os.WriteFile(path, []byte("127.0.0.1 localhost\n"), 0o600))

	exec := &fakeExecutor{}
	action := &File{Exec: exec, Path: "/etc/hosts", Owner: "root", Mode: 0o644, Source: LocalSource{Path: path}}

	require.NoError(t, action.Apply(context.Background()))
	assert.Equal(t, "127.0.0.1 localhost\n", exec.stdin[0])
	assert.Equal(t, "chown root /etc/hosts", exec.lines()[1])
}

func TestFile_WriteFailureStops(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{respond: func(Command) (Result, error) {
		return Result{ExitCode: 1, Stderr: "Permission denied"}, nil
	}}
	action := &File{Exec: exec, Path: "/etc/hosts", Owner: "root", Mode: 0o644, Source: InlineSource{}}

	err := action.Apply(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write /etc/hosts")
	assert.Len(t, exec.calls, 1, "no chown or chmod after a failed write")
}

func TestFile_MissingSource(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	action := &File{Exec: exec, Path: "/etc/hosts", Source: LocalSource{Path: filepath.Join(t.TempDir(), "missing")}}

	err := action.Apply(context.Background())
	require.Error(t, err)
	assert.Empty(t, exec.calls)
}

type stubGetter struct {
	bucket, key string
}

func (s *stubGetter) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	s.bucket, s.key = bucket, key
	return io.NopCloser(strings.NewReader("from s3")), nil
}

func TestObjectSource(t *testing.T) {
	t.Parallel()
	getter := &stubGetter{}
	src := ObjectSource{Getter: getter, Bucket: "pet-config", Key: "pg_hba.conf"}

	rc, err := src.Open(context.Background())
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	assert.Equal(t, "from s3", string(data))
	assert.Equal(t, "pet-config", getter.bucket)
	assert.Equal(t, "s3://pet-config/pg_hba.conf", src.String())

	_, err = ObjectSource{Bucket: "b", Key: "k"}.Open(context.Background())
	assert.Error(t, err)
}

func TestService_Apply(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	action := &Service{Exec: exec, Name: "postgresql", States: []string{"restarted", "enabled"}}

	require.NoError(t, action.Apply(context.Background()))
	assert.Equal(t, []string{"systemctl restart postgresql", "systemctl enable postgresql"}, exec.lines())

	// Service states are not guarded; a second run repeats them.
	require.NoError(t, action.Apply(context.Background()))
	assert.Len(t, exec.calls, 4)
}

func TestService_UnknownState(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	err := (&Service{Exec: exec, Name: "postgresql", States: []string{"paused"}}).Apply(context.Background())
	require.Error(t, err)
	assert.Empty(t, exec.calls)
}

func TestShellCommand_Guards(t *testing.T) {
	t.Parallel()

	exitWith := func(code int) func(Command) (Result, error) {
		return func(Command) (Result, error) { return Result{ExitCode: code}, nil }
	}

	tests := []struct {
		name      string
		action    ShellCommand
		exitCode  int
		satisfied bool
	}{
		{name: "no guard", action: ShellCommand{Script: "true"}, satisfied: false},
		{name: "not_if succeeds", action: ShellCommand{Script: "createdb pet", NotIf: "psql -l | grep pet"}, exitCode: 0, satisfied: true},
		{name: "not_if fails", action: ShellCommand{Script: "createdb pet", NotIf: "psql -l | grep pet"}, exitCode: 1, satisfied: false},
		{name: "only_if succeeds", action: ShellCommand{Script: "x", OnlyIf: "test -f /vagrant"}, exitCode: 0, satisfied: false},
		{name: "only_if fails", action: ShellCommand{Script: "x", OnlyIf: "test -f /vagrant"}, exitCode: 1, satisfied: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			action := tt.action
			action.Exec = &fakeExecutor{respond: exitWith(tt.exitCode)}
			got, err := action.Guard(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.satisfied, got)
		})
	}
}

func TestShellCommand_GuardRunsAsUser(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	action := &ShellCommand{
		Exec:   exec,
		Label:  "create pet database",
		Script: "createdb -O pet pet",
		User:   "postgres",
		NotIf:  "psql -lqt | cut -d '|' -f 1 | grep -qw pet",
	}

	_, err := action.Guard(context.Background())
	require.NoError(t, err)
	require.NoError(t, action.Apply(context.Background()))

	require.Len(t, exec.calls, 2)
	assert.Equal(t, "postgres", exec.calls[0].User)
	assert.Equal(t, "postgres", exec.calls[1].User)
	assert.Equal(t, []string{"-c", "createdb -O pet pet"}, exec.calls[1].Args)
	assert.Equal(t, "postgres", action.Principal())
	assert.Equal(t, "create pet database", action.Description())
}

func TestShellCommand_GuardCannotRun(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{respond: func(Command) (Result, error) {
		return Result{}, errors.New("ssh: connection lost")
	}}
	_, err := (&ShellCommand{Exec: exec, Script: "x", NotIf: "y"}).Guard(context.Background())
	assert.Error(t, err)
}

func TestUser(t *testing.T) {
	t.Parallel()
	exists := false
	exec := &fakeExecutor{respond: func(cmd Command) (Result, error) {
		if cmd.Name == "id" && !exists {
			return Result{ExitCode: 1, Stderr: "id: 'pet': no such user"}, nil
		}
		if cmd.Name == "useradd" {
			exists = true
		}
		return Result{}, nil
	}}
	action := &User{Exec: exec, Account: "pet"}

	satisfied, err := action.Guard(context.Background())
	require.NoError(t, err)
	require.False(t, satisfied)
	require.NoError(t, action.Apply(context.Background()))

	satisfied, err = action.Guard(context.Background())
	require.NoError(t, err)
	assert.True(t, satisfied)
	assert.Contains(t, exec.lines(), "useradd --create-home pet")
}

func TestActions_Unguarded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		action    provisioning.Action
		unguarded bool
	}{
		{name: "package", action: &Package{Name: "vim"}, unguarded: true},
		{name: "file", action: &File{Path: "/etc/hosts"}, unguarded: true},
		{name: "service", action: &Service{Name: "postgresql", States: []string{"restarted"}}, unguarded: true},
		{name: "plain command", action: &ShellCommand{Script: "make"}, unguarded: true},
		{name: "command with not_if", action: &ShellCommand{Script: "createdb pet", NotIf: "psql -l | grep pet"}, unguarded: false},
		{name: "command with only_if", action: &ShellCommand{Script: "x", OnlyIf: "test -f /vagrant"}, unguarded: false},
		{name: "user", action: &User{Account: "pet"}, unguarded: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.unguarded, provisioning.IsUnguarded(tt.action))
		})
	}
}
