package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot_Subcommands(t *testing.T) {
	cmd := Root()
	require.NotNil(t, cmd)
	assert.Equal(t, "petprov", cmd.Use)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"init", "apply", "check", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestApply_Flags(t *testing.T) {
	cmd := Apply()
	require.NotNil(t, cmd.RunE)

	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"config", "c", ""},
		{"dry-run", "", "false"},
		{"metrics-file", "", ""},
		{"verbose", "v", "false"},
	}
	for _, tt := range tests {
		flag := cmd.Flags().Lookup(tt.name)
		require.NotNil(t, flag, "flag %s", tt.name)
		assert.Equal(t, tt.shorthand, flag.Shorthand, tt.name)
		assert.Equal(t, tt.def, flag.DefValue, tt.name)
	}
}

func TestCheck_Flags(t *testing.T) {
	cmd := Check()
	assert.Equal(t, "check", cmd.Use)
	require.NotNil(t, cmd.Flags().Lookup("strict"))
	require.NotNil(t, cmd.Flags().Lookup("config"))
}

func TestInit_Flags(t *testing.T) {
	cmd := Init()

	output := cmd.Flags().Lookup("output")
	require.NotNil(t, output)
	assert.Equal(t, "o", output.Shorthand)
	assert.Equal(t, "petprov.yaml", output.DefValue)

	target := cmd.Flags().Lookup("target")
	require.NotNil(t, target)
	assert.Equal(t, "local", target.DefValue)

	for _, name := range []string{"force", "yes", "host", "hcloud-server", "user", "key", "dsn"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestVersion_Output(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	defer func() { version, commit, date = origVersion, origCommit, origDate }()

	SetVersionInfo("1.2.3", "abc123", "2026-01-01")

	var out bytes.Buffer
	cmd := Version()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "petprov 1.2.3")
	assert.Contains(t, out.String(), "commit: abc123")
	assert.Contains(t, out.String(), "built:  2026-01-01")
}
