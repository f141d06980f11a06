package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "soprev", rootCmd.Use)
}

func TestRootCmd_Short(t *testing.T) {
	assert.Contains(t, rootCmd.Short, "SOP")
}

func TestRootCmd_HasVerboseFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, flag, "verbose flag should exist")
	assert.Equal(t, "v", flag.Shorthand)
	assert.Equal(t, "false", flag.DefValue)
}

func TestRootCmd_HasDataDirFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("data-dir")
	require.NotNil(t, flag, "data-dir flag should exist")
}

func TestRootCmd_HasConfigDirFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config-dir")
	require.NotNil(t, flag, "config-dir flag should exist")
}

func TestRootCmd_HasExpectedSubcommands(t *testing.T) {
	expected := []string{
		"index", "search", "ask", "chat", "revise", "changes",
		"diff", "documents", "watch", "settings", "version",
	}

	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}

	for _, name := range expected {
		assert.True(t, names[name], "missing subcommand %s", name)
	}
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"bogus"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
}
