package main

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpiralCommand(t *testing.T) {
	cmd := NewSpiralCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "spiral", cmd.Use)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("debug"))

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"orchestrate", "actions", "email", "coinbase", "dashboard", "mcp", "version"} {
		assert.True(t, slices.Contains(names, want), "missing subcommand %s", want)
	}
}

func TestEmailSubcommands(t *testing.T) {
	cmd := NewSpiralCommand()
	emailCmd, _, err := cmd.Find([]string{"email", "send"})
	require.NoError(t, err)
	assert.Equal(t, "send", emailCmd.Name())
	assert.NotNil(t, emailCmd.Flags().Lookup("to"))

	listen, _, err := cmd.Find([]string{"email", "listen"})
	require.NoError(t, err)
	assert.Equal(t, "listen", listen.Name())

	perms, _, err := cmd.Find([]string{"coinbase", "permissions"})
	require.NoError(t, err)
	assert.Equal(t, "permissions", perms.Name())
}

func TestEmailSendRequiresRecipient(t *testing.T) {
	cmd := NewSpiralCommand()
	cmd.SetArgs([]string{"email", "send", "--subject", "hi"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--to")
}
