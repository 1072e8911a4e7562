package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"sync", "ask", "docs", "serve", "version"} {
		assert.True(t, names[want], "command %q not registered", want)
	}
}

func TestSyncFlags(t *testing.T) {
	f := syncCmd.Flags().Lookup("recursive")
	require.NotNil(t, f)
	assert.Equal(t, "false", f.DefValue)
}

func TestAskRequiresArgs(t *testing.T) {
	err := askCmd.Args(askCmd, nil)
	assert.Error(t, err)
	assert.NoError(t, askCmd.Args(askCmd, []string{"how do refunds work"}))
}
