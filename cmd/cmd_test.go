// File: cmd/cmd_test.go
package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forumsign/forumsign/internal/config"
)

func TestRootCommandTree(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"], "run command should be registered")
	assert.True(t, names["schedule"], "schedule command should be registered")
	assert.True(t, names["notify-test"], "notify-test command should be registered")
}

func TestInitializeConfigToleratesMissingFile(t *testing.T) {
	// A missing config file is not an error; defaults and env vars apply.
	t.Chdir(t.TempDir())
	require.NoError(t, initializeConfig())

	cfg, err := config.NewFromViper(viper.GetViper())
	require.NoError(t, err)
	assert.Equal(t, "08:30", cfg.Schedule.SignTime)
}
