package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/arena"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_OnlyChangedFlagsOverride(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("store", "", "")
	cmd.Flags().String("addr", "", "")
	cmd.Flags().Int("workers", 0, "")
	cmd.Flags().Bool("keep-runs", false, "")
	require.NoError(t, cmd.Flags().Set("store", "memory"))
	require.NoError(t, cmd.Flags().Set("workers", "7"))
	require.NoError(t, cmd.Flags().Set("keep-runs", "true"))

	cfg, logger, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 7, cfg.Orchestrator.Workers)
	assert.True(t, cfg.Orchestrator.KeepRuns)
	assert.Equal(t, ":8080", cfg.Server.Addr, "unset flags keep the default")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "arena version "+strings.TrimSpace(arena.Version)+"\n", out.String())
}

func TestRunsGraphCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"runs", "graph", "--store", "memory"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "graph TD\n"))
}
