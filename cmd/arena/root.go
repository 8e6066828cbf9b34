package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/arena/internal/cli"
	"github.com/aretw0/arena/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arena",
	Short: "Arena hosts live debates between two AI participants",
	Long: `Arena runs debate sessions: observers post a topic, Agent A argues for it and
Agent B refutes A. Exchanges are checkpointed step by step and survive restarts.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String("store", "", "Store backend: memory, file or redis")
	rootCmd.PersistentFlags().String("dir", "", "Directory of the file store")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"store":      "store.backend",
	"dir":        "store.dir",
	"log-level":  "log.level",
	"log-format": "log.format",
	"addr":       "server.addr",
	"generator":  "generator.backend",
	"model":      "generator.model",
	"base-url":   "generator.base_url",
	"workers":    "orchestrator.workers",
	"keep-runs":  "orchestrator.keep_runs",
}

// loadConfig resolves the configuration for cmd. Only flags set by the user override other sources.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")

	v := config.New()
	if err := config.BindFlags(v, cmd.Flags(), flagKeys); err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load(v, path)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := cli.NewLogger(cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openStores loads the config and opens its stores.
func openStores(cmd *cobra.Command) (*cli.Stores, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return cli.OpenStores(cmd.Context(), cfg.Store)
}
