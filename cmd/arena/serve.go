package main

import (
	"context"
	"os"

	"github.com/aretw0/arena/internal/cli"
	"github.com/aretw0/arena/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the arena server",
	Long: `Starts the HTTP and WebSocket server. Observers connect to /websocket?room=<key>;
workers can deliver turns with POST /sessions/{key}/turns. Unfinished runs are resumed on start.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if tui.IsTerminal(os.Stdout) {
			tui.PrintBanner(cmd.OutOrStdout())
		}
		ctx, stop := cli.SignalContext(context.Background())
		defer stop()
		return cli.Serve(ctx, cfg, logger, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default :8080)")
	serveCmd.Flags().String("generator", "", "Generator backend: scripted or openai")
	serveCmd.Flags().String("model", "", "Model name for the openai backend")
	serveCmd.Flags().String("base-url", "", "Base URL of an OpenAI-compatible API")
	serveCmd.Flags().Int("workers", 0, "Runs executed concurrently")
	serveCmd.Flags().Bool("keep-runs", false, "Keep finished runs in the store")
}
