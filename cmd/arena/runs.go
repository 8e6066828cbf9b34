package main

import (
	"context"

	"github.com/aretw0/arena/internal/cli"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage stored runs",
	Long:  `List, inspect, resume and remove the checkpointed runs of the configured store.`,
}

var runsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()
		return cli.ListRuns(cmd.Context(), stores.Runs, cmd.OutOrStdout())
	},
}

var runsInspectCmd = &cobra.Command{
	Use:   "inspect <run-id>",
	Short: "Print the checkpoint of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()
		return cli.InspectRun(cmd.Context(), stores.Runs, args[0], cmd.OutOrStdout())
	},
}

var runsGraphCmd = &cobra.Command{
	Use:   "graph [run-id]",
	Short: "Export the pipeline as a Mermaid diagram",
	Long:  `Outputs a Mermaid flowchart of the exchange pipeline. With a run ID, its checkpoints are highlighted.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()
		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		return cli.GraphRun(cmd.Context(), stores.Runs, id, cmd.OutOrStdout())
	},
}

var runsResumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Execute a stored run in this process",
	Long: `Resumes a run at its first incomplete step. A failed run is retried from the step that failed.
With --server, turns are delivered to a running arena; otherwise they are written to the transcript store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		server, _ := cmd.Flags().GetString("server")

		ctx, stop := cli.SignalContext(context.Background())
		defer stop()
		return cli.ResumeRun(ctx, cfg, logger, cli.ResumeOptions{RunID: args[0], ServerURL: server}, cmd.OutOrStdout())
	},
}

var runsRmCmd = &cobra.Command{
	Use:   "rm <run-id>...",
	Short: "Remove one or more runs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()
		return cli.RemoveRuns(cmd.Context(), stores.Runs, args, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsLsCmd)
	runsCmd.AddCommand(runsInspectCmd)
	runsCmd.AddCommand(runsGraphCmd)
	runsCmd.AddCommand(runsResumeCmd)
	runsCmd.AddCommand(runsRmCmd)

	runsResumeCmd.Flags().String("server", "", "Base URL of a running arena to deliver turns to")
	runsResumeCmd.Flags().String("generator", "", "Generator backend: scripted or openai")
	runsResumeCmd.Flags().String("model", "", "Model name for the openai backend")
	runsResumeCmd.Flags().String("base-url", "", "Base URL of an OpenAI-compatible API")
}
