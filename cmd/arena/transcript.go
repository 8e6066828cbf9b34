package main

import (
	"github.com/aretw0/arena/internal/cli"
	"github.com/spf13/cobra"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Read stored transcripts",
}

var transcriptLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List sessions with a stored transcript",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()
		return cli.ListTranscripts(cmd.Context(), stores.Transcripts, cmd.OutOrStdout())
	},
}

var transcriptShowCmd = &cobra.Command{
	Use:   "show <session-key>",
	Short: "Render the transcript of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()
		return cli.ShowTranscript(cmd.Context(), stores.Transcripts, args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(transcriptCmd)
	transcriptCmd.AddCommand(transcriptLsCmd)
	transcriptCmd.AddCommand(transcriptShowCmd)
}
