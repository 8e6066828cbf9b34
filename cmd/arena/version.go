package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/arena"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of arena",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "arena version %s\n", strings.TrimSpace(arena.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
