package main

import (
	"fmt"
	"strings"

	workflow "github.com/delta5-hq/d5-sub001"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of workflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "workflow version %s\n", strings.TrimSpace(workflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
