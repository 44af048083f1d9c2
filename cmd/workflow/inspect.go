package main

import (
	"github.com/delta5-hq/d5-sub001/internal/cli"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [document]",
	Short: "Render a document without executing anything",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		opts := cli.InspectOptions{}
		if len(args) > 0 {
			opts.DocumentPath = args[0]
		}
		opts.WorkflowID, _ = cmd.Flags().GetString("workflow")
		opts.NodeID, _ = cmd.Flags().GetString("node")
		opts.UseCommand, _ = cmd.Flags().GetBool("use-command")
		opts.FoldEdges, _ = cmd.Flags().GetBool("fold-edges")
		opts.Output, _ = cmd.Flags().GetString("output")

		return cli.Inspect(cmd.Context(), app.Manager, opts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().String("workflow", "", "Stored workflow id")
	inspectCmd.Flags().String("node", "", "Render only this node and its subtree")
	inspectCmd.Flags().Bool("use-command", false, "Render recorded commands instead of titles")
	inspectCmd.Flags().Bool("fold-edges", false, "Inline edge targets after their source")
	inspectCmd.Flags().StringP("output", "o", cli.OutputMarkdown, "Output format: outline, markdown, mermaid or json")
}
