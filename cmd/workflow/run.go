package main

import (
	"github.com/delta5-hq/d5-sub001/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [document] --node <id>",
	Short: "Execute the command of one node",
	Long: `Executes the command recorded on a node and prints the node with its new output.

The document is a JSON or YAML snapshot file given as argument, or a stored
workflow selected with --workflow. Use --write to save a file document back.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		opts := cli.RunOptions{}
		if len(args) > 0 {
			opts.DocumentPath = args[0]
		}
		opts.WorkflowID, _ = cmd.Flags().GetString("workflow")
		opts.NodeID, _ = cmd.Flags().GetString("node")
		opts.QueryType, _ = cmd.Flags().GetString("query-type")
		opts.Context, _ = cmd.Flags().GetString("context")
		opts.Prompt, _ = cmd.Flags().GetString("prompt")
		opts.UserID, _ = cmd.Flags().GetString("user")
		opts.Write, _ = cmd.Flags().GetBool("write")
		opts.Output, _ = cmd.Flags().GetString("output")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		app.StartProgress(ctx)

		return cli.Run(ctx, app.Executor(), app.Manager, opts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("workflow", "", "Stored workflow id")
	runCmd.Flags().String("node", "", "Id of the node to execute")
	runCmd.Flags().String("query-type", "", "Command to run; inferred from the node when empty")
	runCmd.Flags().String("context", "", "Text prepended to every prompt")
	runCmd.Flags().String("prompt", "", "Extra prompt text")
	runCmd.Flags().String("user", "", "User id forwarded to providers")
	runCmd.Flags().Bool("write", false, "Write the mutated document back to the file")
	runCmd.Flags().StringP("output", "o", cli.OutputOutline, "Output format: outline, markdown, mermaid or json")
	_ = runCmd.MarkFlagRequired("node")
}
