package main

import (
	"fmt"
	"log"
	"os"

	"github.com/delta5-hq/d5-sub001/internal/cli"
	"github.com/delta5-hq/d5-sub001/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes stored workflows to AI agents as MCP tools:
execute_command, render_outline and list_workflows.

Supported transports:
- stdio (default): standard input/output, for local process integration.
- sse: server-sent events over HTTP, for remote agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		transport, _ := cmd.Flags().GetString("transport")
		port := app.Config.Server.MCPPort
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		srv := mcp.NewServer(app.Executor(), app.Manager, mcp.WithLogger(app.Logger))

		switch transport {
		case "stdio":
			// Keep stdout free for JSON-RPC.
			log.SetOutput(os.Stderr)
			app.Logger.Info("starting mcp server (stdio)")
			return srv.ServeStdio()
		case "sse":
			ctx := cli.NewSignalContext(cmd.Context())
			defer ctx.Cancel()
			return srv.ServeSSE(ctx, port)
		default:
			return fmt.Errorf("unknown transport %q: use stdio or sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().Int("port", 0, "Port for the sse transport (overrides server.mcp_port)")
}
