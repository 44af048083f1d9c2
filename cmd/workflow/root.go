package main

import (
	"fmt"
	"os"

	"github.com/delta5-hq/d5-sub001/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "workflow",
	Short: "workflow executes slash-commands embedded in outline documents",
	Long: `workflow runs the commands recorded on nodes of an outline document
(/chatgpt, /steps, /foreach, /switch and friends), resolving @references
between nodes and importing generated text as new child nodes.`,
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
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML or JSON configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides the config)")
}

// bootstrap wires the app from the persistent flags.
func bootstrap(cmd *cobra.Command) (*cli.App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")
	return cli.Bootstrap(configPath, logLevel)
}
