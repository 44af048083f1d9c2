package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	workflow "github.com/delta5-hq/d5-sub001"
	"github.com/delta5-hq/d5-sub001/internal/cli"
	"github.com/delta5-hq/d5-sub001/internal/presentation/tui"
	httpadapter "github.com/delta5-hq/d5-sub001/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the JSON API: POST /execute, POST /render, GET /workflows,
GET /events (SSE), GET /healthz, GET /info and GET /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		addr := app.Config.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		handler := httpadapter.NewHandler(app.Executor(),
			httpadapter.WithLogger(app.Logger),
			httpadapter.WithWorkflows(app.Manager),
			httpadapter.WithGatherer(app.Registry),
		)
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		app.StartProgress(ctx)

		if tui.IsTerminal(os.Stdout) {
			tui.PrintBanner(os.Stdout, workflow.Version)
		}

		serverErrors := make(chan error, 1)
		go func() {
			app.Logger.Info("http server listening", "address", addr, "backend", app.Config.Snapshots.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			app.Logger.Info("shutting down", "signal", ctx.Signal())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown did not complete: %w", err)
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.addr)")
}
