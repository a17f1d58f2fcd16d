package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/danielolaszy/voice2issue/internal/logging"
	"github.com/danielolaszy/voice2issue/internal/metrics"
	"github.com/danielolaszy/voice2issue/internal/server"
	"github.com/danielolaszy/voice2issue/internal/workflow"
)

// serveCmd runs the HTTP API and the transcript websocket.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve the HTTP API.

Endpoints:
  POST /api/issues          extract and publish an issue
  POST /api/extract         extract a draft without publishing
  POST /api/github/test     check a tracker credential
  GET  /api/github/repo     repository summary
  GET  /api/transcript/ws   browser speech recognition relay
  GET  /metrics             prometheus metrics
  GET  /health              liveness`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := cmd.Flags().GetString("addr")
		if err != nil {
			return err
		}
		if addr != "" {
			appConfig.HTTP.Addr = addr
		}

		ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := metrics.New(prometheus.DefaultRegisterer)
		wf := newWorkflow(workflow.WithRecorder(m))

		logging.Info("starting voice2issue server",
			"addr", appConfig.HTTP.Addr,
			"tracker", appConfig.Tracker,
			"demo_mode", appConfig.DemoMode)

		return server.New(appConfig, wf, m, prometheus.DefaultGatherer).ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides HTTP_ADDR)")
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
