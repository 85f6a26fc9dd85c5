package main

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/vango-dev/distkit/internal/mirror"
	"github.com/vango-dev/distkit/internal/telemetry"
)

func serveCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the build directory as a release mirror",
		Long: `Serve the latest dist-all output over HTTP for download testing.

Routes:
  GET /                 manifest as JSON
  GET /SHA256           checksum file
  GET /artifacts/{name} artifact listed in the manifest
  GET /metrics          build metrics (Prometheus)

Examples:
  distkit serve
  distkit serve --addr=0.0.0.0:8089`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Serve.Addr
			}

			metrics := a.collector
			if metrics == nil {
				metrics = telemetry.NewMetrics()
			}

			srv := mirror.New(a.cfg, metrics, a.logger.Logger)
			return srv.ListenAndServe(cmd.Context(), addr, func(bound net.Addr) {
				a.success("Serving %s on http://%s", a.cfg.BuildDir, bound)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from distkit.json)")

	return cmd
}
