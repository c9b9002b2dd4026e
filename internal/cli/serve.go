package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vikashloomba/mcp-connection-manager-go/internal/api"
	"github.com/vikashloomba/mcp-connection-manager-go/pkg/catalog"
	"github.com/vikashloomba/mcp-connection-manager-go/pkg/mcpmgr"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the connection manager over HTTP until interrupted. With
mcp.autoconnect set, stored configs flagged active are reconnected first.`,
		Example: `  mcpconn serve
  mcpconn serve --addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var (
		metrics        *mcpmgr.Metrics
		metricsHandler http.Handler
	)
	if a.cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = mcpmgr.NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	mgr := a.newManager(metrics)
	defer mgr.DisconnectAll(context.Background())

	srv, err := api.New(mgr, st, catalog.New(nil), &api.Options{
		Addr:            a.cfg.Server.Addr,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		MetricsHandler:  metricsHandler,
		Logger:          a.logger,
	})
	if err != nil {
		return err
	}

	if a.cfg.MCP.AutoConnect {
		n, err := srv.Restore(ctx)
		if err != nil {
			return err
		}
		a.logger.Info("restored active connections", slog.Int("connected", n))
	}

	a.out.Info("listening on %s", a.cfg.Server.Addr)
	err = srv.ListenAndServe(ctx)
	if errors.Is(err, context.Canceled) {
		a.logger.Info("shutting down")
		return nil
	}
	return err
}
