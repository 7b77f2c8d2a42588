package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/royals-league/rally/internal/errors"
	"github.com/royals-league/rally/pkg/live"
	"github.com/royals-league/rally/pkg/middleware"
)

func serveCmd() *cobra.Command {
	var (
		listen  string
		policy  string
		tracing bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the live server",
		Long: `Start the live websocket server.

Each browser session loads the league page, seeds its controls from the
rendered buttons and receives class patches as the controls change.

Endpoints:
  /ws        live sessions
  /metrics   Prometheus metrics (unless disabled)
  /healthz   liveness
  /sessions  open sessions

Commits are traced with the global OpenTelemetry TracerProvider. This
binary installs none, so --tracing emits spans only when rally is built
with an exporter that calls otel.SetTracerProvider.

Examples:
  rally serve
  rally serve --listen=:9000 --policy=supersede`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				cfg.Server.Listen = listen
			}
			if policy != "" {
				cfg.Commit.Policy = policy
			}
			if tracing {
				cfg.Tracing.Enabled = true
			}
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (default from rally.json)")
	cmd.Flags().StringVar(&policy, "policy", "", "Overlap policy: drop or supersede")
	cmd.Flags().BoolVar(&tracing, "tracing", false, "Wrap backend commits in OpenTelemetry spans (recorded only when the embedding program installs a TracerProvider)")

	return cmd
}

func runServe(parent context.Context) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := slog.Default()

	opts := []live.Option{live.WithLogger(logger)}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := middleware.NewMetrics(
			middleware.WithNamespace(cfg.Metrics.Namespace),
			middleware.WithRegistry(reg),
		)
		opts = append(opts, live.WithMetrics(m, reg))
	}
	if cfg.Tracing.Enabled {
		opts = append(opts, live.WithCommitMiddleware(
			middleware.NewTracing(middleware.WithTracerName(cfg.Tracing.TracerName)),
		))
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lc := cfg.Live()
	srv := live.NewServer(lc, opts...)

	info("Listening on %s", lc.Address)
	info("League page %s", lc.PageURL)
	if err := srv.Run(ctx); err != nil {
		return errors.New("R302").Wrap(err)
	}
	success("Server stopped")
	return nil
}
