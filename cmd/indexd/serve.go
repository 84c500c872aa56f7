package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sh3r4rd/object_index/internal/app"
	"github.com/sh3r4rd/object_index/internal/config"
	"github.com/sh3r4rd/object_index/internal/logging"
	"github.com/sh3r4rd/object_index/internal/metrics"
	"github.com/sh3r4rd/object_index/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept notifications on /events and serve /records, /metrics and /healthz",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), *cfg)
		},
	}

	cmd.Flags().String("listen-address", "", "address the HTTP server listens on")
	cmd.Flags().String("write-strategy", "", "read_then_write or conditional")
	cmd.Flags().String("error-policy", "", "swallow or propagate")

	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	lg, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			lg.Error("failed to close index store", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	idx := app.NewIndexer(cfg, store, lg, m)
	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.New(idx, app.Policy(cfg), cfg.StoreTimeout, reg, lg).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("listening", zap.String("address", cfg.ListenAddress))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
