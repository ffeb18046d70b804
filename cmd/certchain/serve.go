package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"certchain/internal/platform/health"
	"certchain/internal/platform/logger"
	httptransport "certchain/internal/transport/http"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func serveCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			log := logger.New(os.Stdout, cfg.Server.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("initializing certchain",
				"addr", cfg.Server.Addr,
				"environment", cfg.Server.Environment,
				"mode", cfg.Ledger.Mode,
			)
			a, err := newApp(ctx, cfg, log, prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(ctx)
		},
	}
	cmd.Flags().String("addr", ":8080", "HTTP listen address")
	return cmd
}

// serve runs the HTTP server next to the wallet event loop until ctx ends,
// then drains requests and in-flight submissions.
func (a *app) serve(ctx context.Context) error {
	hh := health.New(a.cfg.Server.Environment, string(a.manager.Mode()))
	hh.RegisterCheck("ledger", func(context.Context) error {
		_, err := a.manager.Capability()
		return err
	})

	handler := httptransport.NewHandler(httptransport.Services{
		Identity: a.manager,
		Drafts:   a.drafts,
		Verifier: a.verifier,
		Records:  a.records,
		Exporter: a.exporter,
	}, httptransport.WithLogger(a.logger))
	router := httptransport.NewRouter(handler, hh, promhttp.Handler(), a.logger, a.metrics)

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	a.connect(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return a.manager.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := a.drafts.Wait(shutdownCtx); err != nil {
			a.logger.Warn("submissions still in flight at shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("server error", "error", err)
		return err
	}
	a.logger.Info("server stopped")
	return nil
}
