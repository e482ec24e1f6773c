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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cdnrouter/internal/config"
	"cdnrouter/internal/pool"
	"cdnrouter/internal/router"
)

func newServeCommand(v *viper.Viper, logger *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the Router gRPC service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func buildPool(cfg *config.Config, logger *logrus.Logger) (*pool.Pool, error) {
	hasher, err := cfg.Hasher()
	if err != nil {
		return nil, err
	}
	p := pool.New(hasher, logger)
	if len(cfg.Nodes) > 0 {
		if err := p.Set(cfg.BuildMembers()); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := router.NewMetrics(reg)

	p, err := buildPool(cfg, logger)
	if err != nil {
		return err
	}
	p.OnChange(metrics.ObserveSnapshot)
	metrics.ObserveSnapshot(p.Snapshot())

	if len(cfg.Nodes) == 0 {
		logger.Warn("No nodes configured; Route requests will fail until nodes are added with AddNode")
	}

	rt := router.New(cfg.ListenAddr, router.NewServer(p, cfg.Dispersion, metrics, logger), logger)

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Infof("Serving metrics on %s", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- rt.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	rt.Stop()
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Metrics server shutdown")
		}
	}
	return <-errCh
}
