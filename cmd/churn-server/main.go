package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"churnml/internal/api"
	"churnml/internal/artifact"
	"churnml/internal/config"
	"churnml/internal/logging"
	"churnml/internal/predict"
)

func main() {
	cfgPath := flag.String("config", "", "YAML config file (default $CHURN_CONFIG)")
	addr := flag.String("addr", "", "listen address (default $CHURN_HTTP_ADDR, then :8080)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logging.New(os.Stderr, "error").Error("config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, cfg.Log.Level)
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := artifact.New(
		artifact.WithDir(cfg.Artifacts.Dir),
		artifact.WithLogger(logger),
		artifact.WithRegisterer(reg),
	)
	svc := predict.NewService(predict.FromStore(store), predict.WithLogger(logger))
	e := api.New(svc, store, reg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.Watch(ctx); err != nil {
		logger.Warn("artifact watch disabled, use SIGHUP after retraining", "error", err)
	}

	// SIGHUP after a retrain makes the next request read the new artifacts.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			store.Reset()
			logger.Info("artifact caches reset")
		}
	}()

	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "artifacts", store.Dir())
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
