package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/speedcheck/internal/config"
	"github.com/hamed0406/speedcheck/internal/httpapi"
	"github.com/hamed0406/speedcheck/internal/logging"
	"github.com/hamed0406/speedcheck/internal/metrics"
	"github.com/hamed0406/speedcheck/internal/probe"
	"github.com/hamed0406/speedcheck/internal/repo/memory"
	"github.com/hamed0406/speedcheck/internal/scheduler"
)

// fastFirstRunFraction matches scheduler.FastFirstRunDivisor.
const fastFirstRunFraction = 1.0 / scheduler.FastFirstRunDivisor

func main() {
	cfg := config.FromEnv()
	if cfg.ProbesFile != "" {
		ps, err := config.LoadProbes(cfg.ProbesFile, cfg.Probes)
		if err != nil {
			log.Fatal(err)
		}
		cfg.Probes = ps
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(logging.Options{Name: "speedcheck", Dir: cfg.LogDir, Level: cfg.LogLevel})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if cfg.AuthHalfSet() {
		logger.Warn("basic_auth_disabled", zap.String("reason", "HTTP_USER and HTTP_PASSWORD must both be set"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	store := memory.New(memory.DefaultRetention)
	exec := probe.NewExecutor(cfg.BaseURL, probe.Credentials{Username: cfg.HTTPUser, Password: cfg.HTTPPassword}, reg, logger)
	sched := scheduler.New(logger)

	for _, pc := range cfg.Probes {
		check, err := reg.Check(pc.Name, pc.Throughput)
		if err != nil {
			logger.Fatal("probe_register_error", zap.String("probe", pc.Name), zap.Error(err))
		}
		def := probe.Definition{
			Name:             pc.Name,
			Path:             pc.Path,
			Timeout:          pc.Timeout,
			Interval:         pc.Interval,
			FirstRunFraction: 1,
			Histogram:        check.Latency,
			Gauge:            check.Last,
		}
		if pc.FastFirstRun {
			def.FirstRunFraction = fastFirstRunFraction
		}
		if check.Throughput != nil {
			def.Throughput = check.Throughput
		}
		sched.Add(ctx, probe.New(def, exec, logger, probe.WithResults(store)))
	}

	api := httpapi.NewServer(logger, reg.Handler(), store)
	srv := &http.Server{
		Addr:              cfg.MetricsAddr(),
		Handler:           api.Router(cfg.StatusAPIKeys, cfg.StatusRPM, cfg.StatusBurst),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("metrics_listen", zap.String("addr", srv.Addr), zap.String("target", cfg.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("metrics_server_error", zap.Error(err))
		}
	}
	stop()
	sched.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = multierr.Combine(srv.Shutdown(shutdownCtx), <-serveErr)
	if err != nil {
		logger.Warn("shutdown_error", zap.Error(err))
	}
	logger.Info("speedcheck_stopped")
}
