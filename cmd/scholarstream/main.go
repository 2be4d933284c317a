package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pubview/scholarstream/internal/api"
	"github.com/pubview/scholarstream/internal/config"
	"github.com/pubview/scholarstream/internal/engine"
	"github.com/pubview/scholarstream/internal/logging"
	"github.com/pubview/scholarstream/internal/metrics"
	"github.com/pubview/scholarstream/internal/progress"
	"github.com/pubview/scholarstream/internal/progress/sinks"
	"github.com/pubview/scholarstream/internal/scholar"
	"github.com/pubview/scholarstream/internal/session/headless"
	"github.com/pubview/scholarstream/internal/session/static"
	"github.com/pubview/scholarstream/internal/task"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		logger.Fatal("prometheus sink init failed", zap.Error(err))
	}
	wsSink := sinks.NewWebSocketSink(sinks.WebSocketConfig{
		ThrottleInterval: cfg.Progress.Throttle(),
		WriteTimeout:     cfg.Progress.WriteTimeout(),
	}, logger.Named("ws"))

	hub := progress.NewHub(progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   cfg.Progress.MaxBatchWait(),
		Logger:         logger.Named("progress"),
	}, sinks.NewLogSink(logger.Named("events")), promSink, wsSink)
	publisher := progress.NewHubPublisher(hub, nil)

	var factory scholar.SessionFactory
	if cfg.Session.Headless {
		browserFactory, err := headless.NewFactory(headless.Config{
			MaxParallel:       cfg.Session.MaxParallel,
			UserAgent:         cfg.Session.UserAgent,
			NavigationTimeout: cfg.Session.NavTimeout(),
		})
		if err != nil {
			logger.Fatal("browser factory init failed", zap.Error(err))
		}
		defer browserFactory.Close()
		factory = browserFactory
	} else {
		factory = static.NewFactory(static.Config{
			UserAgent: cfg.Session.UserAgent,
			Timeout:   cfg.Session.NavTimeout(),
		})
	}

	eng := engine.New(factory, publisher, nil, logger.Named("engine"), engine.Config{
		MaxWorkers:  cfg.Engine.MaxWorkers,
		QueueDepth:  cfg.Engine.QueueDepth,
		HistorySize: cfg.Engine.HistorySize,
		Task: task.Config{
			ItemDelay:   cfg.Session.ItemDelay(),
			SettleDelay: cfg.Session.SettleDelay(),
			WaitTimeout: cfg.Session.WaitTimeout(),
		},
	})
	eng.Start(ctx)

	httpMetrics, err := metrics.NewHTTP(registry)
	if err != nil {
		logger.Fatal("http metrics init failed", zap.Error(err))
	}
	apiServer := api.NewServer(eng, wsSink.Handler(), registry, logger.Named("api"), api.Config{
		MetricsMiddleware: httpMetrics.Middleware,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDur())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := eng.Shutdown(shutdownCtx); err != nil {
		logger.Error("engine shutdown error", zap.Error(err))
	}
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Error("progress hub close error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
