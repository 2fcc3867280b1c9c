package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"scenecast/internal/app"
	"scenecast/internal/config"
	"scenecast/internal/pkg/logger"
	"scenecast/internal/pkg/shutdown"
	"scenecast/internal/repositories"
	"scenecast/internal/worker"
	"scenecast/internal/worker/processor"
	"scenecast/internal/worker/queue"
)

func main() {
	cfg, err := config.Load(config.NeedWorker)
	if err != nil {
		logger.NewDefault().LogFatal("invalid configuration", err)
	}

	log := app.NewLogger(cfg.Logging, "scenecast-worker")
	log.Info("starting scenecast worker", "queue", cfg.Queue.Name)

	if err := app.EnsureDirs(cfg); err != nil {
		log.LogFatal("failed to prepare working directories", err)
	}

	shutdownMgr := shutdown.NewManager(log, 30*time.Second)
	m := app.NewMetrics()

	svc, err := app.Connect(shutdownMgr.Context(), cfg, log, m, config.NeedWorker, shutdownMgr)
	if err != nil {
		log.LogFatal("failed to initialize services", err)
	}

	p := processor.New(processor.Deps{
		Jobs:     repositories.NewNarrationJobRepository(svc.Pool),
		Videos:   repositories.NewVideoRepository(svc.Pool),
		Narrator: svc.Narrator(),
		Merger:   svc.Merger(),
		Prober:   svc.Prober(),
		Store:    svc.Gateway,
		Log:      log,
		Metrics:  m,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	metricsServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.HTTP.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	shutdownMgr.Register("metrics-server", func(ctx context.Context) error {
		return metricsServer.Shutdown(ctx)
	})
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server failed", "error", err.Error())
		}
	}()

	done := make(chan struct{})
	shutdownMgr.Register("worker-loop", func(ctx context.Context) error {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	go func() {
		defer close(done)
		err := worker.Run(shutdownMgr.Context(), worker.Deps{
			Queue:     queue.NewRedisQueue(svc.Redis, cfg.Queue.Name),
			Processor: p,
			Log:       log,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("worker stopped", "error", err.Error())
		}
	}()

	shutdownMgr.Wait()
}
