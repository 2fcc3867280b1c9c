package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"scenecast/internal/app"
	"scenecast/internal/config"
	"scenecast/internal/httpapi"
	"scenecast/internal/httpapi/handlers"
	"scenecast/internal/pkg/logger"
	"scenecast/internal/pkg/shutdown"
	"scenecast/internal/repositories"
	"scenecast/internal/worker/queue"
)

func main() {
	cfg, err := config.Load(config.NeedAPI)
	if err != nil {
		logger.NewDefault().LogFatal("invalid configuration", err)
	}

	log := app.NewLogger(cfg.Logging, "scenecast-api")
	log.Info("starting scenecast API", "version", "0.1.0")

	if err := app.EnsureDirs(cfg); err != nil {
		log.LogFatal("failed to prepare working directories", err)
	}

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)
	m := app.NewMetrics()

	svc, err := app.Connect(ctx, cfg, log, m, config.NeedAPI, shutdownMgr)
	if err != nil {
		log.LogFatal("failed to initialize services", err)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Handlers: handlers.Deps{
			DB:       svc.Pool,
			Redis:    svc.Redis,
			Storage:  svc.Store,
			Pipeline: svc.Controller(repositories.NewGenerationRecorder(svc.Pool)),
			Chats:    repositories.NewChatRepository(svc.Pool),
			Videos:   repositories.NewVideoRepository(svc.Pool),
			Jobs:     repositories.NewNarrationJobRepository(svc.Pool),
			Queue:    queue.NewRedisQueue(svc.Redis, cfg.Queue.Name),
			Scripter: svc.Narrator(),
			Streamer: svc.Streamer(),
		},
		Log:             log,
		Metrics:         m,
		AllowedOrigins:  cfg.HTTP.CORSAllowedOrigins,
		GenerateTimeout: cfg.HTTP.GenerateTimeout(),
	})

	// WriteTimeout stays unset; generation is bounded by GenerateTimeout.
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening",
			"addr", server.Addr,
			"port", cfg.HTTP.Port,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}
