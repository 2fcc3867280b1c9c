// Package app wires configuration into the components shared by the api,
// worker and scenectl binaries.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"scenecast/internal/artifact"
	"scenecast/internal/codegen"
	"scenecast/internal/config"
	"scenecast/internal/llm"
	"scenecast/internal/media/ffprobe"
	"scenecast/internal/media/merge"
	"scenecast/internal/narration"
	"scenecast/internal/pipeline"
	"scenecast/internal/pkg/command"
	"scenecast/internal/pkg/logger"
	"scenecast/internal/pkg/metrics"
	"scenecast/internal/pkg/shutdown"
	"scenecast/internal/repositories"
	"scenecast/internal/sandbox"
	"scenecast/internal/storage"
	"scenecast/internal/stream"
)

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg config.Logging, service string) *logger.Logger {
	return logger.New(logger.Config{
		Level:       cfg.Level,
		Format:      cfg.Format,
		AddSource:   cfg.AddSource,
		ServiceName: service,
	})
}

// NewMetrics returns metrics on a fresh registry that also carries the Go
// runtime and process collectors.
func NewMetrics() *metrics.Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.New(reg)
}

// Services holds the long-lived clients of one process. Fields for
// requirements that were not requested stay nil.
type Services struct {
	Config  *config.Config
	Log     *logger.Logger
	Metrics *metrics.Metrics
	Runner  command.Runner

	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Store   storage.Store
	Gateway *artifact.Gateway
	LLM     *llm.Client
}

// Connect opens the clients selected by need and registers their cleanup
// with sm. Database connections are verified and migrated.
func Connect(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics, need config.Requirement, sm *shutdown.Manager) (*Services, error) {
	s := &Services{Config: cfg, Log: log, Metrics: m, Runner: command.Default}

	if need&config.NeedDatabase != 0 {
		log.Info("connecting to PostgreSQL")
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		sm.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := repositories.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		log.Info("PostgreSQL connected")
		s.Pool = pool
	}

	if need&config.NeedQueue != 0 {
		log.Info("connecting to Redis")
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Queue.RedisAddr})
		sm.Register("redis", func(ctx context.Context) error {
			return rdb.Close()
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		log.Info("Redis connected")
		s.Redis = rdb
	}

	if need&config.NeedStorage != 0 {
		store, err := storage.NewStore(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		log.Info("storage provider initialized", "provider", store.Provider())
		s.Store = store
		s.Gateway = artifact.NewGateway(artifact.Options{
			Store:  store,
			Bucket: storage.Bucket(cfg.Storage),
			Host:   cfg.Storage.PublicHost,
			Log:    log,
		})
	}

	if need&config.NeedLLM != 0 {
		client, err := llm.NewFromConfig(cfg.LLM, log, m)
		if err != nil {
			return nil, err
		}
		s.LLM = client
	}

	return s, nil
}

func (s *Services) Prober() *ffprobe.Prober {
	return ffprobe.New(s.Config.Media.FFprobeBinary, s.Runner)
}

func (s *Services) Renderer() *sandbox.Renderer {
	sb := s.Config.Sandbox
	return sandbox.NewRenderer(sandbox.Options{
		Runner:           s.Runner,
		Prober:           s.Prober(),
		DockerBinary:     sb.DockerBinary,
		Image:            sb.Image,
		WorkRoot:         sb.WorkRoot,
		QualityFlag:      sb.QualityFlag,
		MaxArtifactBytes: int64(sb.MaxArtifactMB * 1024 * 1024),
		Timeout:          sb.Timeout(),
		Log:              s.Log,
		Metrics:          s.Metrics,
	})
}

// Merger downloads through the gateway. Without a connected store its
// merges fail with MERGE_DOWNLOAD_FAILED.
func (s *Services) Merger() *merge.Merger {
	opts := merge.Options{
		Runner:  s.Runner,
		Prober:  s.Prober(),
		FFmpeg:  s.Config.Media.FFmpegBinary,
		TempDir: s.Config.Media.TempDir,
		Log:     s.Log,
	}
	if s.Gateway != nil {
		opts.Downloader = s.Gateway
	}
	return merge.New(opts)
}

func (s *Services) Streamer() *stream.Streamer {
	return stream.NewStreamer(s.Gateway, s.Log)
}

func (s *Services) Narrator() *narration.Generator {
	return narration.NewGenerator(s.LLM, s.Config.Narration.AudioDir, s.Log)
}

// Controller assembles the generation pipeline. A nil recorder skips
// persistence.
func (s *Services) Controller(rec pipeline.Recorder) *pipeline.Controller {
	return pipeline.NewController(pipeline.Options{
		Generator:     codegen.NewGenerator(s.LLM, s.Log),
		Renderer:      s.Renderer(),
		Uploader:      s.Gateway,
		Recorder:      rec,
		MaxAttempts:   s.Config.Sandbox.MaxAttempts,
		RenderTimeout: s.Config.Sandbox.Timeout(),
		Log:           s.Log,
		Metrics:       s.Metrics,
	})
}

// EnsureDirs creates the working directories named in the configuration.
func EnsureDirs(cfg *config.Config) error {
	for _, dir := range []string{cfg.Sandbox.WorkRoot, cfg.Media.TempDir, cfg.Narration.AudioDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
