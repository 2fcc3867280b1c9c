// Package handlers implements the scenecast HTTP endpoints.
package handlers

import (
	"context"

	"github.com/redis/go-redis/v9"

	"scenecast/internal/artifact"
	"scenecast/internal/models"
	"scenecast/internal/narration"
	"scenecast/internal/pipeline"
	"scenecast/internal/pkg/logger"
	"scenecast/internal/pkg/metrics"
	"scenecast/internal/stream"
)

type DBPinger interface {
	Ping(ctx context.Context) error
}

type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

type ProviderNamer interface {
	Provider() string
}

type Pipeline interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Outcome, error)
}

type Chats interface {
	Get(ctx context.Context, id string) (*models.Chat, error)
	GetOwned(ctx context.Context, id, owner string) (*models.Chat, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
}

type Videos interface {
	GetOwned(ctx context.Context, id, owner string) (*models.Video, error)
}

type Jobs interface {
	Create(ctx context.Context, videoID, script string) (*models.NarrationJob, error)
	Get(ctx context.Context, id string) (*models.NarrationJob, error)
	MarkFailed(ctx context.Context, id, msg string) error
}

type Enqueuer interface {
	Push(ctx context.Context, jobID string) error
}

type Scripter interface {
	Script(ctx context.Context, code string, mode narration.Mode) (narration.Script, error)
}

type Streamer interface {
	Prepare(ctx context.Context, loc artifact.Location, rangeHeader string) (*stream.Stream, error)
}

type Deps struct {
	DB       DBPinger
	Redis    RedisPinger
	Storage  ProviderNamer
	Pipeline Pipeline
	Chats    Chats
	Videos   Videos
	Jobs     Jobs
	Queue    Enqueuer
	Scripter Scripter
	Streamer Streamer
	Log      *logger.Logger
	Metrics  *metrics.Metrics
}

type Handler struct {
	db       DBPinger
	redis    RedisPinger
	storage  ProviderNamer
	pipeline Pipeline
	chats    Chats
	videos   Videos
	jobs     Jobs
	queue    Enqueuer
	scripter Scripter
	streamer Streamer
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		db:       d.DB,
		redis:    d.Redis,
		storage:  d.Storage,
		pipeline: d.Pipeline,
		chats:    d.Chats,
		videos:   d.Videos,
		jobs:     d.Jobs,
		queue:    d.Queue,
		scripter: d.Scripter,
		streamer: d.Streamer,
		log:      log.WithComponent("http"),
		metrics:  d.Metrics,
	}
}
