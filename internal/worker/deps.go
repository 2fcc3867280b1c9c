package worker

import (
	"context"
	"time"

	"scenecast/internal/pkg/logger"
)

// Queue is the job id source the worker drains.
type Queue interface {
	Pop(ctx context.Context) (string, error)
}

// JobProcessor handles one job id.
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string) error
}

type Deps struct {
	Queue     Queue
	Processor JobProcessor
	Log       *logger.Logger
	// PopTimeout bounds each blocking pop. Defaults to 30s.
	PopTimeout time.Duration
	// RetryDelay is the pause after a failed pop. Defaults to 1s.
	RetryDelay time.Duration
}
