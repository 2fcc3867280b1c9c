// Package processor runs one narration job: voice the script, lay it over
// the stored video and replace the video in place.
package processor

import (
	"context"
	"time"

	"scenecast/internal/artifact"
	"scenecast/internal/media/merge"
	"scenecast/internal/models"
	"scenecast/internal/pkg/errors"
	"scenecast/internal/pkg/logger"
	"scenecast/internal/pkg/metrics"
	"scenecast/internal/repositories"
)

// statusTimeout bounds the final status write when the job context is gone.
const statusTimeout = 10 * time.Second

type Jobs interface {
	Get(ctx context.Context, id string) (*models.NarrationJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, msg string) error
}

type Videos interface {
	Get(ctx context.Context, id string) (*models.Video, error)
	UpdateMedia(ctx context.Context, id, videoURL string, durationSeconds int) error
}

type Narrator interface {
	Synthesize(ctx context.Context, script string) (string, error)
}

type Merger interface {
	Merge(ctx context.Context, job merge.Job) (merge.Result, error)
}

type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

type Replacer interface {
	Replace(ctx context.Context, rawLocation, localPath string) (artifact.Location, error)
	URL(loc artifact.Location) string
}

type Deps struct {
	Jobs     Jobs
	Videos   Videos
	Narrator Narrator
	Merger   Merger
	Prober   DurationProber
	Store    Replacer
	Log      *logger.Logger
	Metrics  *metrics.Metrics
}

type Processor struct {
	jobs     Jobs
	videos   Videos
	narrator Narrator
	merger   Merger
	prober   DurationProber
	store    Replacer
	log      *logger.Logger
	metrics  *metrics.Metrics
	cleanup  *Cleanup
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("processor")

	return &Processor{
		jobs:     d.Jobs,
		videos:   d.Videos,
		narrator: d.Narrator,
		merger:   d.Merger,
		prober:   d.Prober,
		store:    d.Store,
		log:      log,
		metrics:  d.Metrics,
		cleanup:  NewCleanup(log),
	}
}

// ProcessJob drives jobID from QUEUED to DONE, or to FAILED with the error
// text. Jobs already in a terminal state are skipped.
func (p *Processor) ProcessJob(ctx context.Context, jobID string) error {
	log := p.log.FromContext(ctx).WithJobID(jobID)

	// 1. Load the job
	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, repositories.ErrJobNotFound) {
			return errors.E("processor.fetch", errors.CodeNotFound, "narration job not found", err)
		}
		return errors.Wrap(err, "processor.fetch", "failed to fetch job")
	}
	if job.Status.Terminal() {
		log.Info("job already finished, skipping", "status", string(job.Status))
		return nil
	}

	// 2. Mark as running
	if err := p.jobs.MarkRunning(ctx, jobID); err != nil {
		return p.failJob(ctx, jobID, errors.Wrap(err, "processor.status", "failed to mark job as running"))
	}
	p.metrics.ObserveNarrationJob(string(models.JobRunning))

	video, err := p.videos.Get(ctx, job.VideoID)
	if err != nil {
		if errors.Is(err, repositories.ErrVideoNotFound) {
			err = errors.E("processor.video", errors.CodeNotFound, "video not found", err).WithField("video_id", job.VideoID)
		}
		return p.failJob(ctx, jobID, errors.Wrap(err, "processor.video", "failed to load video"))
	}

	// 3. Voice the script
	audioPath, err := p.narrator.Synthesize(ctx, job.Script)
	if err != nil {
		return p.failJob(ctx, jobID, errors.Wrap(err, "processor.narrate", "narration failed"))
	}
	defer p.cleanup.Remove(jobID, audioPath)
	log.Debug("narration ready", "audio", audioPath)

	// 4. Merge audio over the stored video
	merged, err := p.merger.Merge(ctx, merge.Job{VideoLocation: video.VideoURL, AudioPath: audioPath})
	if err != nil {
		return p.failJob(ctx, jobID, errors.Wrap(err, "processor.merge", "merge failed"))
	}
	defer p.cleanup.Remove(jobID, merged.OutputPath)
	log.Debug("merge completed",
		"strategy", merged.Plan.Strategy.String(),
		"final_duration", merged.Plan.FinalDuration,
	)

	// 5. Measure the merged file
	duration, err := p.prober.Duration(ctx, merged.OutputPath)
	if err != nil {
		return p.failJob(ctx, jobID, errors.E("processor.probe", errors.CodeMergeProbe, "failed to measure merged video", err))
	}

	// 6. Replace the stored object in place
	loc, err := p.store.Replace(ctx, video.VideoURL, merged.OutputPath)
	if err != nil {
		return p.failJob(ctx, jobID, errors.Wrap(err, "processor.replace", "failed to replace video"))
	}

	// 7. Save the new location and duration
	if err := p.videos.UpdateMedia(ctx, video.ID, p.store.URL(loc), repositories.CeilSeconds(duration)); err != nil {
		return p.failJob(ctx, jobID, errors.Wrap(err, "processor.save", "failed to update video"))
	}

	// 8. Mark as done
	if err := p.jobs.MarkDone(ctx, jobID); err != nil {
		return p.failJob(ctx, jobID, errors.Wrap(err, "processor.status", "failed to mark job as done"))
	}
	p.metrics.ObserveNarrationJob(string(models.JobDone))
	log.Info("narration job done",
		"video_id", video.ID,
		"duration_seconds", duration,
	)
	return nil
}

func (p *Processor) failJob(ctx context.Context, jobID string, cause error) error {
	log := p.log.FromContext(ctx).WithJobID(jobID)

	msg := cause.Error()
	var coded *errors.Error
	if errors.As(cause, &coded) {
		log.Error("job failed",
			"code", string(coded.Code),
			"op", coded.Op,
			"message", coded.Message,
		)
	} else {
		log.Error("job failed", "error", msg)
	}

	statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusTimeout)
	defer cancel()
	if err := p.jobs.MarkFailed(statusCtx, jobID, msg); err != nil {
		log.Warn("failed to record job failure", "error", err.Error())
	}
	p.metrics.ObserveNarrationJob(string(models.JobFailed))

	return cause
}
