package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scenecast/internal/artifact"
	v0 "scenecast/internal/contracts/api/v0"
	"scenecast/internal/httpkit"
	"scenecast/internal/models"
	"scenecast/internal/narration"
	"scenecast/internal/pkg/errors"
	"scenecast/internal/pkg/middleware"
	"scenecast/internal/repositories"
	"scenecast/internal/stream"
)

// StreamVideo serves a stored video, honoring a single Range header.
// The location is read from ?url= (or the legacy ?s3_url=).
func (h *Handler) StreamVideo(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("s3_url"))
	}
	if raw == "" {
		return errors.ValidationField("url", "url is required")
	}
	loc, err := artifact.ParseLocation(raw)
	if err != nil {
		return err
	}

	st, err := h.streamer.Prepare(ctx, loc, r.Header.Get("Range"))
	if err != nil {
		if size, ok := stream.UnsatisfiedSize(err); ok {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		}
		return err
	}
	defer st.Close()

	n, err := st.Serve(w)
	h.metrics.AddStreamed(n)
	if err != nil {
		// Headers are already sent; the client sees a truncated body.
		h.log.FromContext(ctx).Warn("stream interrupted",
			"key", loc.Key,
			"written", n,
			"error", err.Error(),
		)
	}
	return nil
}

// PostScript writes a narration script for the video's program without
// voicing it.
func (h *Handler) PostScript(w http.ResponseWriter, r *http.Request) error {
	const op = "handlers.post_script"
	ctx := r.Context()

	video, err := h.ownedVideo(ctx, r)
	if err != nil {
		return err
	}
	var req v0.ScriptRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		return errors.E(op, errors.CodeValidation, "invalid json body", err)
	}
	mode, err := narration.ParseMode(req.Mode)
	if err != nil {
		return err
	}

	script, err := h.scripter.Script(ctx, video.Code, mode)
	if err != nil {
		return err
	}

	httpkit.WriteJSON(w, http.StatusOK, v0.ScriptResponse{
		VideoID:          video.ID,
		Mode:             string(script.Mode),
		Script:           script.Text,
		EstimatedSeconds: script.EstimatedSeconds,
		WordBudget:       script.WordBudget,
	})
	return nil
}

// PostNarration queues a narrate-and-merge job for the video. Without a
// script in the body one is generated first.
func (h *Handler) PostNarration(w http.ResponseWriter, r *http.Request) error {
	const op = "handlers.post_narration"
	ctx := r.Context()

	video, err := h.ownedVideo(ctx, r)
	if err != nil {
		return err
	}
	var req v0.NarrationRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		return errors.E(op, errors.CodeValidation, "invalid json body", err)
	}

	text := strings.TrimSpace(req.Script)
	if text == "" {
		mode, err := narration.ParseMode(req.Mode)
		if err != nil {
			return err
		}
		script, err := h.scripter.Script(ctx, video.Code, mode)
		if err != nil {
			return err
		}
		text = script.Text
	}

	job, err := h.jobs.Create(ctx, video.ID, text)
	if err != nil {
		if errors.Is(err, repositories.ErrVideoNotFound) {
			return videoNotFound(op, video.ID, err)
		}
		return errors.Wrap(err, op, "failed to create job")
	}

	if err := h.queue.Push(ctx, job.ID); err != nil {
		markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if markErr := h.jobs.MarkFailed(markCtx, job.ID, "enqueue failed: "+err.Error()); markErr != nil {
			h.log.FromContext(ctx).Warn("failed to mark unqueued job", "job_id", job.ID, "error", markErr.Error())
		}
		return errors.E(op, errors.CodeUnavailable, "queue push failed", err)
	}
	h.metrics.ObserveNarrationJob(string(models.JobQueued))

	httpkit.WriteJSON(w, http.StatusAccepted, v0.NarrationJobResponse{Job: v0.FromNarrationJob(job)})
	return nil
}

func (h *Handler) GetNarrationJob(w http.ResponseWriter, r *http.Request) error {
	const op = "handlers.get_narration_job"
	ctx := r.Context()

	jobID, err := pathParam(r, "jobId")
	if err != nil {
		return err
	}
	job, err := h.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, repositories.ErrJobNotFound) {
			return errors.E(op, errors.CodeNotFound, "narration job not found", err).WithField("job_id", jobID)
		}
		return errors.Wrap(err, op, "failed to load job")
	}
	if _, err := h.videos.GetOwned(ctx, job.VideoID, middleware.UserFromContext(ctx)); err != nil {
		if errors.Is(err, repositories.ErrVideoNotFound) {
			return errors.E(op, errors.CodeNotFound, "narration job not found", err).WithField("job_id", jobID)
		}
		return errors.Wrap(err, op, "failed to load video")
	}

	httpkit.WriteJSON(w, http.StatusOK, v0.NarrationJobResponse{Job: v0.FromNarrationJob(job)})
	return nil
}

func (h *Handler) ownedVideo(ctx context.Context, r *http.Request) (*models.Video, error) {
	const op = "handlers.video"

	videoID, err := pathParam(r, "videoId")
	if err != nil {
		return nil, err
	}
	video, err := h.videos.GetOwned(ctx, videoID, middleware.UserFromContext(ctx))
	if err != nil {
		if errors.Is(err, repositories.ErrVideoNotFound) {
			return nil, videoNotFound(op, videoID, err)
		}
		return nil, errors.Wrap(err, op, "failed to load video")
	}
	return video, nil
}

func videoNotFound(op, videoID string, err error) error {
	return errors.E(op, errors.CodeNotFound, "video not found", err).WithField("video_id", videoID)
}

// decodeOptionalJSON is DecodeJSON that accepts an empty body.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := httpkit.DecodeJSON(r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
