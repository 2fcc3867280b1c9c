// Package merge lays a narration track over a stored video, reconciling
// their durations.
package merge

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"scenecast/internal/media/ffprobe"
	"scenecast/internal/pkg/command"
	"scenecast/internal/pkg/errors"
	"scenecast/internal/pkg/logger"
)

// Prober is the subset of ffprobe.Prober the merger needs.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
	AudioDuration(ctx context.Context, path string) (float64, error)
}

// Downloader fetches a stored video by location.
type Downloader interface {
	Download(ctx context.Context, rawLocation string, w io.Writer) error
}

type Options struct {
	Runner     command.Runner
	Prober     Prober
	// Downloader is required for Merge; without one every merge fails
	// with MERGE_DOWNLOAD_FAILED.
	Downloader Downloader
	FFmpeg     string
	// TempDir receives the downloaded video and default outputs.
	TempDir string
	Log     *logger.Logger
}

type Merger struct {
	opts Options
	log  *logger.Logger
}

// Job names the inputs. An empty OutputPath writes a fresh file in TempDir
// that the caller must remove.
type Job struct {
	VideoLocation string
	AudioPath     string
	OutputPath    string
}

type Result struct {
	Plan       Plan
	OutputPath string
}

func New(opts Options) *Merger {
	if opts.Runner == nil {
		opts.Runner = command.Default
	}
	if opts.FFmpeg == "" {
		opts.FFmpeg = "ffmpeg"
	}
	if opts.Prober == nil {
		opts.Prober = ffprobe.New("", opts.Runner)
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Log == nil {
		opts.Log = logger.NewDefault()
	}
	return &Merger{opts: opts, log: opts.Log.WithComponent("merge")}
}

// Merge downloads the video, measures both tracks and writes the combined
// file. The downloaded copy is always removed.
func (m *Merger) Merge(ctx context.Context, job Job) (Result, error) {
	const op = "merge.merge"
	log := m.log.FromContext(ctx)

	if st, err := os.Stat(job.AudioPath); err != nil || st.IsDir() {
		return Result{}, errors.E(op, errors.CodeMergeInvalidAudio, "audio file not found", err).
			WithField("audio", job.AudioPath)
	}
	if err := os.MkdirAll(m.opts.TempDir, 0o755); err != nil {
		return Result{}, errors.E(op, errors.CodeInternal, "create temp dir", err)
	}

	videoPath, err := m.download(ctx, job.VideoLocation)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := os.Remove(videoPath); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove downloaded video", "path", videoPath, "error", err.Error())
		}
	}()

	plan, err := m.measure(ctx, videoPath, job.AudioPath)
	if err != nil {
		return Result{}, err
	}

	out := job.OutputPath
	if out == "" {
		out = filepath.Join(m.opts.TempDir, "merged_"+uuid.NewString()[:8]+".mp4")
	}
	log.Info("merging narration",
		"strategy", plan.Strategy.String(),
		"video_seconds", plan.VideoDuration,
		"audio_seconds", plan.AudioDuration,
	)
	res, err := m.opts.Runner.Run(ctx, "", m.opts.FFmpeg, plan.Args(videoPath, job.AudioPath, out)...)
	if err != nil {
		_ = os.Remove(out)
		return Result{}, errors.E(op, errors.CodeMergeTranscode, "ffmpeg failed", err).WithOutput(res.Stderr)
	}
	if _, err := os.Stat(out); err != nil {
		return Result{}, errors.E(op, errors.CodeMergeTranscode, "ffmpeg produced no output", err).WithOutput(res.Stderr)
	}
	return Result{Plan: plan, OutputPath: out}, nil
}

func (m *Merger) download(ctx context.Context, location string) (string, error) {
	const op = "merge.download"
	if m.opts.Downloader == nil {
		return "", errors.E(op, errors.CodeMergeDownload, "no object store configured", nil).
			WithField("location", location)
	}
	f, err := os.CreateTemp(m.opts.TempDir, "merge-video-*.mp4")
	if err != nil {
		return "", errors.E(op, errors.CodeInternal, "create temp video", err)
	}
	path := f.Name()

	dlErr := m.opts.Downloader.Download(ctx, location, f)
	closeErr := f.Close()
	if dlErr == nil {
		dlErr = closeErr
	}
	if dlErr != nil {
		_ = os.Remove(path)
		return "", errors.E(op, errors.CodeMergeDownload, fmt.Sprintf("download %s", location), dlErr).
			WithField("cause_code", string(errors.GetCode(dlErr)))
	}
	return path, nil
}

// measure probes both inputs concurrently.
func (m *Merger) measure(ctx context.Context, videoPath, audioPath string) (Plan, error) {
	const op = "merge.probe"
	var (
		videoDur, audioDur float64
		rate               string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info, err := m.opts.Prober.Inspect(gctx, videoPath)
		if err != nil {
			return errors.E(op, errors.CodeMergeProbe, "probe video", err)
		}
		videoDur = info.DurationSeconds()
		if videoDur <= 0 {
			return errors.E(op, errors.CodeMergeProbe, "video has no duration", nil)
		}
		rate = info.FrameRate()
		return nil
	})
	g.Go(func() error {
		info, err := m.opts.Prober.Inspect(gctx, audioPath)
		if err != nil {
			return errors.E(op, errors.CodeMergeInvalidAudio, "invalid audio file", err)
		}
		if info.AudioStreamCount() == 0 {
			return errors.E(op, errors.CodeMergeInvalidAudio, "audio file has no audio stream", nil)
		}
		d, err := m.opts.Prober.AudioDuration(gctx, audioPath)
		if err != nil {
			return errors.E(op, errors.CodeMergeProbe, "probe audio duration", err)
		}
		audioDur = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return Plan{}, err
	}
	return NewPlan(videoDur, audioDur, rate), nil
}
