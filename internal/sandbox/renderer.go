// Package sandbox renders Manim programs inside a throwaway container.
package sandbox

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"scenecast/internal/pkg/command"
	"scenecast/internal/pkg/errors"
	"scenecast/internal/pkg/logger"
	"scenecast/internal/pkg/metrics"
)

// QualityTiers lists the manim output directories in probe order.
var QualityTiers = []string{"720p30", "1080p60", "480p15", "1440p60", "2160p60"}

// DurationProber reads a media file's duration in seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

type Options struct {
	Runner       command.Runner
	Prober       DurationProber
	DockerBinary string
	Image        string
	// WorkRoot holds one fresh directory per job.
	WorkRoot    string
	QualityFlag string
	// MaxArtifactBytes rejects larger videos; zero means 10 MiB.
	MaxArtifactBytes int64
	// Timeout is used when Render is called with a zero timeout.
	Timeout time.Duration
	Log     *logger.Logger
	Metrics *metrics.Metrics
}

type Renderer struct {
	opts Options
	log  *logger.Logger
}

// Job describes one render. The renderer owns WorkDir and removes it.
type Job struct {
	ID         string
	SourceCode string
	SceneName  string
	WorkDir    string
	ScriptFile string
	Timeout    time.Duration
}

type Result struct {
	Video           []byte
	DurationSeconds float64
	SceneName       string
}

func NewRenderer(opts Options) *Renderer {
	if opts.Runner == nil {
		opts.Runner = command.Default
	}
	if opts.DockerBinary == "" {
		opts.DockerBinary = "docker"
	}
	if opts.Image == "" {
		opts.Image = "manimcommunity/manim"
	}
	if opts.WorkRoot == "" {
		opts.WorkRoot = filepath.Join(os.TempDir(), "scenecast", "render")
	}
	if opts.QualityFlag == "" {
		opts.QualityFlag = "-qm"
	}
	if opts.MaxArtifactBytes <= 0 {
		opts.MaxArtifactBytes = 10 << 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 300 * time.Second
	}
	if opts.Log == nil {
		opts.Log = logger.NewDefault()
	}
	return &Renderer{opts: opts, log: opts.Log.WithComponent("sandbox")}
}

// Render runs code and returns the produced video. It makes a single attempt;
// a zero timeout uses the configured default.
func (r *Renderer) Render(ctx context.Context, code string, timeout time.Duration) (Result, error) {
	const op = "sandbox.render"
	if !looksLikeScene(code) {
		return Result{}, errors.E(op, errors.CodeNoCodeFound, "code does not define a manim scene", nil)
	}
	if timeout <= 0 {
		timeout = r.opts.Timeout
	}

	job, err := r.prepare(code, timeout)
	if err != nil {
		return Result{}, err
	}
	log := r.log.FromContext(ctx).WithFields(map[string]any{"render_id": job.ID, "scene": job.SceneName})
	defer func() {
		if err := os.RemoveAll(job.WorkDir); err != nil {
			log.Warn("failed to remove work dir", "dir", job.WorkDir, "error", err.Error())
		}
	}()

	start := time.Now()
	res, err := r.run(ctx, job, log)
	outcome := "ok"
	if err != nil {
		outcome = string(errors.GetCode(err))
	}
	r.opts.Metrics.ObserveRender(outcome, time.Since(start))
	return res, err
}

func (r *Renderer) prepare(code string, timeout time.Duration) (Job, error) {
	const op = "sandbox.prepare"
	if err := os.MkdirAll(r.opts.WorkRoot, 0o755); err != nil {
		return Job{}, errors.E(op, errors.CodeInternal, "create work root", err)
	}
	dir, err := os.MkdirTemp(r.opts.WorkRoot, "render-")
	if err != nil {
		return Job{}, errors.E(op, errors.CodeInternal, "create work dir", err)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	id := uuid.NewString()
	scene, matched := SceneName(code)
	if !matched {
		r.log.Warn("no scene class found, using default", "scene", scene)
	}
	job := Job{
		ID:         id,
		SourceCode: code,
		SceneName:  scene,
		WorkDir:    dir,
		ScriptFile: "generated_code_" + id[:8] + ".py",
		Timeout:    timeout,
	}
	if err := os.WriteFile(filepath.Join(dir, job.ScriptFile), []byte(code), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return Job{}, errors.E(op, errors.CodeInternal, "write script", err)
	}
	return job, nil
}

func (r *Renderer) containerName(job Job) string {
	return "scenecast-" + job.ID
}

func (r *Renderer) run(ctx context.Context, job Job, log *logger.Logger) (Result, error) {
	const op = "sandbox.run"

	runCtx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	args := []string{
		"run", "--rm",
		"--name", r.containerName(job),
		"-v", job.WorkDir + ":/manim",
		r.opts.Image,
		"manim", r.opts.QualityFlag, job.ScriptFile, job.SceneName,
	}
	log.Info("starting render", "timeout", job.Timeout.String())
	out, err := r.opts.Runner.Run(runCtx, job.WorkDir, r.opts.DockerBinary, args...)
	if err != nil {
		var exitErr *command.ExitError
		switch {
		case stderrors.Is(err, context.DeadlineExceeded):
			r.killContainer(job, log)
			return Result{}, errors.E(op, errors.CodeSandboxTimeout,
				fmt.Sprintf("render timed out after %s", job.Timeout), err).
				WithOutput(out.Combined())
		case stderrors.Is(err, context.Canceled):
			r.killContainer(job, log)
			return Result{}, errors.E(op, errors.CodeUnavailable, "render canceled", err)
		case stderrors.As(err, &exitErr):
			return Result{}, errors.E(op, errors.CodeSandboxExecution,
				fmt.Sprintf("manim exited with code %d", exitErr.Result.ExitCode), err).
				WithField(errors.FieldExitCode, exitErr.Result.ExitCode).
				WithOutput(out.Combined())
		default:
			return Result{}, errors.E(op, errors.CodeUnavailable, "container runtime unavailable", err)
		}
	}

	video, findErr := r.findVideo(job)
	if findErr != nil {
		return Result{}, findErr.WithOutput(out.Combined())
	}
	st, err := os.Stat(video)
	if err != nil {
		return Result{}, errors.E(op, errors.CodeArtifactNotFound, "stat rendered video", err)
	}
	if st.Size() > r.opts.MaxArtifactBytes {
		return Result{}, errors.E(op, errors.CodeArtifactTooLarge,
			fmt.Sprintf("rendered video is too large: %.2fMB > %.2fMB",
				float64(st.Size())/(1<<20), float64(r.opts.MaxArtifactBytes)/(1<<20)), nil).
			WithField("size_bytes", st.Size())
	}
	data, err := os.ReadFile(video)
	if err != nil {
		return Result{}, errors.E(op, errors.CodeInternal, "read rendered video", err)
	}

	res := Result{Video: data, SceneName: job.SceneName}
	if r.opts.Prober != nil {
		d, err := r.opts.Prober.Duration(ctx, video)
		if err != nil {
			return Result{}, errors.E(op, errors.CodeInternal, "probe rendered video", err)
		}
		res.DurationSeconds = d
	}
	log.Info("render finished", "bytes", len(data), "duration_seconds", res.DurationSeconds)
	return res, nil
}

// findVideo returns the first existing output in tier order.
func (r *Renderer) findVideo(job Job) (string, *errors.Error) {
	base := strings.TrimSuffix(job.ScriptFile, ".py")
	videos := filepath.Join(job.WorkDir, "media", "videos", base)
	for _, tier := range QualityTiers {
		p := filepath.Join(videos, tier, job.SceneName+".mp4")
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}

	var found []string
	_ = filepath.WalkDir(videos, func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasSuffix(p, ".mp4") {
			rel, _ := filepath.Rel(videos, p)
			found = append(found, rel)
		}
		return nil
	})
	e := errors.E("sandbox.find_video", errors.CodeArtifactNotFound,
		fmt.Sprintf("rendered video not found for scene %q", job.SceneName), nil)
	if len(found) > 0 {
		e = e.WithField("available", found)
	}
	return "", e
}

// killContainer removes a container left behind by an abandoned run.
func (r *Renderer) killContainer(job Job, log *logger.Logger) {
	name := r.containerName(job)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := r.opts.Runner.Run(ctx, "", r.opts.DockerBinary, "rm", "-f", name); err != nil {
			log.Debug("container cleanup failed", "container", name, "error", err.Error())
		}
	}()
}
