// Package pipeline drives a chat request from prompt to stored video,
// regenerating the program when a render fails.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scenecast/internal/artifact"
	"scenecast/internal/codegen"
	"scenecast/internal/pkg/errors"
	"scenecast/internal/pkg/logger"
	"scenecast/internal/pkg/metrics"
	"scenecast/internal/sandbox"
)

// DefaultMaxAttempts is the number of renders tried per request.
const DefaultMaxAttempts = 2

// retryDetailBytes caps the renderer output quoted back to the model.
const retryDetailBytes = 1500

type Generator interface {
	Generate(ctx context.Context, prompt string, session *codegen.Session) (string, error)
}

type Renderer interface {
	Render(ctx context.Context, code string, timeout time.Duration) (sandbox.Result, error)
}

type Uploader interface {
	Upload(ctx context.Context, data []byte, owner ...string) (artifact.Location, error)
	URL(loc artifact.Location) string
}

// Recorder persists a successful generation.
type Recorder interface {
	Record(ctx context.Context, o Outcome) (Record, error)
}

// Record holds the identifiers assigned by a Recorder.
type Record struct {
	UserMessageID      string
	AssistantMessageID string
	VideoID            string
}

type Request struct {
	Owner   string
	ChatID  string
	Prompt  string
	Session *codegen.Session
}

// Outcome describes a successful run.
type Outcome struct {
	Owner           string
	ChatID          string
	Prompt          string
	Reply           string
	Code            string
	Summary         string
	Location        artifact.Location
	VideoURL        string
	DurationSeconds float64
	Attempts        int
	Record          Record
}

type Options struct {
	Generator     Generator
	Renderer      Renderer
	Uploader      Uploader
	Recorder      Recorder
	MaxAttempts   int
	RenderTimeout time.Duration
	Log           *logger.Logger
	Metrics       *metrics.Metrics
}

type Controller struct {
	opts Options
	log  *logger.Logger
}

func NewController(opts Options) *Controller {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Log == nil {
		opts.Log = logger.NewDefault()
	}
	return &Controller{opts: opts, log: opts.Log.WithComponent("pipeline")}
}

// Run generates, renders, stores and records. Attempts are sequential; only
// failures of the generated program itself trigger another attempt.
func (c *Controller) Run(ctx context.Context, req Request) (Outcome, error) {
	const op = "pipeline.run"
	if strings.TrimSpace(req.Prompt) == "" {
		return Outcome{}, errors.ValidationField("prompt", "prompt is empty")
	}
	if req.Session == nil {
		req.Session = codegen.NewSession()
	}
	log := c.log.FromContext(ctx)

	state := NewRetryState(c.opts.MaxAttempts)
	prompt := req.Prompt
	for {
		state.begin()
		log.Debug("attempt started", "attempt", state.Attempt, "max_attempts", state.MaxAttempts)

		reply, code, res, err := c.attempt(ctx, prompt, req.Session, &state)
		if err == nil {
			state.State = StateSucceeded
			return c.succeed(ctx, req, state, reply, code, res)
		}

		state.LastErr = err
		if !state.CanRetry(err) || ctx.Err() != nil {
			state.State = StateFailed
			final := state.FinalError(op)
			log.Warn("generation failed",
				"attempts", state.Attempt,
				"code", string(errors.GetCode(final)),
				"error", err.Error(),
			)
			c.opts.Metrics.ObserveGeneration(string(errors.GetCode(final)), state.Attempt)
			return Outcome{}, final
		}

		log.Info("render failed, regenerating",
			"attempt", state.Attempt,
			"code", string(errors.GetCode(err)),
		)
		prompt = RetryPrompt(req.Prompt, err)
	}
}

func (c *Controller) attempt(ctx context.Context, prompt string, session *codegen.Session, state *RetryState) (string, string, sandbox.Result, error) {
	reply, err := c.opts.Generator.Generate(ctx, prompt, session)
	if err != nil {
		return "", "", sandbox.Result{}, err
	}
	code, err := codegen.ExtractCode(reply)
	if err != nil {
		return reply, "", sandbox.Result{}, err
	}

	state.State = StateRendering
	res, err := c.opts.Renderer.Render(ctx, code, c.opts.RenderTimeout)
	return reply, code, res, err
}

func (c *Controller) succeed(ctx context.Context, req Request, state RetryState, reply, code string, res sandbox.Result) (Outcome, error) {
	const op = "pipeline.succeed"

	loc, err := c.opts.Uploader.Upload(ctx, res.Video, req.Owner, req.ChatID)
	if err != nil {
		c.opts.Metrics.ObserveGeneration(string(errors.GetCode(err)), state.Attempt)
		return Outcome{}, errors.Wrap(err, op, "store rendered video")
	}

	out := Outcome{
		Owner:           req.Owner,
		ChatID:          req.ChatID,
		Prompt:          req.Prompt,
		Reply:           reply,
		Code:            code,
		Summary:         codegen.ExtractSummary(reply),
		Location:        loc,
		VideoURL:        c.opts.Uploader.URL(loc),
		DurationSeconds: res.DurationSeconds,
		Attempts:        state.Attempt,
	}
	if c.opts.Recorder != nil {
		rec, err := c.opts.Recorder.Record(ctx, out)
		if err != nil {
			c.opts.Metrics.ObserveGeneration(string(errors.GetCode(err)), state.Attempt)
			return Outcome{}, errors.Wrap(err, op, "record generation")
		}
		out.Record = rec
	}

	c.opts.Metrics.ObserveGeneration("ok", state.Attempt)
	c.log.FromContext(ctx).Info("generation succeeded",
		"attempts", state.Attempt,
		"video_url", out.VideoURL,
		"duration_seconds", out.DurationSeconds,
	)
	return out, nil
}

// RetryPrompt restates the original request with the render failure.
func RetryPrompt(original string, renderErr error) string {
	return fmt.Sprintf("%s\n\nVideo generation failed: %s. Please fix the code and try again.",
		original, failureDetail(renderErr))
}

func failureDetail(err error) string {
	var coded *errors.Error
	if !errors.As(err, &coded) {
		return err.Error()
	}
	detail := coded.Message
	if out, ok := errors.GetFields(err)[errors.FieldOutput].(string); ok && strings.TrimSpace(out) != "" {
		detail += "\n" + errors.Tail(strings.TrimSpace(out), retryDetailBytes)
	}
	return detail
}
