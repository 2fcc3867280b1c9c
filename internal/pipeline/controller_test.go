package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenecast/internal/artifact"
	"scenecast/internal/codegen"
	apperrors "scenecast/internal/pkg/errors"
	"scenecast/internal/pkg/logger"
	"scenecast/internal/sandbox"
)

const goodReply = "```python\nfrom manim import *\n\nclass Main(Scene):\n    def construct(self):\n        self.wait()\n```\n```text\nAn empty scene.\n```"

type scriptedGenerator struct {
	replies []string
	err     error
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string, s *codegen.Session) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	reply := goodReply
	if i := len(g.prompts) - 1; i < len(g.replies) {
		reply = g.replies[i]
	}
	s.AppendUserTurn(prompt)
	s.AppendAssistantTurn(reply)
	return reply, nil
}

type scriptedRenderer struct {
	errs  []error
	calls int
}

func (r *scriptedRenderer) Render(context.Context, string, time.Duration) (sandbox.Result, error) {
	r.calls++
	if i := r.calls - 1; i < len(r.errs) && r.errs[i] != nil {
		return sandbox.Result{}, r.errs[i]
	}
	return sandbox.Result{Video: []byte("mp4"), DurationSeconds: 3.2, SceneName: "Main"}, nil
}

type memUploader struct {
	owners [][]string
	err    error
}

func (u *memUploader) Upload(_ context.Context, data []byte, owner ...string) (artifact.Location, error) {
	if u.err != nil {
		return artifact.Location{}, u.err
	}
	u.owners = append(u.owners, owner)
	return artifact.Location{Bucket: "videos", Key: strings.Join(owner, "/") + "/video_1.mp4", Version: 1}, nil
}

func (u *memUploader) URL(loc artifact.Location) string { return loc.URL("s3.amazonaws.com") }

type memRecorder struct {
	outcomes []Outcome
	err      error
}

func (r *memRecorder) Record(_ context.Context, o Outcome) (Record, error) {
	if r.err != nil {
		return Record{}, r.err
	}
	r.outcomes = append(r.outcomes, o)
	return Record{AssistantMessageID: "m2", VideoID: "v1"}, nil
}

func execFailure(output string) error {
	return apperrors.New(apperrors.CodeSandboxExecution, "manim exited with code 1").
		WithField(apperrors.FieldExitCode, 1).
		WithOutput(output)
}

type harness struct {
	gen  *scriptedGenerator
	rend *scriptedRenderer
	up   *memUploader
	rec  *memRecorder
	c    *Controller
}

func newHarness(maxAttempts int, renderErrs ...error) *harness {
	h := &harness{
		gen:  &scriptedGenerator{},
		rend: &scriptedRenderer{errs: renderErrs},
		up:   &memUploader{},
		rec:  &memRecorder{},
	}
	h.c = NewController(Options{
		Generator:   h.gen,
		Renderer:    h.rend,
		Uploader:    h.up,
		Recorder:    h.rec,
		MaxAttempts: maxAttempts,
		Log:         logger.NewNop(),
	})
	return h
}

func request() Request {
	return Request{Owner: "ada", ChatID: "c1", Prompt: "draw a circle", Session: codegen.NewSession()}
}

func TestRunSucceedsFirstTime(t *testing.T) {
	h := newHarness(2)
	out, err := h.c.Run(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, "https://videos.s3.amazonaws.com/ada/c1/video_1.mp4?v=1", out.VideoURL)
	assert.Equal(t, "An empty scene.", out.Summary)
	assert.Contains(t, out.Code, "class Main(Scene)")
	assert.Equal(t, 3.2, out.DurationSeconds)
	assert.Equal(t, "v1", out.Record.VideoID)
	assert.Equal(t, [][]string{{"ada", "c1"}}, h.up.owners)
	require.Len(t, h.rec.outcomes, 1)
	assert.Equal(t, "draw a circle", h.rec.outcomes[0].Prompt)
}

func TestRunRetriesOnceThenSucceeds(t *testing.T) {
	h := newHarness(2, execFailure("NameError: name 'Circl' is not defined"))
	req := request()
	out, err := h.c.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 2, h.rend.calls)
	require.Len(t, h.gen.prompts, 2)
	assert.Equal(t, "draw a circle", h.gen.prompts[0])
	assert.True(t, strings.HasPrefix(h.gen.prompts[1], "draw a circle\n\nVideo generation failed: manim exited with code 1"))
	assert.Contains(t, h.gen.prompts[1], "NameError")
	assert.True(t, strings.HasSuffix(h.gen.prompts[1], ". Please fix the code and try again."))
	assert.Equal(t, 4, req.Session.Len())
}

func TestRunExhaustsRetries(t *testing.T) {
	h := newHarness(2, execFailure("first"), execFailure("second traceback"))
	_, err := h.c.Run(context.Background(), request())
	require.Error(t, err)

	assert.Equal(t, apperrors.CodeRetriesExhausted, apperrors.GetCode(err))
	fields := apperrors.GetFields(err)
	assert.Equal(t, 2, fields[apperrors.FieldAttempts])
	assert.Equal(t, "SANDBOX_EXECUTION", fields[apperrors.FieldLastCode])
	assert.Equal(t, "second traceback", fields[apperrors.FieldOutput])
	assert.Equal(t, 2, h.rend.calls)
	assert.Len(t, h.gen.prompts, 2)
	assert.Empty(t, h.up.owners)
	assert.Empty(t, h.rec.outcomes)
}

func TestRunSingleAttemptKeepsRendererCode(t *testing.T) {
	timeout := apperrors.New(apperrors.CodeSandboxTimeout, "render timed out after 5m0s")
	h := newHarness(1, timeout)
	_, err := h.c.Run(context.Background(), request())
	assert.Equal(t, apperrors.CodeSandboxTimeout, apperrors.GetCode(err))
	assert.Equal(t, 1, h.rend.calls)
}

func TestRunFailsFastOnNonRenderErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness)
		code    apperrors.Code
		renders int
	}{
		{
			name:    "generation error",
			setup:   func(h *harness) { h.gen.err = apperrors.New(apperrors.CodeGeneration, "503") },
			code:    apperrors.CodeGeneration,
			renders: 0,
		},
		{
			name:    "no code in reply",
			setup:   func(h *harness) { h.gen.replies = []string{"Sorry, I can't help with that."} },
			code:    apperrors.CodeNoCodeFound,
			renders: 0,
		},
		{
			name: "artifact missing",
			setup: func(h *harness) {
				h.rend.errs = []error{apperrors.New(apperrors.CodeArtifactNotFound, "no video")}
			},
			code:    apperrors.CodeArtifactNotFound,
			renders: 1,
		},
		{
			name: "artifact too large",
			setup: func(h *harness) {
				h.rend.errs = []error{apperrors.New(apperrors.CodeArtifactTooLarge, "too large")}
			},
			code:    apperrors.CodeArtifactTooLarge,
			renders: 1,
		},
		{
			name:    "upload failure",
			setup:   func(h *harness) { h.up.err = apperrors.New(apperrors.CodeCredentialsMissing, "no creds") },
			code:    apperrors.CodeCredentialsMissing,
			renders: 1,
		},
		{
			name:    "record failure",
			setup:   func(h *harness) { h.rec.err = errors.New("db down") },
			code:    apperrors.CodeInternal,
			renders: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(3)
			tt.setup(h)
			_, err := h.c.Run(context.Background(), request())
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.GetCode(err))
			assert.Equal(t, tt.renders, h.rend.calls)
		})
	}
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := newHarness(3, execFailure("x"), execFailure("y"))
	_, err := h.c.Run(ctx, request())
	assert.Equal(t, apperrors.CodeSandboxExecution, apperrors.GetCode(err))
	assert.Equal(t, 1, h.rend.calls)
}

func TestRunRejectsEmptyPrompt(t *testing.T) {
	h := newHarness(2)
	_, err := h.c.Run(context.Background(), Request{Prompt: "  "})
	assert.True(t, apperrors.IsValidation(err))
}

func TestRetryBoundProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	properties.Property("renders never exceed maxAttempts and success needs a clean render", prop.ForAll(
		func(maxAttempts, failures int) bool {
			errs := make([]error, failures)
			for i := range errs {
				errs[i] = execFailure("boom")
			}
			h := newHarness(maxAttempts, errs...)
			out, err := h.c.Run(context.Background(), request())

			if h.rend.calls > maxAttempts {
				return false
			}
			if failures < maxAttempts {
				return err == nil && out.Attempts == failures+1 && h.rend.calls == failures+1
			}
			want := apperrors.CodeRetriesExhausted
			if maxAttempts == 1 {
				want = apperrors.CodeSandboxExecution
			}
			return apperrors.GetCode(err) == want && h.rend.calls == maxAttempts && len(h.rec.outcomes) == 0
		},
		gen.IntRange(1, 5),
		gen.IntRange(0, 6),
	))

	properties.TestingRun(t)
}

func TestRetryPromptPlainError(t *testing.T) {
	got := RetryPrompt("spin a cube", errors.New("exit status 1"))
	assert.Equal(t, "spin a cube\n\nVideo generation failed: exit status 1. Please fix the code and try again.", got)
}
