package narration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenecast/internal/llm"
	apperrors "scenecast/internal/pkg/errors"
	"scenecast/internal/pkg/logger"
)

const triangleScene = `from manim import *

class Main(Scene):
    def construct(self):
        triangle = Triangle(color=RED)
        self.play(Create(triangle))
        self.play(Rotate(triangle, angle=PI/2), run_time=3)
        self.wait()
        self.wait(2.5)
        self.play(Write(MathTex("a^2+b^2=c^2")))
        self.wait(4)
`

func TestEstimateDuration(t *testing.T) {
	// waits 1 + 2.5 + 4, plays 1 + 3 + 1, text bonus 3
	assert.InDelta(t, 15.5, EstimateDuration(triangleScene), 1e-9)
}

func TestEstimateDurationFloor(t *testing.T) {
	assert.Equal(t, MinDuration, EstimateDuration(""))
	assert.Equal(t, MinDuration, EstimateDuration("self.play(FadeIn(dot))"))
	assert.Equal(t, MinDuration, EstimateDuration("self.wait(-30)"))
}

func TestEstimateDurationDetails(t *testing.T) {
	tests := []struct {
		code string
		want float64
	}{
		{"self.wait(duration=12)", 12},
		{"self.wait(pause)", MinDuration},
		{"self.play(A(), B(c=(1, 2)), run_time=11)", 11},
		{"self.play(x, run_time = 0.5)\n" + strings.Repeat("self.wait(1)\n", 10), 10.5},
		{"self.wait(8)\nt = Text(\"hi\")", 11},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, EstimateDuration(tt.code), 1e-9, tt.code)
	}
}

func TestEstimateMonotonicProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("adding waits or plays never shortens the estimate", prop.ForAll(
		func(waits []float64, extra float64, play bool) bool {
			var b strings.Builder
			for _, w := range waits {
				fmt.Fprintf(&b, "self.wait(%.2f)\n", w)
			}
			before := EstimateDuration(b.String())
			if play {
				fmt.Fprintf(&b, "self.play(FadeIn(x), run_time=%.2f)\n", extra)
			} else {
				fmt.Fprintf(&b, "self.wait(%.2f)\n", extra)
			}
			after := EstimateDuration(b.String())
			return after >= before && after >= MinDuration
		},
		gen.SliceOf(gen.Float64Range(0, 30)),
		gen.Float64Range(0, 30),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestWordBudget(t *testing.T) {
	assert.Equal(t, 19, WordBudget(10))
	assert.Equal(t, 110, WordBudget(60))
	assert.Equal(t, 0, WordBudget(0))
}

func TestSystemPrompt(t *testing.T) {
	compact := SystemPrompt(ModeCompact, 30)
	assert.Contains(t, compact, "at most 55 words")
	assert.Contains(t, compact, "30 seconds")

	detailed := SystemPrompt(ModeDetailed, 30)
	assert.NotContains(t, detailed, "words")
	assert.Contains(t, detailed, "in depth")
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeCompact, "compact": ModeCompact, " Detailed ": ModeDetailed} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("verbose")
	assert.True(t, apperrors.IsValidation(err))
}

type fakeModel struct {
	script   string
	chatErr  error
	audio    string
	speakErr error
	got      []llm.Message
}

func (f *fakeModel) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	f.got = msgs
	return f.script, f.chatErr
}

func (f *fakeModel) Speak(_ context.Context, _ string, w io.Writer) (int64, error) {
	if f.speakErr != nil {
		return 0, f.speakErr
	}
	n, err := io.WriteString(w, f.audio)
	return int64(n), err
}

func TestScript(t *testing.T) {
	fm := &fakeModel{script: "  A triangle appears and turns.  "}
	g := NewGenerator(fm, t.TempDir(), logger.NewNop())

	s, err := g.Script(context.Background(), triangleScene, ModeCompact)
	require.NoError(t, err)
	assert.Equal(t, "A triangle appears and turns.", s.Text)
	assert.InDelta(t, 15.5, s.EstimatedSeconds, 1e-9)
	assert.Equal(t, WordBudget(15.5), s.WordBudget)

	require.Len(t, fm.got, 2)
	assert.Equal(t, llm.RoleSystem, fm.got[0].Role)
	assert.Equal(t, triangleScene, fm.got[1].Content)
}

func TestScriptErrors(t *testing.T) {
	g := NewGenerator(&fakeModel{script: "   "}, t.TempDir(), logger.NewNop())
	_, err := g.Script(context.Background(), triangleScene, ModeDetailed)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNarration))

	g = NewGenerator(&fakeModel{chatErr: errors.New("quota")}, t.TempDir(), logger.NewNop())
	_, err = g.Script(context.Background(), triangleScene, ModeDetailed)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNarration))

	_, err = g.Script(context.Background(), " ", ModeDetailed)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSynthesize(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audio")
	g := NewGenerator(&fakeModel{audio: "ID3-bytes"}, dir, logger.NewNop())

	p1, err := g.Synthesize(context.Background(), "Hello there.")
	require.NoError(t, err)
	p2, err := g.Synthesize(context.Background(), "Hello there.")
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2)
	assert.Equal(t, dir, filepath.Dir(p1))
	assert.Regexp(t, `narration_[0-9a-f-]{36}\.mp3$`, p1)
	data, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, "ID3-bytes", string(data))
}

func TestSynthesizeFailureLeavesNoFile(t *testing.T) {
	for name, fm := range map[string]*fakeModel{
		"api error":   {speakErr: errors.New("401")},
		"empty audio": {audio: ""},
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			g := NewGenerator(fm, dir, logger.NewNop())
			_, err := g.Synthesize(context.Background(), "Hello.")
			assert.True(t, apperrors.IsCode(err, apperrors.CodeNarration))

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}
