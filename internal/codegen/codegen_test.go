package codegen

import (
	"context"
	"errors"
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

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"plain", "```python\nprint(1)\n```", "print(1)"},
		{"surrounding prose", "Here you go:\n```python\nfrom manim import *\n```\nEnjoy", "from manim import *"},
		{"first block wins", "```python\na = 1\n```\n```python\nb = 2\n```", "a = 1"},
		{"crlf", "```python\r\nx = 1\r\n```", "x = 1"},
		{"python3 tag", "```python3\nprint(1)\n```", "print(1)"},
		{"py tag", "```py\nprint(2)\n```", "print(2)"},
		{"tag case", "```Python\nprint(3)\n```", "print(3)"},
		{"info string attributes", "```python title=\"scene.py\" {linenos}\nx = 1\n```", "x = 1"},
		{"trailing spaces after tag", "```python   \nx = 1\n```", "x = 1"},
		{"skips other languages", "```pythonic\nnope\n```\n```python\nyes = 1\n```", "yes = 1"},
		{"with summary", "```python\nclass Main(Scene): pass\n``````text\nA scene.\n```", "class Main(Scene): pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractCode(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractCodeMissing(t *testing.T) {
	for _, reply := range []string{
		"",
		"no fences at all",
		"```\nuntagged = True\n```",
		"```js\nconsole.log(1)\n```",
		"```pythonic\nx\n```",
		"```python2x\nx\n```",
		"```python x = 1```",
		"```python\n   \n```",
		"```python\nunterminated",
	} {
		_, err := ExtractCode(reply)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeNoCodeFound), reply)
	}
}

func TestExtractCodeProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("fenced body round-trips trimmed", prop.ForAll(
		func(prefix, body string) bool {
			if strings.TrimSpace(body) == "" {
				return true
			}
			got, err := ExtractCode(prefix + "\n```python\n" + body + "\n```\ntrailer")
			return err == nil && got == strings.TrimSpace(body)
		},
		gen.AlphaString(),
		gen.AnyString().SuchThat(func(s string) bool { return !strings.Contains(s, "`") }),
	))

	properties.TestingRun(t)
}

func TestExtractSummary(t *testing.T) {
	assert.Equal(t, "A scene.", ExtractSummary("```python\nx\n```\n```text\nA scene.\n```"))
	assert.Empty(t, ExtractSummary("```python\nx\n```"))
	assert.Empty(t, ExtractSummary("```textual\nx\n```"))
}

func TestRenderPutsPreambleFirst(t *testing.T) {
	s := NewSession()
	s.AppendUserTurn("draw a dot")
	s.AppendAssistantTurn("```python\nclass Main(Scene): pass\n```")

	out := Render(s.Turns(), Preamble())
	require.Len(t, out, len(Preamble())+2)
	assert.Equal(t, RoleSystem, out[0].Role)
	assert.Equal(t, "draw a dot", out[len(out)-2].Text)
	assert.Equal(t, RoleAssistant, out[len(out)-1].Role)

	// pure: same input, same output, inputs untouched
	assert.Equal(t, out, Render(s.Turns(), Preamble()))
	assert.Equal(t, 2, s.Len())
}

func TestPreambleExamplesAreExtractable(t *testing.T) {
	p := Preamble()
	for _, turn := range p {
		if turn.Role != RoleAssistant {
			continue
		}
		code, err := ExtractCode(turn.Text)
		require.NoError(t, err)
		assert.Contains(t, code, "class Main(Scene)")
	}
	p[0].Text = "mutated"
	assert.NotEqual(t, "mutated", Preamble()[0].Text)
}

func TestSessionEncoding(t *testing.T) {
	s := NewSession()
	s.AppendUserTurn("hello")
	s.AppendAssistantTurn("world")

	data, err := EncodeSession(s)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"role":"user","content":"hello"},{"role":"assistant","content":"world"}]`, string(data))

	back, err := DecodeSession(data)
	require.NoError(t, err)
	assert.Equal(t, s.Turns(), back.Turns())

	empty, err := EncodeSession(NewSession())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

func TestDecodeSessionFallsBackToEmpty(t *testing.T) {
	for _, raw := range []string{"{not json", `[{"role":"robot","content":"x"}]`, `{"role":"user"}`} {
		s, err := DecodeSession([]byte(raw))
		assert.Error(t, err, raw)
		require.NotNil(t, s)
		assert.Zero(t, s.Len())
	}

	s, err := DecodeSession([]byte("  "))
	require.NoError(t, err)
	assert.Zero(t, s.Len())
}

type fakeCompleter struct {
	reply string
	err   error
	got   []llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	f.got = msgs
	return f.reply, f.err
}

func TestGenerateAppendsPairOnSuccess(t *testing.T) {
	fc := &fakeCompleter{reply: "```python\nclass Main(Scene): pass\n```"}
	g := NewGenerator(fc, logger.NewNop())
	s := NewSession()

	reply, err := g.Generate(context.Background(), "draw a square", s)
	require.NoError(t, err)
	assert.Equal(t, fc.reply, reply)

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, Turn{Role: RoleUser, Text: "draw a square"}, turns[0])
	assert.Equal(t, RoleAssistant, turns[1].Role)

	require.Len(t, fc.got, len(Preamble())+1)
	assert.Equal(t, llm.Message{Role: "user", Content: "draw a square"}, fc.got[len(fc.got)-1])
}

func TestGenerateLeavesSessionOnFailure(t *testing.T) {
	g := NewGenerator(&fakeCompleter{err: errors.New("503")}, logger.NewNop())
	s := NewSession(Turn{Role: RoleUser, Text: "a"}, Turn{Role: RoleAssistant, Text: "b"})

	_, err := g.Generate(context.Background(), "c", s)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGeneration))
	assert.Equal(t, 2, s.Len())
}

func TestTurnsAlternate(t *testing.T) {
	g := NewGenerator(&fakeCompleter{reply: "ok"}, logger.NewNop())
	s := NewSession()
	for _, p := range []string{"one", "two", "three"} {
		_, err := g.Generate(context.Background(), p, s)
		require.NoError(t, err)
	}
	for i, turn := range s.Turns() {
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		assert.Equal(t, want, turn.Role)
	}
}
