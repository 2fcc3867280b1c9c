// Package narration writes and voices narration scripts for rendered scenes.
package narration

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"scenecast/internal/llm"
	"scenecast/internal/pkg/errors"
	"scenecast/internal/pkg/logger"
)

// Model is the language and speech model used for narration.
type Model interface {
	Complete(ctx context.Context, msgs []llm.Message) (string, error)
	Speak(ctx context.Context, text string, w io.Writer) (int64, error)
}

type Generator struct {
	model    Model
	audioDir string
	log      *logger.Logger
}

// Script is a generated narration with the estimate it was written for.
type Script struct {
	Text             string  `json:"script"`
	Mode             Mode    `json:"mode"`
	EstimatedSeconds float64 `json:"estimated_seconds"`
	WordBudget       int     `json:"word_budget,omitempty"`
}

func NewGenerator(model Model, audioDir string, log *logger.Logger) *Generator {
	if audioDir == "" {
		audioDir = filepath.Join(os.TempDir(), "scenecast", "audio")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Generator{model: model, audioDir: audioDir, log: log.WithComponent("narration")}
}

// Script asks the model to narrate code.
func (g *Generator) Script(ctx context.Context, code string, mode Mode) (Script, error) {
	const op = "narration.script"
	if strings.TrimSpace(code) == "" {
		return Script{}, errors.ValidationField("code", "code is empty")
	}

	est := EstimateDuration(code)
	text, err := g.model.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt(mode, est)},
		{Role: llm.RoleUser, Content: code},
	})
	if err != nil {
		return Script{}, errors.E(op, errors.CodeNarration, "failed to generate narration script", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Script{}, errors.E(op, errors.CodeNarration, "model returned an empty script", nil)
	}

	s := Script{Text: text, Mode: mode, EstimatedSeconds: est}
	if mode == ModeCompact {
		s.WordBudget = WordBudget(est)
	}
	g.log.FromContext(ctx).Info("narration script generated",
		"mode", string(mode),
		"estimated_seconds", est,
		"words", len(strings.Fields(text)),
	)
	return s, nil
}

// Synthesize voices script into a new narration_<id>.mp3 under the audio
// dir and returns its path. The caller owns the file.
func (g *Generator) Synthesize(ctx context.Context, script string) (string, error) {
	const op = "narration.synthesize"
	if strings.TrimSpace(script) == "" {
		return "", errors.ValidationField("script", "script is empty")
	}
	if err := os.MkdirAll(g.audioDir, 0o755); err != nil {
		return "", errors.E(op, errors.CodeInternal, "create audio dir", err)
	}

	path := filepath.Join(g.audioDir, "narration_"+uuid.NewString()+".mp3")
	f, err := os.Create(path)
	if err != nil {
		return "", errors.E(op, errors.CodeInternal, "create audio file", err)
	}
	n, err := g.model.Speak(ctx, script, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n == 0 {
		err = llm.ErrEmptyAudio
	}
	if err != nil {
		_ = os.Remove(path)
		return "", errors.E(op, errors.CodeNarration, "failed to synthesize narration", err)
	}

	g.log.FromContext(ctx).Info("narration synthesized", "path", path, "bytes", n)
	return path, nil
}
