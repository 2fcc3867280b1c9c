package narration

import (
	"fmt"
	"strings"

	"scenecast/internal/pkg/errors"
)

type Mode string

const (
	ModeCompact  Mode = "compact"
	ModeDetailed Mode = "detailed"
)

// ParseMode accepts compact or detailed; blank means compact.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCompact:
		return ModeCompact, nil
	case ModeDetailed:
		return ModeDetailed, nil
	}
	return "", errors.ValidationField("mode", fmt.Sprintf("unknown narration mode %q", s))
}

const scriptRules = "Write plain narration text only: no headings, no markdown, no stage directions, " +
	"no code. Refer to what appears on screen in the order it appears."

// SystemPrompt builds the instruction for narrating a scene estimated to
// play for estimate seconds.
func SystemPrompt(mode Mode, estimate float64) string {
	if mode == ModeDetailed {
		return "You are a narrator for short educational animations. " +
			"Given the Manim code of a scene, explain the concepts it illustrates in depth, " +
			"adding context and intuition beyond what is drawn. " + scriptRules
	}
	return fmt.Sprintf("You are a narrator for short educational animations. "+
		"Given the Manim code of a scene, write a narration that can be spoken in about %.0f seconds. "+
		"Use at most %d words. "+scriptRules, estimate, WordBudget(estimate))
}
