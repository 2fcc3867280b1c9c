package codegen

import (
	"regexp"
	"strings"

	"scenecast/internal/pkg/errors"
)

var (
	// The info string runs to the end of the fence line; only its first
	// word names the language.
	pythonBlock = regexp.MustCompile("(?s)```(?i:python3?|py)\\b[^\n]*\n(.*?)```")
	textBlock   = regexp.MustCompile("(?s)```(?i:text)\\b[^\n]*\n(.*?)```")
)

func noCodeFound() error {
	return errors.E("codegen.extract_code", errors.CodeNoCodeFound, "no python code block in model reply", nil)
}

// ExtractCode returns the trimmed body of the first fenced block tagged
// python, python3 or py. A reply without one, or with an empty one, fails
// with NO_CODE_FOUND.
func ExtractCode(reply string) (string, error) {
	m := pythonBlock.FindStringSubmatch(reply)
	if m == nil {
		return "", noCodeFound()
	}
	code := strings.TrimSpace(m[1])
	if code == "" {
		return "", noCodeFound()
	}
	return code, nil
}

// ExtractSummary returns the ```text summary the model is asked to include,
// or "" when there is none.
func ExtractSummary(reply string) string {
	m := textBlock.FindStringSubmatch(reply)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
