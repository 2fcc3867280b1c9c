package narration

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// MinDuration floors every estimate, in seconds.
	MinDuration = 10.0
	// DefaultAnimation is the duration of a play call without run_time.
	DefaultAnimation = 1.0
	// DefaultWait is the duration of a wait call without an argument.
	DefaultWait = 1.0
	// TextBonus is added once when the scene shows text or formulas.
	TextBonus = 3.0
	// WordsPerMinute is the speaking rate used for compact budgets.
	WordsPerMinute = 110.0
)

var (
	waitCall   = regexp.MustCompile(`self\.wait\(([^)]*)\)`)
	playCall   = regexp.MustCompile(`self\.play\(`)
	runTimeArg = regexp.MustCompile(`run_time\s*=\s*([0-9]*\.?[0-9]+)`)
)

// EstimateDuration guesses how long the scene in code plays, in seconds.
func EstimateDuration(code string) float64 {
	total := 0.0
	for _, m := range waitCall.FindAllStringSubmatch(code, -1) {
		total += waitSeconds(m[1])
	}
	for _, loc := range playCall.FindAllStringIndex(code, -1) {
		total += playSeconds(callArgs(code, loc[1]))
	}
	if hasText(code) {
		total += TextBonus
	}
	return math.Max(total, MinDuration)
}

// hasText reports Text, MathTex or Tex objects, including subclasses such as
// MarkupText.
func hasText(code string) bool {
	return strings.Contains(code, "Text(") || strings.Contains(code, "Tex(")
}

func waitSeconds(arg string) float64 {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return DefaultWait
	}
	if _, v, ok := strings.Cut(arg, "="); ok {
		arg = strings.TrimSpace(v)
	}
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return DefaultWait
	}
	return math.Max(v, 0)
}

func playSeconds(args string) float64 {
	m := runTimeArg.FindStringSubmatch(args)
	if m == nil {
		return DefaultAnimation
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return DefaultAnimation
	}
	return v
}

// callArgs returns the text between the opening paren ending at start and
// its matching close paren, or the rest of code when unbalanced.
func callArgs(code string, start int) string {
	depth := 1
	for i := start; i < len(code); i++ {
		switch code[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return code[start:i]
			}
		}
	}
	return code[start:]
}

// WordBudget is the number of words that fit in seconds of speech.
func WordBudget(seconds float64) int {
	return int(math.Ceil(seconds / 60 * WordsPerMinute))
}
