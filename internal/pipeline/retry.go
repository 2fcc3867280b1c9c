package pipeline

import (
	"fmt"

	"scenecast/internal/pkg/errors"
)

type State string

const (
	StateGenerating State = "generating"
	StateRendering  State = "rendering"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// RetryState tracks one request's attempts.
type RetryState struct {
	State       State
	Attempt     int
	MaxAttempts int
	LastErr     error
}

func NewRetryState(maxAttempts int) RetryState {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return RetryState{State: StateGenerating, MaxAttempts: maxAttempts}
}

func (s *RetryState) begin() {
	s.Attempt++
	s.State = StateGenerating
}

// CanRetry reports whether err is a render failure with attempts left.
func (s RetryState) CanRetry(err error) bool {
	return errors.IsRenderFailure(err) && s.Attempt < s.MaxAttempts
}

// FinalError is the error reported for a failed run. A render failure after
// more than one attempt becomes RETRIES_EXHAUSTED; anything else keeps its
// own code.
func (s RetryState) FinalError(op string) error {
	if s.LastErr == nil {
		return nil
	}
	if !errors.IsRenderFailure(s.LastErr) || s.Attempt < 2 {
		return s.LastErr
	}
	last := errors.GetFields(s.LastErr)
	e := errors.E(op, errors.CodeRetriesExhausted,
		fmt.Sprintf("render failed after %d attempts", s.Attempt), s.LastErr).
		WithField(errors.FieldAttempts, s.Attempt).
		WithField(errors.FieldLastCode, string(errors.GetCode(s.LastErr)))
	if out, ok := last[errors.FieldOutput].(string); ok {
		e = e.WithOutput(out)
	}
	if code, ok := last[errors.FieldExitCode]; ok {
		e = e.WithField(errors.FieldExitCode, code)
	}
	return e
}
