// Package command runs external programs (docker, ffmpeg, ffprobe) behind a
// small interface so callers can be exercised without the binaries.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined returns stdout followed by stderr.
func (r Result) Combined() string {
	switch {
	case r.Stdout == "":
		return r.Stderr
	case r.Stderr == "":
		return r.Stdout
	default:
		return r.Stdout + "\n" + r.Stderr
	}
}

// Runner executes name with args in dir.
//
// Implementations return *ExitError for a non-zero exit and the context's
// error when ctx ended before the process did.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, dir, name string, args ...string) (Result, error)

func (f RunnerFunc) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	return f(ctx, dir, name, args...)
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Name   string
	Args   []string
	Result Result
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Name, e.Result.ExitCode)
}

// Exec runs real processes via os/exec.
type Exec struct {
	// WaitDelay bounds how long Run waits for output pipes after the process
	// is killed on context expiry. Children holding the pipes open are
	// abandoned after this delay.
	WaitDelay time.Duration
}

// Default is the process runner used outside tests.
var Default Runner = Exec{WaitDelay: 5 * time.Second}

func (e Exec) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = e.WaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	if err == nil {
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, &ExitError{Name: name, Args: args, Result: res}
	}
	return res, fmt.Errorf("run %s %s: %w", name, strings.Join(args, " "), err)
}
