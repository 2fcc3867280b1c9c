// Package errors provides the coded error type used across scenecast.
// Errors carry a Code for classification, the failing Op, structured Fields
// (process output, attempt counts, object keys) and the stack at creation.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"unicode/utf8"
)

// Code classifies an error. Codes are stable and surface in API responses.
type Code string

// Generic codes.
const (
	CodeInternal        Code = "INTERNAL_ERROR"
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeTimeout         Code = "TIMEOUT"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeBadRequest      Code = "BAD_REQUEST"
	CodeRangeNotSatisfy Code = "RANGE_NOT_SATISFIABLE"
)

// Pipeline codes.
const (
	CodeGeneration       Code = "GENERATION_ERROR"
	CodeNoCodeFound      Code = "NO_CODE_FOUND"
	CodeSandboxTimeout   Code = "SANDBOX_TIMEOUT"
	CodeSandboxExecution Code = "SANDBOX_EXECUTION"
	CodeArtifactNotFound Code = "ARTIFACT_NOT_FOUND"
	CodeArtifactTooLarge Code = "ARTIFACT_TOO_LARGE"
	CodeRetriesExhausted Code = "RETRIES_EXHAUSTED"
	CodeNarration        Code = "NARRATION_ERROR"
)

// Merge and store codes.
const (
	CodeMergeDownload      Code = "MERGE_DOWNLOAD_FAILED"
	CodeMergeInvalidAudio  Code = "MERGE_INVALID_AUDIO"
	CodeMergeProbe         Code = "MERGE_PROBE_FAILED"
	CodeMergeTranscode     Code = "MERGE_TRANSCODE_FAILED"
	CodeCredentialsMissing Code = "CREDENTIALS_MISSING"
	CodeUploadFailed       Code = "UPLOAD_FAILED"
)

// Field keys shared by producers and the HTTP error writer.
const (
	FieldOutput   = "output"
	FieldExitCode = "exit_code"
	FieldAttempts = "attempts"
	FieldLastCode = "last_code"
)

// Error is the coded error type.
type Error struct {
	Code    Code
	Message string
	// Op names the failing operation, e.g. "sandbox.render".
	Op     string
	Err    error
	Fields map[string]any
	Stack  []Frame
}

// Frame is a single captured stack frame.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString("[")
		b.WriteString(string(e.Code))
		b.WriteString("] ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithField sets a single field and returns e.
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// WithFields merges fields into e.
func (e *Error) WithFields(fields map[string]any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		e.Fields[k] = v
	}
	return e
}

// WithOutput attaches captured process output, truncated to its tail.
func (e *Error) WithOutput(output string) *Error {
	output = strings.TrimSpace(output)
	if output == "" {
		return e
	}
	return e.WithField(FieldOutput, Tail(output, MaxOutputBytes))
}

// MaxOutputBytes bounds the diagnostic output kept on an error.
const MaxOutputBytes = 4000

// Tail returns at most n trailing bytes of s, starting on a rune boundary.
func Tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}

// HTTPStatus maps the code to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation, CodeBadRequest:
		return 400
	case CodeUnauthorized:
		return 401
	case CodeNotFound, CodeArtifactNotFound:
		return 404
	case CodeConflict:
		return 409
	case CodeArtifactTooLarge:
		return 413
	case CodeRangeNotSatisfy:
		return 416
	case CodeSandboxExecution, CodeRetriesExhausted, CodeMergeInvalidAudio:
		return 422
	case CodeGeneration, CodeNoCodeFound, CodeNarration, CodeUploadFailed, CodeMergeDownload:
		return 502
	case CodeUnavailable:
		return 503
	case CodeTimeout, CodeSandboxTimeout:
		return 504
	default:
		return 500
	}
}

// StackTrace formats the captured stack, one frame per line.
func (e *Error) StackTrace() string {
	if len(e.Stack) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range e.Stack {
		fmt.Fprintf(&b, "  %s:%d %s\n", f.File, f.Line, f.Function)
	}
	return b.String()
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Stack: captureStack(2)}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Stack: captureStack(2)}
}

// E builds an error for op with the given code, optionally wrapping err.
func E(op string, code Code, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err, Stack: captureStack(2)}
}

// Wrap adds op context to err. A wrapped *Error keeps its code and fields.
func Wrap(err error, op string, message string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{
			Code:    e.Code,
			Message: message,
			Op:      op,
			Err:     err,
			Fields:  e.Fields,
			Stack:   captureStack(2),
		}
	}
	return &Error{Code: CodeInternal, Message: message, Op: op, Err: err, Stack: captureStack(2)}
}

func Wrapf(err error, op string, format string, args ...any) *Error {
	return Wrap(err, op, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps err under a new code.
func WrapWithCode(err error, code Code, op string, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Op: op, Err: err, Stack: captureStack(2)}
}

func Internal(message string) *Error {
	return New(CodeInternal, message)
}

func Internalf(format string, args ...any) *Error {
	return Newf(CodeInternal, format, args...)
}

// NotFound reports a missing resource.
func NotFound(resource string, id string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, id)).
		WithField("resource", resource).
		WithField("id", id)
}

func Validation(message string) *Error {
	return New(CodeValidation, message)
}

func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// ValidationField reports an invalid request field.
func ValidationField(field string, message string) *Error {
	return New(CodeValidation, message).WithField("field", field)
}

func Timeout(operation string) *Error {
	return New(CodeTimeout, fmt.Sprintf("operation timed out: %s", operation)).
		WithField("operation", operation)
}

func Unavailable(service string) *Error {
	return New(CodeUnavailable, fmt.Sprintf("service unavailable: %s", service)).
		WithField("service", service)
}

// GetCode returns the outermost code in err's chain, or CodeInternal.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func GetHTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return 500
}

func GetFields(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) && e.Fields != nil {
		return e.Fields
	}
	return nil
}

func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

func IsValidation(err error) bool {
	return IsCode(err, CodeValidation)
}

// IsRenderFailure reports whether err is a failure of the generated program
// itself, which a corrected program may fix.
func IsRenderFailure(err error) bool {
	c := GetCode(err)
	return c == CodeSandboxExecution || c == CodeSandboxTimeout
}

func captureStack(skip int) []Frame {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip+1, pcs[:])

	frames := make([]Frame, 0, n)
	it := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := it.Next()
		if !strings.Contains(frame.File, "runtime/") {
			frames = append(frames, Frame{File: frame.File, Line: frame.Line, Function: frame.Function})
		}
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}
