package saasproto

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind int

const (
	ValidationFailure ErrorKind = iota + 1
	ResourceExhausted
	RemoteCommandFailure
	ReadinessTimeout
	OperationalFailure
)

var errorKindStrs = map[ErrorKind]string{
	ValidationFailure:    "ValidationFailure",
	ResourceExhausted:    "ResourceExhausted",
	RemoteCommandFailure: "RemoteCommandFailure",
	ReadinessTimeout:     "ReadinessTimeout",
	OperationalFailure:   "OperationalFailure",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindStrs[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the reportable error type returned by lifecycle operations.
// Remote command failures carry the exit code and captured output.
type Error struct {
	Kind     ErrorKind
	Msg      string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Kind == RemoteCommandFailure {
		out := strings.TrimSpace(e.Stderr)
		if out == "" {
			out = strings.TrimSpace(e.Stdout)
		}
		msg = fmt.Sprintf("%s, exit code %d", msg, e.ExitCode)
		if out != "" {
			msg += ", " + out
		}
	}
	if e.Err != nil {
		msg += ", " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, saasproto.ErrReadinessTimeout).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Kind == e.Kind
}

var (
	ErrValidationFailure    = &Error{Kind: ValidationFailure}
	ErrResourceExhausted    = &Error{Kind: ResourceExhausted}
	ErrRemoteCommandFailure = &Error{Kind: RemoteCommandFailure}
	ErrReadinessTimeout     = &Error{Kind: ReadinessTimeout}
	ErrOperationalFailure   = &Error{Kind: OperationalFailure}
)

func NewValidationError(format string, a ...interface{}) error {
	return &Error{Kind: ValidationFailure, Msg: fmt.Sprintf(format, a...)}
}

func NewResourceExhaustedError(format string, a ...interface{}) error {
	return &Error{Kind: ResourceExhausted, Msg: fmt.Sprintf(format, a...)}
}

func NewReadinessTimeoutError(format string, a ...interface{}) error {
	return &Error{Kind: ReadinessTimeout, Msg: fmt.Sprintf(format, a...)}
}

func NewRemoteCommandError(what string, exitCode int, stdout, stderr string) error {
	return &Error{
		Kind:     RemoteCommandFailure,
		Msg:      "error running " + what,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
	}
}

// WrapOperational wraps err as an OperationalFailure unless it is
// already a reportable *Error.
func WrapOperational(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	var serr *Error
	if errors.As(err, &serr) {
		return err
	}
	return &Error{Kind: OperationalFailure, Msg: fmt.Sprintf(format, a...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return 0
}
