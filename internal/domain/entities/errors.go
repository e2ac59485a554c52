package entities

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidRecipe       = errors.New("invalid recipe")
	ErrUnknownVersion      = errors.New("unknown version")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrChecksumConflict    = errors.New("published checksum changed")
	ErrSignatureInvalid    = errors.New("signature verification failed")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrStepFailure         = errors.New("build step failed")
	ErrCleanupFailure      = errors.New("cleanup step failed")
)

// StepError reports a failed step together with its process status.
// It matches ErrStepFailure (or ErrCleanupFailure for best-effort steps)
// with errors.Is and unwraps to the underlying cause.
type StepError struct {
	Stage      Stage
	Step       string
	ExitCode   int
	Output     string
	BestEffort bool
	Err        error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("%s step %q failed", e.Stage, e.Step)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StepError) Unwrap() []error {
	kind := ErrStepFailure
	if e.BestEffort {
		kind = ErrCleanupFailure
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{kind, e.Err}
}

// temporary is implemented by errors that know whether they are transient
type temporary interface {
	Temporary() bool
}

// Retryable reports whether a failed step may succeed on another attempt.
// Checksum and signature failures, cancellations and errors that declare
// themselves permanent are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrSignatureInvalid) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var t temporary
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return true
}
