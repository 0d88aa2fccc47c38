package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures for the orchestrator's retry policy. Names
// are illustrative, not a provider's wire vocabulary.
type ErrorKind string

const (
	ErrTransport         ErrorKind = "Transport"
	ErrSchema            ErrorKind = "Schema"
	ErrBudget            ErrorKind = "Budget"
	ErrConsistency       ErrorKind = "Consistency"
	ErrCancelled         ErrorKind = "Cancelled"
	ErrDeadlineExceeded  ErrorKind = "DeadlineExceeded"
	ErrConfig            ErrorKind = "Config"
)

// maxMessageLen bounds the truncated message activities propagate.
const maxMessageLen = 500

// PipelineError is the structured error every activity returns on failure.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// NewPipelineError builds a PipelineError with its message truncated to
// maxMessageLen.
func NewPipelineError(kind ErrorKind, msg string, cause error) *PipelineError {
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen]
	}
	return &PipelineError{Kind: kind, Message: msg, Cause: cause}
}

// Retryable reports whether the orchestrator should retry the state that
// produced this error.
func Retryable(err error) bool {
	var pe *PipelineError
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Kind {
	case ErrTransport, ErrSchema, ErrBudget:
		return true
	case ErrConsistency, ErrCancelled, ErrDeadlineExceeded, ErrConfig:
		return false
	default:
		return false
	}
}

// KindOf extracts the ErrorKind from err, defaulting to ErrTransport for
// errors that did not originate from NewPipelineError (e.g. raw network
// errors bubbling up from a driver).
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrTransport
}
