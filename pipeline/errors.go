package pipeline

import (
	"errors"
	"strings"
)

var (
	// ErrNilContext is returned when a step or a run receives a nil Context.
	ErrNilContext = errors.New("pipeline: nil context")
	// ErrNilRunContext is returned when Run is called with a nil context.Context.
	ErrNilRunContext = errors.New("pipeline: nil context.Context")
	// ErrEmptyPipeline is returned by Run when no steps were registered.
	ErrEmptyPipeline = errors.New("pipeline: no steps registered")
	// ErrNoResult is returned by Run when every step passed without producing a Result.
	ErrNoResult = errors.New("pipeline: chain ended without a result")
	// ErrNoTerminalResult is returned by a terminal step whose logic produced no Result.
	ErrNoTerminalResult = errors.New("pipeline: terminal step produced no result")
	// ErrBlankKey is the cause of a ContractError raised for a blank context key.
	ErrBlankKey = errors.New("pipeline: blank context key")
	// ErrDirtyErrorBuffer is the cause of a ContractError raised when validators
	// are started with a non-empty message buffer.
	ErrDirtyErrorBuffer = errors.New("pipeline: validator error buffer must be empty")
)

// ContractError reports a programming mistake in how the engine is used. It is
// raised with panic and recovered only by Pipeline.Run.
type ContractError struct {
	Op  string
	Err error
}

func (e *ContractError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

// PreconditionError is returned by Step.Handle when the step's validators
// reject the context. Messages keep validator registration order.
type PreconditionError struct {
	Step     string
	Messages []string
}

func (e *PreconditionError) Error() string {
	return strings.Join(e.Messages, "\n")
}

func contractViolation(op string, err error) {
	panic(&ContractError{Op: op, Err: err})
}
