// Package apperr defines the error taxonomy shared by the scheduling engine
// and the layers around it. Callers classify errors with errors.Is against
// ErrValidation, ErrNotFound and ErrInvariant.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any mutation
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference to a task, schedule, calendar or edge that does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvariant marks a broken contract, e.g. a cycle reaching the solver
	ErrInvariant = errors.New("invariant violated")
)

// Error carries the kind, the operation that failed and an optional cause.
type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel kind so errors.Is(err, ErrNotFound) works through wrapping.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

type Option func(*Error)

// WithErr attaches an underlying cause.
func WithErr(err error) Option {
	return func(e *Error) { e.Err = err }
}

func New(kind error, op, message string, opts ...Option) error {
	e := &Error{Kind: kind, Op: op, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Validationf(op, format string, args ...interface{}) error {
	return New(ErrValidation, op, fmt.Sprintf(format, args...))
}

func NotFoundf(op, format string, args ...interface{}) error {
	return New(ErrNotFound, op, fmt.Sprintf(format, args...))
}

func Invariantf(op, format string, args ...interface{}) error {
	return New(ErrInvariant, op, fmt.Sprintf(format, args...))
}

// KindOf returns a short label for the error kind, or "error" when unclassified.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrInvariant):
		return "invariant"
	default:
		return "error"
	}
}
