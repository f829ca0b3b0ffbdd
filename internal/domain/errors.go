package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrAuth         = errors.New("authentication error")
	ErrPrecondition = errors.New("precondition failed")
	ErrMutation     = errors.New("mutation failed")
	ErrSubscription = errors.New("subscription failed")
)

// Error is a user-facing failure. Msg is safe to show to the user; Err, when set, is the
// underlying cause and is only meant for logs.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Validation(op, msg string) error {
	return &Error{Kind: ErrValidation, Op: op, Msg: msg}
}

func NotFound(op, msg string) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: msg}
}

func Auth(op, msg string, err error) error {
	return &Error{Kind: ErrAuth, Op: op, Msg: msg, Err: err}
}

func Precondition(op, msg string) error {
	return &Error{Kind: ErrPrecondition, Op: op, Msg: msg}
}

func Mutation(op, msg string, err error) error {
	return &Error{Kind: ErrMutation, Op: op, Msg: msg, Err: err}
}

func Subscription(op, msg string, err error) error {
	return &Error{Kind: ErrSubscription, Op: op, Msg: msg, Err: err}
}

// Message returns the text to show the user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Msg
	}
	return "Something went wrong. Please try again."
}
