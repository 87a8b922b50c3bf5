package graph

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes a Graph Store error into the taxonomy of spec
// section 7. It is never fatal to the caller; the tool server (section 4.2)
// turns these into {"error": "..."} responses instead of crashing.
type ErrorCode string

const (
	// CodeNotFound means the referenced id does not exist.
	CodeNotFound ErrorCode = "not_found"
	// CodeBadTransition means the requested status change is not allowed
	// by the automaton.
	CodeBadTransition ErrorCode = "bad_transition"
	// CodeBadState means the operation is forbidden from the node's
	// current status (e.g. modify on a completed node).
	CodeBadState ErrorCode = "bad_state"
	// CodeBadArgs means the caller's input was missing or malformed.
	CodeBadArgs ErrorCode = "bad_args"
	// CodeEdgeCycle means the requested dependency would create a cycle.
	CodeEdgeCycle ErrorCode = "edge_cycle"
)

// Error is a structured Graph Store error carrying enough information for
// the tool server to render it as one of the taxonomy tags in spec section 7.
type Error struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code ErrorCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}

func wrapError(code ErrorCode, msg string, err error) error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// CodeOf extracts the ErrorCode from err, if it (or something it wraps) is
// a *Error. The zero value is returned otherwise.
func CodeOf(err error) (ErrorCode, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code, true
	}
	return "", false
}
