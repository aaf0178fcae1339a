package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the turn-level failure taxonomy. Handlers map these
// to HTTP status codes; everything except an external tool failure aborts
// the current turn.
var (
	// ErrConfiguration signals missing or invalid model credentials.
	ErrConfiguration = errors.New("model is not configured")

	// ErrInvalidRequest signals a malformed call: missing query on a
	// non-resume start, or resume against an unknown thread.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidState signals a resume against a thread that is not
	// suspended, or a start racing an in-flight turn.
	ErrInvalidState = errors.New("invalid thread state")

	// ErrTurnLimit signals that a turn exceeded its supervisor/worker
	// round-trip cap without reaching a terminal node.
	ErrTurnLimit = errors.New("turn limit exceeded")
)

// ModelCallError reports a failed call into the external language model,
// distinguishing which component made it.
type ModelCallError struct {
	Component Node
	Err       error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("%s model call failed: %v", e.Component, e.Err)
}

func (e *ModelCallError) Unwrap() error { return e.Err }

// NewModelCallError wraps a model failure with its originating component.
func NewModelCallError(component Node, err error) *ModelCallError {
	return &ModelCallError{Component: component, Err: err}
}
