package pattern

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoPosts describes an analysis without signals in the window. Dashboards
// log it and render an empty payload rather than failing.
var ErrNoPosts = errors.New("no posts in window")

// IntegrityError marks a single entity excluded from output because its
// data is inconsistent. Extractable via errors.As().
type IntegrityError struct {
	Entity string
	ID     string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s %q: %s", e.Entity, e.ID, e.Reason)
}

// CollaboratorError wraps a failure of an external collaborator such as the
// narrator. Extractable via errors.As(). Supports Unwrap().
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator %s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the collaborator ran out of time.
func (e *CollaboratorError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
