package branch

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyRange   = errors.New("no commits between base and branch")
	ErrAlreadyBound = errors.New("review already bound to branch")
	ErrNotBound     = errors.New("no review bound to branch")
	ErrInvalidBase  = errors.New("invalid base branch")
)

// InvalidBaseError reports a review branch whose declared base cannot be
// reviewed against.
type InvalidBaseError struct {
	Branch string
	Base   string
	Reason string
	Err    error
}

func (e *InvalidBaseError) Error() string {
	return fmt.Sprintf("%s: %q for %q: %s", ErrInvalidBase, e.Base, e.Branch, e.Reason)
}

func (e *InvalidBaseError) Unwrap() error {
	return e.Err
}

func (e *InvalidBaseError) Is(target error) bool {
	return target == ErrInvalidBase
}
