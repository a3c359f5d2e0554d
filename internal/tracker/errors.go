package tracker

import "errors"

var (
	ErrNotFound = errors.New("branch state not found")
)
