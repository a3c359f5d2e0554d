package reconcile

import (
	"errors"
)

var (
	ErrMissingTestPlan = errors.New("commit message has no test plan")
	ErrUnknownAuthor   = errors.New("author is not a known reviewer")
	ErrRevisionMissing = errors.New("revision not found on review server")
	ErrBusy            = errors.New("repository is being processed")
	ErrUnknownRepo     = errors.New("unknown repository")
)
