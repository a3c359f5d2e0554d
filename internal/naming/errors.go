package naming

import "errors"

var (
	ErrUnknownScheme   = errors.New("unknown naming scheme")
	ErrInvalidIdentity = errors.New("invalid review branch identity")
)
