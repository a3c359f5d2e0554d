package differ

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDiffTooLarge = errors.New("diff too large")
	ErrMalformed    = errors.New("malformed unified diff")
)

// DiffTooLargeError reports a diff that exceeds the limits even with no
// context lines.
type DiffTooLargeError struct {
	Limits Limits
	Bytes  int
	Files  int
}

func (e *DiffTooLargeError) Error() string {
	var exceeded []string
	if e.Limits.exceedsBytes(e.Bytes) {
		exceeded = append(exceeded, fmt.Sprintf("%d bytes exceeds limit of %d", e.Bytes, e.Limits.MaxBytes))
	}
	if e.Limits.exceedsFiles(e.Files) {
		exceeded = append(exceeded, fmt.Sprintf("%d files exceeds limit of %d", e.Files, e.Limits.MaxFiles))
	}

	return ErrDiffTooLarge.Error() + ": " + strings.Join(exceeded, ", ")
}

func (e *DiffTooLargeError) Is(target error) bool {
	return target == ErrDiffTooLarge
}
