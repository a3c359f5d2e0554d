package git

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrCloneFailed        = errors.New("failed to clone repository")
	ErrFetchFailed        = errors.New("failed to fetch repository")
	ErrPushFailed         = errors.New("failed to push")
	ErrBranchNotFound     = errors.New("branch not found")
	ErrCommitNotFound     = errors.New("commit not found")
	ErrNoMergeBase        = errors.New("no merge base")
	ErrInvalidHash        = errors.New("invalid hash")
	ErrInvalidRepository  = errors.New("invalid repository")
	ErrArchiveFailed      = errors.New("failed to archive branch")
	ErrLandFailed         = errors.New("failed to land branch")

	// ErrStaleReference is returned when a remote ref vanished or moved
	// between being read and being written.
	ErrStaleReference = errors.New("stale reference")
	// ErrTransientRemote marks remote failures worth retrying later.
	ErrTransientRemote = errors.New("transient remote failure")
)

var (
	staleMarkers = []string{
		"stale info",
		"non-fast-forward",
		"fetch first",
		"cannot lock ref",
		"remote ref does not exist",
		"unable to delete",
	}
	transientMarkers = []string{
		"could not resolve host",
		"connection refused",
		"connection timed out",
		"connection reset",
		"operation timed out",
		"could not read from remote repository",
		"the remote end hung up unexpectedly",
		"early eof",
		"unable to access",
		"temporary failure",
		"rpc failed",
	}
)

// CommandError is a failed git invocation.
type CommandError struct {
	Args     []string
	Stdout   string
	Stderr   string
	Err      error
	Remote   bool // the command talked to a remote
	TimedOut bool
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}

	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (e *CommandError) Is(target error) bool {
	output := e.Stderr + "\n" + e.Stdout

	switch target {
	case ErrStaleReference:
		return e.Remote && containsAny(output, staleMarkers)
	case ErrTransientRemote:
		return e.Remote && (e.TimedOut || containsAny(output, transientMarkers))
	default:
		return false
	}
}

func containsAny(s string, markers []string) bool {
	s = strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}

	return false
}
