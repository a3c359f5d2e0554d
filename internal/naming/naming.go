package naming

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	SchemeClassic = "classic"
	SchemeRBranch = "rbranch"
)

// ReviewBranch identifies a review branch independently of the naming scheme.
type ReviewBranch struct {
	Scheme      string
	Base        string // branch the review is against
	Description string // branch-local name
}

// Naming converts between raw branch names and review branch identities.
type Naming interface {
	// Scheme returns the configuration name of the scheme.
	Scheme() string
	// Parse returns the identity for the branch name, or false if the name
	// is not managed by this scheme.
	Parse(name string) (ReviewBranch, bool)
	// Build returns the branch name for an identity produced by this scheme.
	Build(rb ReviewBranch) (string, error)
	// Example returns a valid branch name for this scheme.
	Example() string
}

// New returns the naming scheme selected by configuration.
func New(scheme string) (Naming, error) {
	switch scheme {
	case SchemeClassic:
		return NewClassic(), nil
	case SchemeRBranch, "r-branch":
		return NewRBranch(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
}

// validSegments reports whether every '/'-separated part of s is a usable
// ref component.
func validSegments(s string) bool {
	if s == "" {
		return false
	}

	for _, part := range strings.Split(s, "/") {
		if !validSegment(part) {
			return false
		}
	}

	return true
}

func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".lock") || strings.HasSuffix(s, ".") {
		return false
	}
	if strings.Contains(s, "..") || strings.Contains(s, "@{") {
		return false
	}

	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
		switch r {
		case '~', '^', ':', '?', '*', '[', '\\':
			return false
		}
	}

	return true
}
