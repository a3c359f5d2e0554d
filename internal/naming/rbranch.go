package naming

import (
	"fmt"
	"strings"
)

const rbranchPrefix = "r/"

// RBranch names review branches "r/<base>/<description>". The base is a
// single path segment; the description may span several.
type RBranch struct{}

func NewRBranch() *RBranch {
	return &RBranch{}
}

func (RBranch) Scheme() string {
	return SchemeRBranch
}

func (RBranch) Parse(name string) (ReviewBranch, bool) {
	rest, ok := strings.CutPrefix(name, rbranchPrefix)
	if !ok {
		return ReviewBranch{}, false
	}

	base, description, ok := strings.Cut(rest, "/")
	if !ok || !validSegment(base) || !validSegments(description) {
		return ReviewBranch{}, false
	}

	return ReviewBranch{
		Scheme:      SchemeRBranch,
		Base:        base,
		Description: description,
	}, true
}

func (RBranch) Build(rb ReviewBranch) (string, error) {
	if rb.Scheme != SchemeRBranch {
		return "", fmt.Errorf("%w: scheme %q is not %q", ErrInvalidIdentity, rb.Scheme, SchemeRBranch)
	}
	if !validSegment(rb.Base) || !validSegments(rb.Description) {
		return "", fmt.Errorf("%w: base %q description %q", ErrInvalidIdentity, rb.Base, rb.Description)
	}

	return rbranchPrefix + rb.Base + "/" + rb.Description, nil
}

func (RBranch) Example() string {
	return rbranchPrefix + "master/mywork"
}
