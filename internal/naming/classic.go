package naming

import (
	"fmt"
	"strings"
)

const classicPrefix = "arcyd-review/"

// Classic names review branches "arcyd-review/<description>/<base>".
type Classic struct{}

func NewClassic() *Classic {
	return &Classic{}
}

func (Classic) Scheme() string {
	return SchemeClassic
}

func (Classic) Parse(name string) (ReviewBranch, bool) {
	rest, ok := strings.CutPrefix(name, classicPrefix)
	if !ok {
		return ReviewBranch{}, false
	}

	idx := strings.LastIndex(rest, "/")
	if idx < 0 {
		return ReviewBranch{}, false
	}

	description, base := rest[:idx], rest[idx+1:]
	if !validSegments(description) || !validSegment(base) {
		return ReviewBranch{}, false
	}

	return ReviewBranch{
		Scheme:      SchemeClassic,
		Base:        base,
		Description: description,
	}, true
}

func (c Classic) Build(rb ReviewBranch) (string, error) {
	if rb.Scheme != SchemeClassic {
		return "", fmt.Errorf("%w: scheme %q is not %q", ErrInvalidIdentity, rb.Scheme, SchemeClassic)
	}
	if !validSegments(rb.Description) || !validSegment(rb.Base) {
		return "", fmt.Errorf("%w: base %q description %q", ErrInvalidIdentity, rb.Base, rb.Description)
	}

	return classicPrefix + rb.Description + "/" + rb.Base, nil
}

func (Classic) Example() string {
	return classicPrefix + "mywork/master"
}
