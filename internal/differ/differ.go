package differ

import (
	"context"
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

const replacementChar = "�"

// Source renders the diff being reduced with the given number of context
// lines.
type Source func(ctx context.Context, contextLines int) (string, error)

var levels = []struct {
	level   Level
	context int
}{
	{LevelFullContext, FullContextLines},
	{LevelReducedContext, ReducedContextLines},
	{LevelNoContext, 0},
}

// Reduce renders source with decreasing context until the diff fits limits.
// Content lines are never dropped: if the diff does not fit with zero
// context a *DiffTooLargeError is returned.
func Reduce(ctx context.Context, source Source, limits Limits) (Result, error) {
	var (
		diff  string
		files = -1
	)

	for _, l := range levels {
		raw, err := source(ctx, l.context)
		if err != nil {
			return Result{}, err
		}
		diff = Sanitize(raw)

		// context does not change the set of files
		if files < 0 {
			if files, err = CountFiles(diff); err != nil {
				return Result{}, err
			}
		}

		if fits(len(diff), files, limits) {
			return Result{Diff: diff, Level: l.level, Files: files}, nil
		}
	}

	return Result{}, &DiffTooLargeError{
		Limits: limits,
		Bytes:  len(diff),
		Files:  files,
	}
}

// Sanitize replaces invalid UTF-8 sequences with U+FFFD.
func Sanitize(diff string) string {
	return strings.ToValidUTF8(diff, replacementChar)
}

// CountFiles returns the number of files changed by a unified diff.
func CountFiles(diff string) (int, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(diff))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return len(files), nil
}

func fits(bytes, files int, limits Limits) bool {
	return !limits.exceedsBytes(bytes) && !limits.exceedsFiles(files)
}
