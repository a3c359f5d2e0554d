package differ_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/arcyd/arcyd/internal/differ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// render builds a single-file diff of a file with n lines where line changed
// (1-based) is replaced, keeping context lines around it.
func render(name string, n, changed, context int) string {
	from, to := max(1, changed-context), min(n, changed+context)
	count := to - from + 1

	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", name, name)
	b.WriteString("index 1111111..2222222 100644\n")
	fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", name, name)
	if count == 1 {
		fmt.Fprintf(&b, "@@ -%d +%d @@\n", from, from)
	} else {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", from, count, from, count)
	}
	for i := from; i <= to; i++ {
		if i == changed {
			fmt.Fprintf(&b, "-old line %d\n", i)
			fmt.Fprintf(&b, "+new line %d\n", i)
			continue
		}
		fmt.Fprintf(&b, " context line %d\n", i)
	}

	return b.String()
}

type source struct {
	files    []string
	n        int
	calls    []int
	override string
}

func (s *source) render(_ context.Context, contextLines int) (string, error) {
	s.calls = append(s.calls, contextLines)
	if s.override != "" {
		return s.override, nil
	}

	var b strings.Builder
	for _, f := range s.files {
		b.WriteString(render(f, s.n, s.n/2, contextLines))
	}

	return b.String(), nil
}

func newSource(n int, files ...string) *source {
	return &source{files: files, n: n}
}

func TestReduce_WithinLimits(t *testing.T) {
	src := newSource(20, "README")
	full := render("README", 20, 10, differ.FullContextLines)

	res, err := differ.Reduce(context.Background(), src.render, differ.Limits{MaxBytes: len(full), MaxFiles: 1})
	require.NoError(t, err)
	assert.Equal(t, full, res.Diff)
	assert.Equal(t, differ.LevelFullContext, res.Level)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, []int{differ.FullContextLines}, src.calls)

	res, err = differ.Reduce(context.Background(), src.render, differ.Limits{})
	require.NoError(t, err)
	assert.Equal(t, full, res.Diff)
}

func TestReduce_ReducedContext(t *testing.T) {
	src := newSource(200, "README")
	full := render("README", 200, 100, differ.FullContextLines)

	res, err := differ.Reduce(context.Background(), src.render, differ.Limits{MaxBytes: len(full) / 4})
	require.NoError(t, err)
	assert.Equal(t, differ.LevelReducedContext, res.Level)
	assert.Equal(t, render("README", 200, 100, differ.ReducedContextLines), res.Diff)
	assert.Equal(t, []int{differ.FullContextLines, differ.ReducedContextLines}, src.calls)
}

func TestReduce_NoContext(t *testing.T) {
	src := newSource(200, "README")
	limit := len(render("README", 200, 100, 0))

	res, err := differ.Reduce(context.Background(), src.render, differ.Limits{MaxBytes: limit})
	require.NoError(t, err)
	assert.Equal(t, differ.LevelNoContext, res.Level)
	assert.Contains(t, res.Diff, "@@ -100 +100 @@\n-old line 100\n+new line 100\n")
	assert.NotContains(t, res.Diff, "context line")
	assert.Equal(t, []int{differ.FullContextLines, differ.ReducedContextLines, 0}, src.calls)
}

func TestReduce_TooLarge(t *testing.T) {
	src := newSource(10, "a", "b")

	_, err := differ.Reduce(context.Background(), src.render, differ.Limits{MaxBytes: 10, MaxFiles: 1})
	require.ErrorIs(t, err, differ.ErrDiffTooLarge)

	var tooLarge *differ.DiffTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, 2, tooLarge.Files)
	assert.Equal(t, len(render("a", 10, 5, 0))+len(render("b", 10, 5, 0)), tooLarge.Bytes)
	assert.Contains(t, err.Error(), "limit of 10")
	assert.Contains(t, err.Error(), "2 files exceeds limit of 1")
}

func TestReduce_FileLimitOnly(t *testing.T) {
	src := newSource(10, "a", "b")

	_, err := differ.Reduce(context.Background(), src.render, differ.Limits{MaxFiles: 1})
	require.ErrorIs(t, err, differ.ErrDiffTooLarge)
	assert.NotContains(t, err.Error(), "bytes")
}

func TestReduce_ReplacesInvalidUTF8(t *testing.T) {
	src := &source{override: "diff --git a/x b/x\n--- a/x\n+++ b/x\n@@ -1 +1 @@\n-ok\n+bad \xff\xfe here\n"}

	res, err := differ.Reduce(context.Background(), src.render, differ.Limits{})
	require.NoError(t, err)
	assert.Contains(t, res.Diff, "+bad � here\n")
}

func TestReduce_SourceError(t *testing.T) {
	boom := errors.New("boom")
	failing := func(context.Context, int) (string, error) { return "", boom }

	_, err := differ.Reduce(context.Background(), failing, differ.Limits{})
	require.ErrorIs(t, err, boom)
}

func TestReduce_Malformed(t *testing.T) {
	src := &source{override: "--- a/f\n+++ b/f\n@@ -1,3 +1,3 @@\n a\n"}

	_, err := differ.Reduce(context.Background(), src.render, differ.Limits{})
	require.ErrorIs(t, err, differ.ErrMalformed)
}

func TestCountFiles(t *testing.T) {
	tests := []struct {
		name string
		diff string
		want int
	}{
		{name: "empty", diff: "", want: 0},
		{name: "git diffs", diff: render("a", 3, 1, 3) + render("b", 3, 1, 3), want: 2},
		{name: "plain diff", diff: "--- a/f\n+++ b/f\n@@ -1 +1 @@\n-a\n+b\n", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := differ.CountFiles(tt.diff)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
