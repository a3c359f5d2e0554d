package git_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/arcyd/arcyd/internal/git"
	"github.com/arcyd/arcyd/internal/git/gittest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestService_Version(t *testing.T) {
	svc := git.NewService(git.Config{}, zaptest.NewLogger(t))

	version, err := svc.Version(context.Background())
	require.NoError(t, err)
	assert.Contains(t, version, "git version")
}

func TestService_Open(t *testing.T) {
	s := gittest.NewScenario(t)
	ctx := context.Background()

	svc := git.NewService(git.Config{
		DefaultDir: t.TempDir(),
		Committer:  gittest.Daemon,
	}, zaptest.NewLogger(t))

	req := git.OpenRequest{Name: "myrepo", URL: s.Central}
	clone, err := svc.Open(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, svc.Directory("myrepo"), clone.Path())

	master, err := clone.ResolveRemoteBranch(ctx, "master")
	require.NoError(t, err)
	assert.Equal(t, s.Head(t), master)

	// existing clones are reused
	again, err := svc.Open(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, clone.Path(), again.Path())
}

func TestService_OpenInvalidURL(t *testing.T) {
	svc := git.NewService(git.Config{DefaultDir: t.TempDir()}, zaptest.NewLogger(t))

	_, err := svc.Open(context.Background(), git.OpenRequest{
		Name: "missing",
		URL:  filepath.Join(t.TempDir(), "nope"),
	})
	require.ErrorIs(t, err, git.ErrCloneFailed)
}
