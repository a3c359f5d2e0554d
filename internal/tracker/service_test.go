package tracker_test

import (
	"context"
	"testing"

	"github.com/arcyd/arcyd/internal/branch"
	"github.com/arcyd/arcyd/internal/naming"
	"github.com/arcyd/arcyd/internal/tracker"
	"github.com/arcyd/arcyd/pkg/badgerfx/badgertest"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newService(t *testing.T) *tracker.Service {
	t.Helper()

	return tracker.NewService(tracker.NewRepository(badgertest.New(t)), zaptest.NewLogger(t))
}

func newBranch(repo, name string, state branch.State) *branch.Branch {
	return branch.New(nil, naming.ReviewBranch{Scheme: naming.SchemeRBranch, Base: "master", Description: "x"}, name, "h", state, repo, "")
}

func TestService_SaveAndLookup(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	state := branch.State{ReviewID: lo.ToPtr(101), VerifiedHash: "abc", VerifiedBase: "def", Status: branch.StatusOK}
	require.NoError(t, svc.Save(ctx, newBranch("repo", "r/master/x", state)))
	require.NoError(t, svc.Save(ctx, newBranch("other", "r/master/y", state)))

	lookup, err := svc.Lookup(ctx, "repo")
	require.NoError(t, err)

	got, ok := lookup("r/master/x")
	require.True(t, ok)
	assert.Equal(t, state, got)

	_, ok = lookup("r/master/y")
	assert.False(t, ok)

	stored, err := svc.Get(ctx, "repo", "r/master/x")
	require.NoError(t, err)
	assert.Equal(t, "repo", stored.Repo)
	created := stored.CreatedAt

	state.VerifiedHash = "abd"
	require.NoError(t, svc.Save(ctx, newBranch("repo", "r/master/x", state)))

	stored, err = svc.Get(ctx, "repo", "r/master/x")
	require.NoError(t, err)
	assert.Equal(t, "abd", stored.VerifiedHash)
	assert.True(t, created.Equal(stored.CreatedAt))
}

func TestService_SaveEmptyDeletes(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Save(ctx, newBranch("repo", "r/master/x", branch.State{VerifiedHash: "abc"})))
	require.NoError(t, svc.Save(ctx, newBranch("repo", "r/master/x", branch.State{})))

	_, err := svc.Get(ctx, "repo", "r/master/x")
	require.ErrorIs(t, err, tracker.ErrNotFound)
}

func TestService_Prune(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for _, name := range []string{"r/master/a", "r/master/b", "r/master/c"} {
		require.NoError(t, svc.Save(ctx, newBranch("repo", name, branch.State{VerifiedHash: "abc"})))
	}

	pruned, err := svc.Prune(ctx, "repo", []string{"r/master/b"})
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	states, err := svc.List(ctx, "repo")
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "r/master/b", states[0].Branch)
}
