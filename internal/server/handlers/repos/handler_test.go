package repos_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arcyd/arcyd/internal/branch"
	"github.com/arcyd/arcyd/internal/git"
	"github.com/arcyd/arcyd/internal/git/gittest"
	"github.com/arcyd/arcyd/internal/metrics"
	"github.com/arcyd/arcyd/internal/naming"
	"github.com/arcyd/arcyd/internal/reconcile"
	"github.com/arcyd/arcyd/internal/reports"
	"github.com/arcyd/arcyd/internal/server/handlers/repos"
	"github.com/arcyd/arcyd/internal/tracker"
	"github.com/arcyd/arcyd/internal/watcher"
	"github.com/arcyd/arcyd/pkg/badgerfx/badgertest"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// idleReviewer is never called: refreshed repositories have no review
// branches.
type idleReviewer struct {
	reconcile.Reviewer
}

// gatedOpener hands out the clone, optionally holding the caller until
// release is closed.
type gatedOpener struct {
	clone   *git.Clone
	entered chan struct{}
	release chan struct{}
}

func (o *gatedOpener) Open(_ context.Context, _ git.OpenRequest) (*git.Clone, error) {
	if o.release != nil {
		o.entered <- struct{}{}
		<-o.release
	}

	return o.clone, nil
}

type fixture struct {
	app     *fiber.App
	reports *reports.Service
	states  *tracker.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	return newFixtureWith(t, nil)
}

func newFixtureWith(t *testing.T, opener reconcile.Opener) *fixture {
	t.Helper()

	logger := zaptest.NewLogger(t)
	db := badgertest.New(t)

	f := &fixture{
		app:     fiber.New(),
		reports: reports.NewService(reports.Config{}, reports.NewRepository(db), logger),
		states:  tracker.NewRepository(db),
	}
	trackerSvc := tracker.NewService(f.states, logger)

	reconcileSvc, err := reconcile.NewService(
		reconcile.Config{Repos: []reconcile.RepoConfig{{Name: "myrepo", Scheme: naming.SchemeRBranch}}},
		opener,
		trackerSvc,
		f.reports,
		idleReviewer{},
		watcher.New(nil),
		watcher.NewStore(db, logger),
		metrics.New(prometheus.NewRegistry()),
		logger,
	)
	require.NoError(t, err)

	h := repos.NewHandler(reconcileSvc, f.reports, trackerSvc, validator.New(), logger)
	h.Register(f.app.Group("/api/v1"))

	return f
}

func (f *fixture) get(t *testing.T, path string, out any) int {
	t.Helper()

	return f.do(t, http.MethodGet, path, out)
}

func (f *fixture) post(t *testing.T, path string, out any) int {
	t.Helper()

	return f.do(t, http.MethodPost, path, out)
}

func (f *fixture) do(t *testing.T, method, path string, out any) int {
	t.Helper()

	resp, err := f.app.Test(httptest.NewRequest(method, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}

	return resp.StatusCode
}

func TestHandler_List(t *testing.T) {
	f := newFixture(t)

	var before []repos.RepoResponse
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/repos", &before))
	require.Len(t, before, 1)
	assert.Equal(t, "myrepo", before[0].Name)
	assert.Nil(t, before[0].Report)

	ctx := context.Background()
	report, err := f.reports.Start(ctx, "myrepo", uuid.New())
	require.NoError(t, err)
	require.NoError(t, f.reports.AddBranch(ctx, report.ID, reports.BranchResult{Name: "r/master/blah", Status: reports.BranchBad}))

	var after repos.RepoResponse
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/repos/myrepo", &after))
	require.NotNil(t, after.Report)
	assert.Equal(t, report.ID, after.Report.ID)
	assert.Equal(t, "updating", after.Report.Status)
	require.Len(t, after.Report.Branches, 1)
	assert.Equal(t, "bad", after.Report.Branches[0].Status)
}

func TestHandler_UnknownRepo(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/v1/repos/other", "/api/v1/repos/other/history", "/api/v1/repos/other/branches"} {
		assert.Equal(t, http.StatusNotFound, f.get(t, path, nil), path)
	}
}

func TestHandler_History(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for range 3 {
		report, err := f.reports.Start(ctx, "myrepo", uuid.New())
		require.NoError(t, err)
		require.NoError(t, f.reports.Finish(ctx, report, reports.StatusOK, ""))
	}

	var history []repos.ReportResponse
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/repos/myrepo/history?limit=2", &history))
	assert.Len(t, history, 2)

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/repos/myrepo/history?limit=1000", nil))
}

func TestHandler_Branches(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.states.Put(context.Background(), "myrepo", "r/master/blah", branch.State{
		ReviewID:     lo.ToPtr(7),
		VerifiedHash: "abc",
		Status:       branch.StatusOK,
	}))

	var branches []repos.BranchStateResponse
	require.Equal(t, http.StatusOK, f.get(t, "/api/v1/repos/myrepo/branches", &branches))
	require.Len(t, branches, 1)
	assert.Equal(t, "r/master/blah", branches[0].Branch)
	assert.Equal(t, lo.ToPtr(7), branches[0].ReviewID)
	assert.Equal(t, "ok", branches[0].Status)
}

func TestHandler_Refresh(t *testing.T) {
	scenario := gittest.NewScenario(t)
	f := newFixtureWith(t, &gatedOpener{clone: scenario.Clone})

	var repo repos.RepoResponse
	require.Equal(t, http.StatusOK, f.post(t, "/api/v1/repos/myrepo/refresh", &repo))
	assert.Equal(t, "myrepo", repo.Name)
	require.NotNil(t, repo.Report)
	assert.Equal(t, "ok", repo.Report.Status)
	assert.Empty(t, repo.Report.Branches)

	assert.Equal(t, http.StatusNotFound, f.post(t, "/api/v1/repos/other/refresh", nil))
}

func TestHandler_RefreshBusy(t *testing.T) {
	scenario := gittest.NewScenario(t)
	opener := &gatedOpener{
		clone:   scenario.Clone,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	f := newFixtureWith(t, opener)

	first := make(chan int, 1)
	go func() {
		resp, err := f.app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/repos/myrepo/refresh", nil), -1)
		if err != nil {
			first <- 0
			return
		}
		resp.Body.Close()
		first <- resp.StatusCode
	}()

	// the first refresh holds the repo until released
	<-opener.entered
	assert.Equal(t, http.StatusConflict, f.post(t, "/api/v1/repos/myrepo/refresh", nil))

	close(opener.release)
	assert.Equal(t, http.StatusOK, <-first)
}
