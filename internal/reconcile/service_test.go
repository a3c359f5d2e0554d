package reconcile_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/arcyd/arcyd/internal/branch"
	"github.com/arcyd/arcyd/internal/conduit"
	"github.com/arcyd/arcyd/internal/differ"
	"github.com/arcyd/arcyd/internal/git"
	"github.com/arcyd/arcyd/internal/git/gittest"
	"github.com/arcyd/arcyd/internal/metrics"
	"github.com/arcyd/arcyd/internal/naming"
	"github.com/arcyd/arcyd/internal/reconcile"
	"github.com/arcyd/arcyd/internal/reports"
	"github.com/arcyd/arcyd/internal/tracker"
	"github.com/arcyd/arcyd/internal/watcher"
	"github.com/arcyd/arcyd/pkg/badgerfx/badgertest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	repoName = "myrepo"
	reviewed = "add NEWFILE\n\nTest Plan: ran it\n\nReviewers: alice"
)

type fakeReviewer struct {
	mu sync.Mutex

	users    map[string]bool
	statuses map[int]conduit.RevisionStatusCode
	failNext error

	diffs    []string
	created  []conduit.MessageFields
	updates  []string
	closed   []int
	comments []string
}

func newFakeReviewer() *fakeReviewer {
	return &fakeReviewer{
		users:    map[string]bool{gittest.Developer.Email: true},
		statuses: map[int]conduit.RevisionStatusCode{},
	}
}

func (r *fakeReviewer) setStatus(id int, status conduit.RevisionStatusCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[id] = status
}

func (r *fakeReviewer) CreateRawDiff(_ context.Context, diff string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.diffs = append(r.diffs, diff)
	return len(r.diffs), nil
}

func (r *fakeReviewer) CreateRevision(_ context.Context, _ int, fields conduit.MessageFields) (conduit.Revision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.failNext; err != nil {
		r.failNext = nil
		return conduit.Revision{}, err
	}

	r.created = append(r.created, fields)
	id := len(r.created)
	r.statuses[id] = conduit.RevisionNeedsReview

	return conduit.Revision{ID: id, URI: reviewURI(id)}, nil
}

func (r *fakeReviewer) UpdateRevision(_ context.Context, _, _ int, _ conduit.MessageFields, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.updates = append(r.updates, message)
	return nil
}

func (r *fakeReviewer) QueryRevisions(_ context.Context, ids []int) ([]conduit.RevisionStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]conduit.RevisionStatus, 0, len(ids))
	for _, id := range ids {
		if status, ok := r.statuses[id]; ok {
			out = append(out, conduit.RevisionStatus{ID: id, Status: status, URI: reviewURI(id)})
		}
	}

	return out, nil
}

func (r *fakeReviewer) CloseRevision(_ context.Context, revisionID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = append(r.closed, revisionID)
	r.statuses[revisionID] = conduit.RevisionClosed
	return nil
}

func (r *fakeReviewer) CreateComment(_ context.Context, _ int, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.comments = append(r.comments, message)
	return nil
}

func (r *fakeReviewer) QueryUserFromEmail(_ context.Context, email string) (*conduit.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.users[email] {
		return nil, nil //nolint:nilnil //unknown user
	}

	return &conduit.User{PHID: "PHID-USER-dev", UserName: "dev"}, nil
}

func (r *fakeReviewer) MakeUsernamePhidDict(_ context.Context, usernames []string) (map[string]string, error) {
	dict := map[string]string{}
	for _, u := range usernames {
		if u == "alice" {
			dict[u] = "PHID-USER-alice"
		}
	}

	return dict, nil
}

func reviewURI(id int) string {
	return fmt.Sprintf("https://review.example.com/D%d", id)
}

type fakeOpener struct {
	clone *git.Clone
}

func (o fakeOpener) Open(_ context.Context, _ git.OpenRequest) (*git.Clone, error) {
	return o.clone, nil
}

type fixture struct {
	*gittest.Scenario

	reviewer *fakeReviewer
	states   *tracker.Service
	reports  *reports.Service
	snoop    []byte
	svc      *reconcile.Service
}

type option func(*reconcile.Config, *reconcile.RepoConfig)

func withLimits(limits differ.Limits) option {
	return func(c *reconcile.Config, _ *reconcile.RepoConfig) { c.Limits = limits }
}

func withSnoop() option {
	return func(_ *reconcile.Config, rc *reconcile.RepoConfig) { rc.SnoopURL = "https://git.example.com/snoop" }
}

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()

	logger := zaptest.NewLogger(t)
	db := badgertest.New(t)

	f := &fixture{
		Scenario: gittest.NewScenario(t),
		reviewer: newFakeReviewer(),
		states:   tracker.NewService(tracker.NewRepository(db), logger),
		reports:  reports.NewService(reports.Config{History: 10}, reports.NewRepository(db), logger),
		snoop:    []byte("v1"),
	}

	rc := reconcile.RepoConfig{
		Name:            repoName,
		Scheme:          naming.SchemeRBranch,
		BranchURLFormat: "https://git.example.com/{repo}/tree/{branch}",
	}
	config := reconcile.Config{Workers: 1}
	for _, opt := range opts {
		opt(&config, &rc)
	}
	config.Repos = []reconcile.RepoConfig{rc}

	w := watcher.New(func(_ context.Context, _ string) ([]byte, error) { return f.snoop, nil })

	svc, err := reconcile.NewService(
		config,
		fakeOpener{clone: f.Clone},
		f.states,
		f.reports,
		f.reviewer,
		w,
		watcher.NewStore(db, logger),
		metrics.New(prometheus.NewRegistry()),
		logger,
	)
	require.NoError(t, err)
	f.svc = svc

	return f
}

func (f *fixture) run(t *testing.T) *reports.Report {
	t.Helper()

	require.NoError(t, f.svc.RunRepo(context.Background(), repoName))

	report, err := f.reports.Latest(context.Background(), repoName)
	require.NoError(t, err)

	return report
}

func (f *fixture) state(t *testing.T, name string) *tracker.BranchState {
	t.Helper()

	st, err := f.states.Get(context.Background(), repoName, name)
	require.NoError(t, err)

	return st
}

func (f *fixture) pushReview(t *testing.T, message string) {
	t.Helper()

	f.Checkout(t, "work", "master")
	f.CommitFile(t, "NEWFILE", "new\n", message)
	f.PushAs(t, "work", "r/master/blah")
}

func TestNewService_UnknownScheme(t *testing.T) {
	_, err := reconcile.NewService(
		reconcile.Config{Repos: []reconcile.RepoConfig{{Name: repoName, Scheme: "nope"}}},
		nil, nil, nil, nil, nil, nil, nil,
		zaptest.NewLogger(t),
	)
	require.ErrorIs(t, err, naming.ErrUnknownScheme)
}

func TestService_RunRepoUnknown(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.svc.RunRepo(context.Background(), "other"), reconcile.ErrUnknownRepo)
	assert.Equal(t, []string{repoName}, f.svc.Repos())
}

func TestService_CreateUpdateLand(t *testing.T) {
	f := newFixture(t)
	f.pushReview(t, reviewed)

	report := f.run(t)
	assert.Equal(t, reports.StatusOK, report.Status)
	require.Len(t, report.Branches, 1)
	assert.Equal(t, reports.BranchResult{
		Name:      "r/master/blah",
		Status:    reports.BranchOK,
		BranchURL: "https://git.example.com/myrepo/tree/r/master/blah",
		ReviewURL: reviewURI(1),
	}, report.Branches[0])

	require.Len(t, f.reviewer.created, 1)
	assert.Equal(t, "add NEWFILE", f.reviewer.created[0].Title)
	assert.Equal(t, "ran it", f.reviewer.created[0].TestPlan)
	assert.Equal(t, []string{"PHID-USER-alice"}, f.reviewer.created[0].ReviewerPHIDs)
	require.Len(t, f.reviewer.diffs, 1)
	assert.Contains(t, f.reviewer.diffs[0], "+new")

	st := f.state(t, "r/master/blah")
	require.NotNil(t, st.ReviewID)
	assert.Equal(t, 1, *st.ReviewID)
	assert.Equal(t, branch.StatusOK, st.Status)

	// nothing changed
	f.run(t)
	assert.Len(t, f.reviewer.created, 1)
	assert.Empty(t, f.reviewer.updates)

	tip := f.CommitFile(t, "OTHER", "other\n", "add OTHER")
	f.PushAs(t, "work", "r/master/blah")

	f.run(t)
	require.Len(t, f.reviewer.updates, 1)
	assert.Contains(t, f.reviewer.updates[0], tip[:12]+" add OTHER")
	assert.Equal(t, tip, f.state(t, "r/master/blah").VerifiedHash)

	f.reviewer.setStatus(1, conduit.RevisionAccepted)
	report = f.run(t)
	require.Len(t, report.Branches, 1)
	assert.Equal(t, reports.BranchOK, report.Branches[0].Status)

	assert.Equal(t, []int{1}, f.reviewer.closed)
	assert.Empty(t, f.CentralRefs(t, "refs/heads/r/"))
	assert.Contains(t, f.CentralRefs(t, "refs/arcyd/landed/"), git.ArchiveRefName(git.OutcomeLanded, "master", tip))

	_, err := f.states.Get(context.Background(), repoName, "r/master/blah")
	require.ErrorIs(t, err, tracker.ErrNotFound)

	f.Fetch(t)
	landed, err := f.Clone.ResolveRemoteBranch(context.Background(), "master")
	require.NoError(t, err)
	commit, err := f.Clone.Commit(context.Background(), landed)
	require.NoError(t, err)
	assert.Equal(t, gittest.Developer.Email, commit.Author.Email)
	assert.Contains(t, commit.Message, "Differential Revision: "+reviewURI(1))
}

func TestService_Abandon(t *testing.T) {
	f := newFixture(t)
	f.pushReview(t, reviewed)
	tip := f.Head(t)

	f.run(t)
	f.reviewer.setStatus(1, conduit.RevisionAbandoned)

	report := f.run(t)
	require.Len(t, report.Branches, 1)
	assert.Equal(t, reports.BranchOK, report.Branches[0].Status)

	assert.Empty(t, f.CentralRefs(t, "refs/heads/r/"))
	assert.Contains(t, f.CentralRefs(t, "refs/arcyd/abandoned/"), git.ArchiveRefName(git.OutcomeAbandoned, "master", tip))

	states, err := f.states.List(context.Background(), repoName)
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestService_BadBranches(t *testing.T) {
	tests := []struct {
		name    string
		message string
		opts    []option
		setup   func(r *fakeReviewer)
	}{
		{
			name:    "missing test plan",
			message: "add NEWFILE",
		},
		{
			name:    "unknown author",
			message: reviewed,
			setup:   func(r *fakeReviewer) { r.users = map[string]bool{} },
		},
		{
			name:    "diff too large",
			message: reviewed,
			opts:    []option{withLimits(differ.Limits{MaxBytes: 10})},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opts...)
			if tt.setup != nil {
				tt.setup(f.reviewer)
			}
			f.pushReview(t, tt.message)

			report := f.run(t)
			assert.Equal(t, reports.StatusOK, report.Status)
			require.Len(t, report.Branches, 1)
			assert.Equal(t, reports.BranchBad, report.Branches[0].Status)
			assert.NotEmpty(t, report.Branches[0].Notes)

			st := f.state(t, "r/master/blah")
			assert.Equal(t, branch.StatusBadPreReview, st.Status)
			assert.Nil(t, st.ReviewID)
			assert.Empty(t, f.reviewer.created)

			// not retried until the branch changes
			report = f.run(t)
			require.Len(t, report.Branches, 1)
			assert.Equal(t, reports.BranchBad, report.Branches[0].Status)
			assert.Empty(t, f.reviewer.created)
		})
	}
}

func TestService_BadInReviewRecovers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pushReview(t, reviewed)
	f.run(t)

	require.NoError(t, f.Dev.Push(ctx, gittest.Remote, ":refs/heads/master", git.PushOptions{}))

	report := f.run(t)
	require.Len(t, report.Branches, 1)
	assert.Equal(t, reports.BranchBad, report.Branches[0].Status)
	assert.Equal(t, branch.StatusBadInReview, f.state(t, "r/master/blah").Status)
	require.Len(t, f.reviewer.comments, 1)
	assert.Contains(t, f.reviewer.comments[0], "r/master/blah")

	// restoring the base alone does not retry the branch
	f.Push(t, "master")
	f.run(t)
	assert.Empty(t, f.reviewer.updates)
	assert.Equal(t, branch.StatusBadInReview, f.state(t, "r/master/blah").Status)

	f.CommitFile(t, "OTHER", "other\n", "add OTHER")
	f.PushAs(t, "work", "r/master/blah")

	report = f.run(t)
	require.Len(t, report.Branches, 1)
	assert.Equal(t, reports.BranchOK, report.Branches[0].Status)
	assert.Equal(t, branch.StatusOK, f.state(t, "r/master/blah").Status)
	assert.Len(t, f.reviewer.updates, 1)
}

func TestService_TransientReviewerFailure(t *testing.T) {
	f := newFixture(t)
	f.reviewer.failNext = fmt.Errorf("%w: 503", conduit.ErrTransient)
	f.pushReview(t, reviewed)

	report := f.run(t)
	require.Len(t, report.Branches, 1)
	assert.Equal(t, reports.BranchBad, report.Branches[0].Status)

	_, err := f.states.Get(context.Background(), repoName, "r/master/blah")
	require.ErrorIs(t, err, tracker.ErrNotFound)

	report = f.run(t)
	require.Len(t, report.Branches, 1)
	assert.Equal(t, reports.BranchOK, report.Branches[0].Status)
	assert.Len(t, f.reviewer.created, 1)
}

func TestService_SnoopSkipsUnchangedRepo(t *testing.T) {
	f := newFixture(t, withSnoop())
	ctx := context.Background()

	f.run(t)

	f.pushReview(t, reviewed)
	require.NoError(t, f.svc.RunRepo(ctx, repoName))
	assert.Empty(t, f.reviewer.created)

	history, err := f.reports.History(ctx, repoName, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	f.snoop = []byte("v2")
	report := f.run(t)
	require.Len(t, report.Branches, 1)
	assert.Len(t, f.reviewer.created, 1)
}

func TestService_SnoopRetriesFailedFetch(t *testing.T) {
	f := newFixture(t, withSnoop())
	ctx := context.Background()

	f.run(t)

	setRemote := func(url string) {
		_, err := f.Clone.Runner().Call(ctx, "remote", "set-url", gittest.Remote, url)
		require.NoError(t, err)
	}

	f.pushReview(t, reviewed)
	f.snoop = []byte("v2")
	setRemote(filepath.Join(t.TempDir(), "missing"))

	require.ErrorIs(t, f.svc.RunRepo(ctx, repoName), git.ErrFetchFailed)
	assert.Empty(t, f.reviewer.created)

	report, err := f.reports.Latest(ctx, repoName)
	require.NoError(t, err)
	assert.Equal(t, reports.StatusFailed, report.Status)

	// the snoop url is unchanged but the last update did not complete
	setRemote(f.Central)

	report = f.run(t)
	assert.Equal(t, reports.StatusOK, report.Status)
	require.Len(t, report.Branches, 1)
	assert.Len(t, f.reviewer.created, 1)

	// a completed update allows skipping again
	f.CommitFile(t, "OTHER", "other\n", "add OTHER")
	f.PushAs(t, "work", "r/master/blah")
	require.NoError(t, f.svc.RunRepo(ctx, repoName))
	assert.Empty(t, f.reviewer.updates)
}

func TestService_RunCycle(t *testing.T) {
	f := newFixture(t)
	f.pushReview(t, reviewed)

	f.svc.RunCycle(context.Background())

	assert.Len(t, f.reviewer.created, 1)
	report, err := f.reports.Latest(context.Background(), repoName)
	require.NoError(t, err)
	assert.Equal(t, reports.StatusOK, report.Status)
}
