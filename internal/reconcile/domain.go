package reconcile

import (
	"context"
	"sync"

	"github.com/arcyd/arcyd/internal/conduit"
	"github.com/arcyd/arcyd/internal/git"
	"github.com/arcyd/arcyd/internal/naming"
)

// Reviewer is the review server as seen by the loop.
type Reviewer interface {
	CreateRawDiff(ctx context.Context, diff string) (int, error)
	CreateRevision(ctx context.Context, diffID int, fields conduit.MessageFields) (conduit.Revision, error)
	UpdateRevision(ctx context.Context, revisionID, diffID int, fields conduit.MessageFields, message string) error
	QueryRevisions(ctx context.Context, ids []int) ([]conduit.RevisionStatus, error)
	CloseRevision(ctx context.Context, revisionID int) error
	CreateComment(ctx context.Context, revisionID int, message string) error
	QueryUserFromEmail(ctx context.Context, email string) (*conduit.User, error)
	MakeUsernamePhidDict(ctx context.Context, usernames []string) (map[string]string, error)
}

// Opener provides the working clone of a repository.
type Opener interface {
	Open(ctx context.Context, req git.OpenRequest) (*git.Clone, error)
}

// Outcome is the result of processing one branch.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeLanded    Outcome = "landed"
	OutcomeAbandoned Outcome = "abandoned"
	OutcomeBad       Outcome = "bad"
	OutcomeStale     Outcome = "stale"
	OutcomeError     Outcome = "error"
)

// repo is a configured repository and its clone. The mutex makes the clone
// exclusive to one worker and guards synced.
type repo struct {
	config RepoConfig
	scheme naming.Naming

	mu    sync.Mutex
	clone *git.Clone
	// synced is set when the last update of the repo completed
	synced bool
}
