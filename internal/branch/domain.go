package branch

import (
	"context"

	"github.com/arcyd/arcyd/internal/git"
)

type Status string

const (
	StatusOK           Status = "ok"
	StatusBadPreReview Status = "bad_pre_review"
	StatusBadInReview  Status = "bad_in_review"
	StatusBadLand      Status = "bad_land"
)

// State is what survives between polling cycles for one branch. Everything
// else is derived from the repository each cycle.
type State struct {
	ReviewID     *int   `json:"review_id,omitempty"`
	VerifiedHash string `json:"verified_hash,omitempty"`
	VerifiedBase string `json:"verified_base,omitempty"`
	Status       Status `json:"status,omitempty"`
}

// StateLookup returns the stored state for a review branch name.
type StateLookup func(name string) (State, bool)

// Backend is the part of the working clone a Branch queries.
type Backend interface {
	Name() string
	RemoteBranches(ctx context.Context) ([]git.RemoteRef, error)
	ResolveRemoteBranch(ctx context.Context, branch string) (string, error)
	HasCommit(hash string) bool
	MergeBase(ctx context.Context, a, b string) (string, error)
	Commits(ctx context.Context, exclude, tip string) ([]git.Commit, error)
	Commit(ctx context.Context, hash string) (git.Commit, error)
	RawDiff(ctx context.Context, from, to string, contextLines int) (string, error)
	ArchiveToLanded(ctx context.Context, branchHash, branchName, baseName, landedHash, message string) (string, error)
	ArchiveToAbandoned(ctx context.Context, branchHash, branchName, baseName string) (string, error)
	DeleteBranch(ctx context.Context, branch, expectedOld string) error
	SquashMerge(ctx context.Context, req git.SquashRequest) (string, error)
}

var _ Backend = (*git.Clone)(nil)
