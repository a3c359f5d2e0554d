package git

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/format/diff"
	"github.com/go-git/go-git/v6/plumbing/object"
	"go.uber.org/zap"
)

const landBranch = "__arcyd_land__"

// Clone is a working clone of one repository. Reads go through go-git,
// anything touching the remote or the worktree goes through the runner.
// A Clone must only be used by one goroutine at a time.
type Clone struct {
	name   string
	path   string
	remote string

	runner    *Runner
	committer Signature

	mu   sync.Mutex
	repo *git.Repository

	logger *zap.Logger
}

func newClone(name, path, remote string, runner *Runner, committer Signature, logger *zap.Logger) (*Clone, error) {
	c := &Clone{
		name:      name,
		path:      path,
		remote:    remote,
		runner:    runner,
		committer: committer,
		logger:    logger.With(zap.String("repo", name)),
	}

	if err := c.reopen(); err != nil {
		return nil, err
	}

	return c, nil
}

// OpenClone opens an existing working clone at path without the service.
func OpenClone(name, path, remote string, committer Signature, logger *zap.Logger, opts ...RunnerOption) (*Clone, error) {
	return newClone(name, path, remote, NewRunner(path, append(opts, WithCommitter(committer))...), committer, logger)
}

func (c *Clone) Name() string    { return c.name }
func (c *Clone) Path() string    { return c.path }
func (c *Clone) Remote() string  { return c.remote }
func (c *Clone) Runner() *Runner { return c.runner }

// reopen drops go-git's cached view of the repository so refs and packs
// written by the command line become visible.
func (c *Clone) reopen() error {
	repo, err := git.PlainOpen(c.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRepositoryNotFound, err)
	}

	c.mu.Lock()
	c.repo = repo
	c.mu.Unlock()

	return nil
}

func (c *Clone) repository() *git.Repository {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.repo
}

// Fetch updates the remote-tracking branches, removing deleted ones.
func (c *Clone) Fetch(ctx context.Context) error {
	c.logger.Debug("fetching repository", zap.String("remote", c.remote))

	if err := c.runner.Fetch(ctx, c.remote, true); err != nil {
		c.logger.Error("failed to fetch repository", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	return c.reopen()
}

// RemoteBranches lists the remote-tracking branches in discovery order.
func (c *Clone) RemoteBranches(_ context.Context) ([]RemoteRef, error) {
	refs, err := c.repository().References()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRepository, err)
	}
	defer refs.Close()

	prefix := "refs/remotes/" + c.remote + "/"

	var branches []RemoteRef
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}

		name, ok := strings.CutPrefix(ref.Name().String(), prefix)
		if !ok || name == "HEAD" {
			return nil
		}

		branches = append(branches, RemoteRef{Name: name, Hash: ref.Hash().String()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRepository, err)
	}

	return branches, nil
}

// ResolveRemoteBranch returns the hash of the remote-tracking branch.
func (c *Clone) ResolveRemoteBranch(_ context.Context, branch string) (string, error) {
	ref, err := c.repository().Reference(plumbing.NewRemoteReferenceName(c.remote, branch), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", fmt.Errorf("%w: %s/%s", ErrBranchNotFound, c.remote, branch)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRepository, err)
	}

	return ref.Hash().String(), nil
}

// HasCommit reports whether hash names a commit available locally.
func (c *Clone) HasCommit(hash string) bool {
	_, err := c.commitObject(hash)
	return err == nil
}

// MergeBase returns the best common ancestor of a and b.
func (c *Clone) MergeBase(_ context.Context, a, b string) (string, error) {
	left, err := c.commitObject(a)
	if err != nil {
		return "", err
	}
	right, err := c.commitObject(b)
	if err != nil {
		return "", err
	}

	bases, err := left.MergeBase(right)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRepository, err)
	}
	if len(bases) == 0 {
		return "", fmt.Errorf("%w: %s %s", ErrNoMergeBase, a, b)
	}

	return bases[0].Hash.String(), nil
}

// IsAncestor reports whether ancestor is reachable from descendant.
func (c *Clone) IsAncestor(_ context.Context, ancestor, descendant string) (bool, error) {
	left, err := c.commitObject(ancestor)
	if err != nil {
		return false, err
	}
	right, err := c.commitObject(descendant)
	if err != nil {
		return false, err
	}

	ok, err := left.IsAncestor(right)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidRepository, err)
	}

	return ok, nil
}

// Commits returns the commits reachable from tip but not from exclude,
// newest first.
func (c *Clone) Commits(ctx context.Context, exclude, tip string) ([]Commit, error) {
	hashes, err := c.runner.RevList(ctx, tip, exclude)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRepository, err)
	}

	commits := make([]Commit, 0, len(hashes))
	for _, hash := range hashes {
		commit, commitErr := c.Commit(ctx, hash)
		if commitErr != nil {
			return nil, commitErr
		}
		commits = append(commits, commit)
	}

	return commits, nil
}

// Commit returns the metadata of one commit.
func (c *Clone) Commit(_ context.Context, hash string) (Commit, error) {
	commit, err := c.commitObject(hash)
	if err != nil {
		return Commit{}, err
	}

	return Commit{
		Hash:    commit.Hash.String(),
		Author:  Signature{Name: commit.Author.Name, Email: commit.Author.Email},
		When:    commit.Author.When,
		Message: commit.Message,
	}, nil
}

// RawDiff returns the unified diff from one commit to another.
func (c *Clone) RawDiff(ctx context.Context, from, to string, contextLines int) (string, error) {
	left, err := c.commitObject(from)
	if err != nil {
		return "", err
	}
	right, err := c.commitObject(to)
	if err != nil {
		return "", err
	}

	patch, err := left.PatchContext(ctx, right)
	if err != nil {
		return "", fmt.Errorf("failed to compute patch: %w", err)
	}

	var b strings.Builder
	if encErr := diff.NewUnifiedEncoder(&b, contextLines).Encode(patch); encErr != nil {
		return "", fmt.Errorf("failed to encode patch: %w", encErr)
	}

	return b.String(), nil
}

// PushBranch points the remote branch at hash if it is still at
// expectedOld. An empty expectedOld requires the branch to be absent.
func (c *Clone) PushBranch(ctx context.Context, hash, branch, expectedOld string) error {
	ref := plumbing.NewBranchReferenceName(branch).String()

	c.logger.Info("pushing branch", zap.String("branch", branch), zap.String("hash", hash))

	err := c.runner.Push(ctx, c.remote, hash+":"+ref, PushOptions{
		Lease: &Lease{Ref: ref, Expected: expectedOld},
	})
	if err != nil {
		c.logger.Error("failed to push branch", zap.String("branch", branch), zap.Error(err))
		return c.pushError(branch, err)
	}

	return nil
}

// DeleteBranch removes the remote branch if it is still at expectedOld.
func (c *Clone) DeleteBranch(ctx context.Context, branch, expectedOld string) error {
	ref := plumbing.NewBranchReferenceName(branch).String()

	c.logger.Info("deleting branch", zap.String("branch", branch))

	err := c.runner.Push(ctx, c.remote, ":"+ref, PushOptions{
		Lease: &Lease{Ref: ref, Expected: expectedOld},
	})
	if err != nil {
		c.logger.Error("failed to delete branch", zap.String("branch", branch), zap.Error(err))
		return c.pushError(branch, err)
	}

	return nil
}

func (c *Clone) pushError(branch string, err error) error {
	if errors.Is(err, ErrStaleReference) {
		return fmt.Errorf("%w: %s changed on %s: %w", ErrStaleReference, branch, c.remote, err)
	}

	return fmt.Errorf("%w: %w", ErrPushFailed, err)
}

// SquashMerge lands a review branch as a single commit on its base and
// returns the new base hash.
func (c *Clone) SquashMerge(ctx context.Context, req SquashRequest) (string, error) {
	c.logger.Info("landing branch",
		zap.String("branch", req.Branch),
		zap.String("base", req.Base))

	baseHash, err := c.ResolveRemoteBranch(ctx, req.Base)
	if err != nil {
		return "", err
	}

	if checkoutErr := c.runner.Checkout(ctx, landBranch, baseHash); checkoutErr != nil {
		return "", fmt.Errorf("%w: %w", ErrLandFailed, checkoutErr)
	}

	if mergeErr := c.runner.Merge(ctx, req.BranchHash, MergeOptions{Squash: true}); mergeErr != nil {
		_, _ = c.runner.Call(ctx, "reset", "--hard", baseHash)
		return "", fmt.Errorf("%w: merge conflict: %w", ErrLandFailed, mergeErr)
	}

	author := req.Author
	if commitErr := c.runner.Commit(ctx, CommitOptions{Message: req.Message, Author: &author}); commitErr != nil {
		_, _ = c.runner.Call(ctx, "reset", "--hard", baseHash)
		return "", fmt.Errorf("%w: %w", ErrLandFailed, commitErr)
	}

	landed, err := c.runner.RevParse(ctx, "HEAD")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLandFailed, err)
	}

	if pushErr := c.PushBranch(ctx, landed, req.Base, baseHash); pushErr != nil {
		return "", pushErr
	}

	if reopenErr := c.reopen(); reopenErr != nil {
		return "", reopenErr
	}

	c.logger.Info("branch landed",
		zap.String("branch", req.Branch),
		zap.String("landed", landed))

	return landed, nil
}

func (c *Clone) commitObject(hash string) (*object.Commit, error) {
	if !plumbing.IsHash(hash) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}

	commit, err := c.repository().CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCommitNotFound, hash, err)
	}

	return commit, nil
}
