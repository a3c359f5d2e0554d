package branch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arcyd/arcyd/internal/differ"
	"github.com/arcyd/arcyd/internal/git"
	"github.com/arcyd/arcyd/internal/naming"
	"github.com/samber/lo"
)

const shortHashLen = 12

// Branch is one managed review branch as seen at enumeration time. The tip
// hash is a snapshot; a Branch does not observe pushes made after it was
// built.
type Branch struct {
	clone    Backend
	identity naming.ReviewBranch
	name     string
	hash     string
	state    State
	repoName string
	url      string
}

func New(clone Backend, identity naming.ReviewBranch, name, hash string, state State, repoName, url string) *Branch {
	return &Branch{
		clone:    clone,
		identity: identity,
		name:     name,
		hash:     hash,
		state:    state,
		repoName: repoName,
		url:      url,
	}
}

func (b *Branch) ReviewBranchName() string {
	return b.name
}

func (b *Branch) ReviewBranchHash() string {
	return b.hash
}

func (b *Branch) BaseBranchName() string {
	return b.identity.Base
}

func (b *Branch) Description() string {
	return b.identity.Description
}

func (b *Branch) Identity() naming.ReviewBranch {
	return b.identity
}

func (b *Branch) RepoName() string {
	return b.repoName
}

func (b *Branch) BranchURL() string {
	return b.url
}

// State returns the marker the caller must persist after a mutation.
func (b *Branch) State() State {
	return b.state
}

func (b *Branch) ReviewID() (int, bool) {
	if b.state.ReviewID == nil {
		return 0, false
	}

	return *b.state.ReviewID, true
}

// IsNew reports whether no review has been bound to the branch yet.
func (b *Branch) IsNew() bool {
	return b.state.ReviewID == nil
}

func (b *Branch) IsStatusBad() bool {
	return b.state.Status != "" && b.state.Status != StatusOK
}

func (b *Branch) IsStatusBadPreReview() bool {
	return b.state.Status == StatusBadPreReview
}

func (b *Branch) IsStatusBadLand() bool {
	return b.state.Status == StatusBadLand
}

// HasNewCommits compares both the tip and the merge-base with the base
// branch against what was last verified, so a rebase that moves ancestry is
// reported even when the tip looks familiar.
func (b *Branch) HasNewCommits(ctx context.Context) (bool, error) {
	if b.state.VerifiedHash == "" || b.state.VerifiedHash != b.hash {
		return true, nil
	}

	if b.state.VerifiedBase == "" {
		return false, nil
	}

	base, err := b.mergeBase(ctx)
	if err != nil {
		return false, err
	}

	return base != b.state.VerifiedBase, nil
}

// DescribeNewCommits lists the commits since the last verified tip, newest
// first, one "<short hash> <subject>" per line.
func (b *Branch) DescribeNewCommits(ctx context.Context) (string, error) {
	exclude := b.state.VerifiedHash
	if exclude == "" || !b.clone.HasCommit(exclude) {
		base, err := b.mergeBase(ctx)
		if err != nil {
			exclude = ""
		} else {
			exclude = base
		}
	}

	commits, err := b.clone.Commits(ctx, exclude, b.hash)
	if err != nil {
		return "", fmt.Errorf("failed to list new commits on %s: %w", b.name, err)
	}

	if len(commits) == 0 {
		return "no new commits", nil
	}

	lines := make([]string, 0, len(commits))
	for _, c := range commits {
		lines = append(lines, fmt.Sprintf("%s %s", shortHash(c.Hash), c.Subject()))
	}

	return strings.Join(lines, "\n"), nil
}

// MakeRawDiff diffs the merge-base against the tip with full context.
func (b *Branch) MakeRawDiff(ctx context.Context) (string, error) {
	return b.renderDiff(ctx, differ.FullContextLines)
}

// MakeDiff returns the diff rendered with as much context as fits limits.
func (b *Branch) MakeDiff(ctx context.Context, limits differ.Limits) (differ.Result, error) {
	return differ.Reduce(ctx, b.renderDiff, limits)
}

func (b *Branch) renderDiff(ctx context.Context, contextLines int) (string, error) {
	base, err := b.mergeBase(ctx)
	if err != nil {
		return "", err
	}

	diff, err := b.clone.RawDiff(ctx, base, b.hash, contextLines)
	if err != nil {
		return "", fmt.Errorf("failed to diff %s: %w", b.name, err)
	}

	return diff, nil
}

func (b *Branch) MakeMessageDigest(ctx context.Context) (string, error) {
	commits, err := b.commitRange(ctx)
	if err != nil {
		return "", err
	}

	if len(commits) == 1 {
		return strings.TrimSpace(commits[0].Message), nil
	}

	parts := make([]string, 0, len(commits)+1)
	parts = append(parts, commits[0].Subject())
	for _, c := range commits {
		parts = append(parts, strings.TrimSpace(c.Message))
	}

	return strings.Join(parts, "\n\n"), nil
}

func (b *Branch) GetCommitMessageFromTip(ctx context.Context) (string, error) {
	if _, err := b.commitRange(ctx); err != nil {
		return "", err
	}

	tip, err := b.clone.Commit(ctx, b.hash)
	if err != nil {
		return "", fmt.Errorf("failed to read tip of %s: %w", b.name, err)
	}

	return strings.TrimSpace(tip.Message), nil
}

// GetAnyAuthorEmails returns the distinct author emails in commit order.
func (b *Branch) GetAnyAuthorEmails(ctx context.Context) ([]string, error) {
	commits, err := b.commitRange(ctx)
	if err != nil {
		return nil, err
	}

	return lo.Uniq(lo.Map(commits, func(c git.Commit, _ int) string {
		return c.Author.Email
	})), nil
}

func (b *Branch) GetAuthorNamesEmails(ctx context.Context) ([]git.Signature, error) {
	commits, err := b.commitRange(ctx)
	if err != nil {
		return nil, err
	}

	return lo.Uniq(lo.Map(commits, func(c git.Commit, _ int) git.Signature {
		return c.Author
	})), nil
}

func (b *Branch) MarkOkNewReview(ctx context.Context, reviewID int) error {
	if b.state.ReviewID != nil {
		return fmt.Errorf("%w: %s has review %d", ErrAlreadyBound, b.name, *b.state.ReviewID)
	}

	return b.mark(ctx, lo.ToPtr(reviewID), StatusOK)
}

func (b *Branch) MarkOkInReview(ctx context.Context) error {
	if b.state.ReviewID == nil {
		return fmt.Errorf("%w: %s", ErrNotBound, b.name)
	}

	return b.mark(ctx, b.state.ReviewID, StatusOK)
}

// MarkBadPreReview records the tip so the branch is not retried until it
// changes.
func (b *Branch) MarkBadPreReview(ctx context.Context) error {
	if b.state.ReviewID != nil {
		return fmt.Errorf("%w: %s has review %d", ErrAlreadyBound, b.name, *b.state.ReviewID)
	}

	return b.mark(ctx, nil, StatusBadPreReview)
}

func (b *Branch) MarkNewBadInReview(ctx context.Context, reviewID int) error {
	if b.state.ReviewID != nil {
		return fmt.Errorf("%w: %s has review %d", ErrAlreadyBound, b.name, *b.state.ReviewID)
	}

	return b.mark(ctx, lo.ToPtr(reviewID), StatusBadInReview)
}

func (b *Branch) MarkBadInReview(ctx context.Context) error {
	if b.state.ReviewID == nil {
		return fmt.Errorf("%w: %s", ErrNotBound, b.name)
	}

	return b.mark(ctx, b.state.ReviewID, StatusBadInReview)
}

func (b *Branch) MarkBadLand(ctx context.Context) error {
	if b.state.ReviewID == nil {
		return fmt.Errorf("%w: %s", ErrNotBound, b.name)
	}

	return b.mark(ctx, b.state.ReviewID, StatusBadLand)
}

// ClearState forgets everything recorded about the branch.
func (b *Branch) ClearState() {
	b.state = State{}
}

// VerifyReviewBranchBase checks that the base exists on the remote and shares
// history with the branch.
func (b *Branch) VerifyReviewBranchBase(ctx context.Context) error {
	_, err := b.mergeBase(ctx)
	return err
}

// Land squash-merges the branch onto its base, archives it as landed and
// deletes the review branch. It returns the hash of the landed commit.
func (b *Branch) Land(ctx context.Context, message string, author git.Signature) (string, error) {
	if b.state.ReviewID == nil {
		return "", fmt.Errorf("%w: %s", ErrNotBound, b.name)
	}

	landed, err := b.clone.SquashMerge(ctx, git.SquashRequest{
		Branch:     b.name,
		BranchHash: b.hash,
		Base:       b.identity.Base,
		Message:    message,
		Author:     author,
	})
	if err != nil {
		return "", err
	}

	if _, err := b.clone.ArchiveToLanded(ctx, b.hash, b.name, b.identity.Base, landed, message); err != nil {
		return landed, err
	}

	if err := b.clone.DeleteBranch(ctx, b.name, b.hash); err != nil {
		return landed, err
	}

	b.ClearState()

	return landed, nil
}

// Abandon archives the branch as abandoned and deletes it.
func (b *Branch) Abandon(ctx context.Context) error {
	if _, err := b.clone.ArchiveToAbandoned(ctx, b.hash, b.name, b.identity.Base); err != nil {
		return err
	}

	if err := b.clone.DeleteBranch(ctx, b.name, b.hash); err != nil {
		return err
	}

	b.ClearState()

	return nil
}

func (b *Branch) mark(ctx context.Context, reviewID *int, status Status) error {
	base, err := b.mergeBase(ctx)
	if err != nil && !errors.Is(err, ErrInvalidBase) {
		return err
	}

	b.state = State{
		ReviewID:     reviewID,
		VerifiedHash: b.hash,
		VerifiedBase: base,
		Status:       status,
	}

	return nil
}

func (b *Branch) mergeBase(ctx context.Context) (string, error) {
	baseHash, err := b.clone.ResolveRemoteBranch(ctx, b.identity.Base)
	if errors.Is(err, git.ErrBranchNotFound) {
		return "", &InvalidBaseError{Branch: b.name, Base: b.identity.Base, Reason: "base branch does not exist", Err: err}
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve base of %s: %w", b.name, err)
	}

	base, err := b.clone.MergeBase(ctx, b.hash, baseHash)
	if errors.Is(err, git.ErrNoMergeBase) {
		return "", &InvalidBaseError{Branch: b.name, Base: b.identity.Base, Reason: "no common history", Err: err}
	}
	if err != nil {
		return "", fmt.Errorf("failed to find merge-base of %s: %w", b.name, err)
	}

	return base, nil
}

// commitRange returns the commits between merge-base and tip, oldest first.
func (b *Branch) commitRange(ctx context.Context) ([]git.Commit, error) {
	base, err := b.mergeBase(ctx)
	if err != nil {
		return nil, err
	}

	commits, err := b.clone.Commits(ctx, base, b.hash)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits on %s: %w", b.name, err)
	}

	if len(commits) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyRange, b.name)
	}

	return lo.Reverse(commits), nil
}

func shortHash(hash string) string {
	if len(hash) <= shortHashLen {
		return hash
	}

	return hash[:shortHashLen]
}
