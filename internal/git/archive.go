package git

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"go.uber.org/zap"
)

const archivePrefix = "refs/arcyd/"

// ArchiveRefName returns the ref recording outcome for a branch. The name
// only depends on its arguments so repeated archival maps to one ref.
func ArchiveRefName(outcome Outcome, base, branchHash string) string {
	return archivePrefix + string(outcome) + "/" + base + "/" + branchHash
}

// ArchiveToLanded records that the branch at branchHash was landed on base
// as landedHash.
func (c *Clone) ArchiveToLanded(
	ctx context.Context,
	branchHash, branchName, baseName, landedHash, message string,
) (string, error) {
	return c.archive(ctx, archiveRequest{
		outcome:    OutcomeLanded,
		branchHash: branchHash,
		branchName: branchName,
		baseName:   baseName,
		landedHash: landedHash,
		message:    message,
	})
}

// ArchiveToAbandoned records that the branch at branchHash was abandoned.
func (c *Clone) ArchiveToAbandoned(ctx context.Context, branchHash, branchName, baseName string) (string, error) {
	return c.archive(ctx, archiveRequest{
		outcome:    OutcomeAbandoned,
		branchHash: branchHash,
		branchName: branchName,
		baseName:   baseName,
	})
}

type archiveRequest struct {
	outcome    Outcome
	branchHash string
	branchName string
	baseName   string
	landedHash string
	message    string
}

func (c *Clone) archive(ctx context.Context, req archiveRequest) (string, error) {
	refName := ArchiveRefName(req.outcome, req.baseName, req.branchHash)
	branchRef := plumbing.NewBranchReferenceName(req.branchName).String()

	logger := c.logger.With(
		zap.String("branch", req.branchName),
		zap.String("outcome", string(req.outcome)),
		zap.String("ref", refName),
	)
	logger.Info("archiving branch")

	branch, err := c.commitObject(req.branchHash)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrArchiveFailed, err)
	}

	remote, err := c.runner.LsRemote(ctx, c.remote, refName, branchRef)
	if err != nil {
		logger.Error("failed to list remote refs", zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrArchiveFailed, err)
	}

	if existing, ok := remote[refName]; ok {
		logger.Info("archive ref already exists", zap.String("hash", existing))
		c.setLocalRef(refName, existing)
		return refName, nil
	}

	if current, ok := remote[branchRef]; ok && current != req.branchHash {
		return "", fmt.Errorf("%w: %s is at %s, expected %s", ErrStaleReference, req.branchName, current, req.branchHash)
	}

	hash, err := c.storeArchiveCommit(branch, req)
	if err != nil {
		logger.Error("failed to store archive commit", zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrArchiveFailed, err)
	}

	pushErr := c.runner.Push(ctx, c.remote, hash+":"+refName, PushOptions{
		Lease: &Lease{Ref: refName, Expected: ""},
	})
	if errors.Is(pushErr, ErrStaleReference) {
		// archived concurrently
		if again, lsErr := c.runner.LsRemote(ctx, c.remote, refName); lsErr == nil && again[refName] != "" {
			c.setLocalRef(refName, again[refName])
			return refName, nil
		}
	}
	if pushErr != nil {
		logger.Error("failed to push archive ref", zap.Error(pushErr))
		return "", c.pushError(refName, pushErr)
	}

	c.setLocalRef(refName, hash)

	logger.Info("branch archived", zap.String("hash", hash))

	return refName, nil
}

// storeArchiveCommit writes a commit with the branch tip as parent and the
// same tree, so the archive keeps the reviewed content reachable.
func (c *Clone) storeArchiveCommit(branch *object.Commit, req archiveRequest) (string, error) {
	now := time.Now()
	sig := object.Signature{Name: c.committer.Name, Email: c.committer.Email, When: now}
	if sig.Name == "" {
		sig.Name = "arcyd"
	}
	if sig.Email == "" {
		sig.Email = "arcyd@localhost"
	}

	parents := []plumbing.Hash{branch.Hash}
	if req.landedHash != "" && c.HasCommit(req.landedHash) {
		parents = append(parents, plumbing.NewHash(req.landedHash))
	}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      archiveMessage(req, now),
		TreeHash:     branch.TreeHash,
		ParentHashes: parents,
	}

	store := c.repository().Storer
	eo := store.NewEncodedObject()
	if err := commit.Encode(eo); err != nil {
		return "", fmt.Errorf("failed to encode commit: %w", err)
	}

	hash, err := store.SetEncodedObject(eo)
	if err != nil {
		return "", fmt.Errorf("failed to store commit: %w", err)
	}

	return hash.String(), nil
}

func (c *Clone) setLocalRef(refName, hash string) {
	if !plumbing.IsHash(hash) {
		return
	}

	ref := plumbing.NewHashReference(plumbing.ReferenceName(refName), plumbing.NewHash(hash))
	if err := c.repository().Storer.SetReference(ref); err != nil {
		c.logger.Warn("failed to set local archive ref", zap.String("ref", refName), zap.Error(err))
	}
}

func archiveMessage(req archiveRequest, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "arcyd %s %s\n\n", req.outcome, req.branchName)
	fmt.Fprintf(&b, "branch: %s\n", req.branchName)
	fmt.Fprintf(&b, "base: %s\n", req.baseName)
	fmt.Fprintf(&b, "branch-hash: %s\n", req.branchHash)
	if req.landedHash != "" {
		fmt.Fprintf(&b, "landed-hash: %s\n", req.landedHash)
	}
	fmt.Fprintf(&b, "archived-at: %s\n", now.UTC().Format(time.RFC3339))
	if req.message != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(req.message))
		b.WriteString("\n")
	}

	return b.String()
}
