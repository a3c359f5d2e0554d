package branch

import (
	"context"
	"fmt"
	"strings"

	"github.com/arcyd/arcyd/internal/naming"
)

// GetManagedBranches returns a Branch for every remote branch that the
// naming scheme recognises, in the order the clone lists them.
func GetManagedBranches(
	ctx context.Context,
	clone Backend,
	repoName string,
	scheme naming.Naming,
	lookup StateLookup,
	urlFormat string,
) ([]*Branch, error) {
	refs, err := clone.RemoteBranches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote branches: %w", err)
	}

	var branches []*Branch
	for _, ref := range refs {
		identity, ok := scheme.Parse(ref.Name)
		if !ok {
			continue
		}

		var state State
		if lookup != nil {
			state, _ = lookup(ref.Name)
		}

		branches = append(branches, New(clone, identity, ref.Name, ref.Hash, state, repoName, FormatURL(urlFormat, repoName, ref.Name)))
	}

	return branches, nil
}

// FormatURL expands "{repo}" and "{branch}" in format.
func FormatURL(format, repo, branch string) string {
	if format == "" {
		return ""
	}

	return strings.NewReplacer("{repo}", repo, "{branch}", branch).Replace(format)
}
