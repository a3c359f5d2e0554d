// Package gittest builds throwaway repositories for tests: a bare central
// repository, a developer clone pushing to it and a daemon clone fetching
// from it.
package gittest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/arcyd/arcyd/internal/git"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const Remote = "origin"

var (
	Developer = git.Signature{Name: "Dev Eloper", Email: "dev@example.com"}
	Daemon    = git.Signature{Name: "Arcyd", Email: "arcyd@example.com"}
)

// Env isolates git from the user's configuration.
func Env() []string {
	return []string{
		"GIT_CONFIG_GLOBAL=" + os.DevNull,
		"GIT_CONFIG_NOSYSTEM=1",
	}
}

type Scenario struct {
	Central string
	Dev     *git.Runner
	Clone   *git.Clone
}

// NewScenario creates the three repositories with one commit on master.
func NewScenario(t *testing.T) *Scenario {
	t.Helper()

	ctx := context.Background()
	root := t.TempDir()

	central := filepath.Join(root, "central")
	devDir := filepath.Join(root, "dev")
	arcydDir := filepath.Join(root, "arcyd")

	for _, dir := range []string{central, devDir, arcydDir} {
		require.NoError(t, os.MkdirAll(dir, 0o750))
	}

	centralRunner := git.NewRunner(central, git.WithEnv(Env()...))
	_, err := centralRunner.Call(ctx, "-c", "init.defaultBranch=master", "init", "--bare")
	require.NoError(t, err)

	dev := git.NewRunner(devDir, git.WithEnv(Env()...), git.WithCommitter(Developer))
	_, err = dev.Call(ctx, "-c", "init.defaultBranch=master", "init")
	require.NoError(t, err)
	_, err = dev.Call(ctx, "remote", "add", Remote, central)
	require.NoError(t, err)

	s := &Scenario{Central: central, Dev: dev}
	s.CommitFile(t, "README", "readme\n", "initial commit")
	s.Push(t, "master")

	arcyd := git.NewRunner(arcydDir, git.WithEnv(Env()...))
	_, err = arcyd.Call(ctx, "-c", "init.defaultBranch=master", "init")
	require.NoError(t, err)
	_, err = arcyd.Call(ctx, "remote", "add", Remote, central)
	require.NoError(t, err)
	require.NoError(t, arcyd.Fetch(ctx, Remote, true))

	s.Clone, err = git.OpenClone("myrepo", arcydDir, Remote, Daemon, zaptest.NewLogger(t), git.WithEnv(Env()...))
	require.NoError(t, err)

	return s
}

// CommitFile writes name in the developer clone and commits it.
func (s *Scenario) CommitFile(t *testing.T, name, content, message string) string {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(s.Dev.Dir(), name), []byte(content), 0o600))
	require.NoError(t, s.Dev.Add(ctx, name))
	require.NoError(t, s.Dev.Commit(ctx, git.CommitOptions{Message: message}))

	return s.Head(t)
}

// Head returns the developer clone's HEAD.
func (s *Scenario) Head(t *testing.T) string {
	t.Helper()

	hash, err := s.Dev.RevParse(context.Background(), "HEAD")
	require.NoError(t, err)

	return hash
}

// Checkout switches the developer clone to branch, creating it from
// startPoint when given.
func (s *Scenario) Checkout(t *testing.T, branch, startPoint string) {
	t.Helper()
	require.NoError(t, s.Dev.Checkout(context.Background(), branch, startPoint))
}

// Push pushes a local branch of the developer clone to the same name.
func (s *Scenario) Push(t *testing.T, branch string) {
	t.Helper()
	s.PushAs(t, branch, branch)
}

// PushAs pushes src of the developer clone to the remote branch dst.
func (s *Scenario) PushAs(t *testing.T, src, dst string) {
	t.Helper()
	require.NoError(t, s.Dev.Push(context.Background(), Remote, src+":refs/heads/"+dst, git.PushOptions{}))
}

// ForcePush force-pushes a local branch of the developer clone.
func (s *Scenario) ForcePush(t *testing.T, branch string) {
	t.Helper()
	require.NoError(t, s.Dev.Push(context.Background(), Remote, branch+":refs/heads/"+branch, git.PushOptions{Force: true}))
}

// Fetch updates the daemon clone.
func (s *Scenario) Fetch(t *testing.T) {
	t.Helper()
	require.NoError(t, s.Clone.Fetch(context.Background()))
}

// CentralRefs lists refs of the central repository under prefix.
func (s *Scenario) CentralRefs(t *testing.T, prefix string) map[string]string {
	t.Helper()

	refs, err := s.Dev.LsRemote(context.Background(), Remote, prefix+"*")
	require.NoError(t, err)

	return refs
}
