package git

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

const defaultTimeout = 5 * time.Minute

// Runner executes git commands in one working directory. Every method is a
// single git invocation.
type Runner struct {
	dir     string
	timeout time.Duration
	env     []string
}

type RunnerOption func(*Runner)

// WithTimeout sets the timeout applied when the context has no deadline.
func WithTimeout(timeout time.Duration) RunnerOption {
	return func(r *Runner) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithEnv adds environment variables to every invocation.
func WithEnv(env ...string) RunnerOption {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// WithCommitter sets the identity used for commits and merges.
func WithCommitter(sig Signature) RunnerOption {
	return func(r *Runner) {
		if sig.Name == "" || sig.Email == "" {
			return
		}
		r.env = append(r.env,
			"GIT_COMMITTER_NAME="+sig.Name,
			"GIT_COMMITTER_EMAIL="+sig.Email,
			"GIT_AUTHOR_NAME="+sig.Name,
			"GIT_AUTHOR_EMAIL="+sig.Email,
		)
	}
}

func NewRunner(dir string, opts ...RunnerOption) *Runner {
	r := &Runner{
		dir:     dir,
		timeout: defaultTimeout,
		env:     nil,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Dir returns the working directory.
func (r *Runner) Dir() string {
	return r.dir
}

// Call runs git with args and returns its trimmed stdout.
func (r *Runner) Call(ctx context.Context, args ...string) (string, error) {
	return r.run(ctx, false, args...)
}

func (r *Runner) run(ctx context.Context, remote bool, args ...string) (string, error) {
	// a started command runs to completion or timeout, never to the caller's
	// cancellation
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")
	cmd.Env = append(cmd.Env, r.env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &CommandError{
			Args:     args,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Err:      err,
			Remote:   remote,
			TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
		}
	}

	return strings.TrimRight(stdout.String(), "\n"), nil
}

// Fetch fetches all branches of remote, optionally pruning deleted ones.
func (r *Runner) Fetch(ctx context.Context, remote string, prune bool) error {
	args := []string{"fetch"}
	if prune {
		args = append(args, "--prune")
	}
	args = append(args, remote)

	_, err := r.run(ctx, true, args...)
	return err
}

// Lease makes a push conditional on the current value of a remote ref. An
// empty Expected requires the ref to be absent.
type Lease struct {
	Ref      string
	Expected string
}

type PushOptions struct {
	Force bool
	Lease *Lease
}

// Push pushes refspec to remote.
func (r *Runner) Push(ctx context.Context, remote, refspec string, opts PushOptions) error {
	args := []string{"push"}
	if opts.Force {
		args = append(args, "--force")
	}
	if opts.Lease != nil {
		args = append(args, "--force-with-lease="+opts.Lease.Ref+":"+opts.Lease.Expected)
	}
	args = append(args, remote, refspec)

	_, err := r.run(ctx, true, args...)
	return err
}

// LsRemote returns the hashes of the requested refs on remote. Missing refs
// are absent from the result.
func (r *Runner) LsRemote(ctx context.Context, remote string, refs ...string) (map[string]string, error) {
	args := append([]string{"ls-remote", remote}, refs...)

	out, err := r.run(ctx, true, args...)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for line := range strings.Lines(out) {
		hash, name, ok := strings.Cut(strings.TrimSpace(line), "\t")
		if !ok {
			continue
		}
		result[name] = hash
	}

	return result, nil
}

// Checkout switches to branch. With a start point the branch is created or
// reset to it.
func (r *Runner) Checkout(ctx context.Context, branch, startPoint string) error {
	args := []string{"checkout"}
	if startPoint != "" {
		args = append(args, "-B", branch, startPoint)
	} else {
		args = append(args, branch)
	}

	_, err := r.Call(ctx, args...)
	return err
}

type MergeOptions struct {
	NoFF    bool
	Squash  bool
	Message string
}

// Merge merges rev into the current branch.
func (r *Runner) Merge(ctx context.Context, rev string, opts MergeOptions) error {
	args := []string{"merge"}
	if opts.NoFF {
		args = append(args, "--no-ff")
	}
	if opts.Squash {
		args = append(args, "--squash")
	}
	if opts.Message != "" && !opts.Squash {
		args = append(args, "-m", opts.Message)
	} else if !opts.Squash {
		args = append(args, "--no-edit")
	}
	args = append(args, rev)

	_, err := r.Call(ctx, args...)
	return err
}

// RebaseOnto rebases the current branch onto newBase. When upstream is set
// only commits after upstream are replayed.
func (r *Runner) RebaseOnto(ctx context.Context, newBase, upstream string) error {
	args := []string{"rebase"}
	if upstream != "" {
		args = append(args, "--onto", newBase, upstream)
	} else {
		args = append(args, newBase)
	}

	_, err := r.Call(ctx, args...)
	return err
}

// RevParse resolves rev to a full hash.
func (r *Runner) RevParse(ctx context.Context, rev string) (string, error) {
	return r.Call(ctx, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
}

// Add stages paths.
func (r *Runner) Add(ctx context.Context, paths ...string) error {
	_, err := r.Call(ctx, append([]string{"add", "--"}, paths...)...)
	return err
}

type CommitOptions struct {
	Message    string
	Author     *Signature
	AllowEmpty bool
}

// Commit commits the index.
func (r *Runner) Commit(ctx context.Context, opts CommitOptions) error {
	args := []string{"commit", "--no-verify", "-m", opts.Message}
	if opts.Author != nil {
		args = append(args, "--author="+opts.Author.String())
	}
	if opts.AllowEmpty {
		args = append(args, "--allow-empty")
	}

	_, err := r.Call(ctx, args...)
	return err
}

// RevList returns the hashes reachable from tip but not from exclude, newest
// first.
func (r *Runner) RevList(ctx context.Context, tip, exclude string) ([]string, error) {
	args := []string{"rev-list", tip}
	if exclude != "" {
		args = append(args, "^"+exclude)
	}

	out, err := r.Call(ctx, args...)
	if err != nil {
		return nil, err
	}

	return strings.Fields(out), nil
}
