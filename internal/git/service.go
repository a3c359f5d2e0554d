package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v6"
	"go.uber.org/zap"
)

type Service struct {
	config Config

	logger *zap.Logger
}

// NewService creates a new GitService.
func NewService(config Config, logger *zap.Logger) *Service {
	if config.Remote == "" {
		config.Remote = git.DefaultRemoteName
	}

	return &Service{
		config: config,
		logger: logger,
	}
}

// Version checks that the git CLI is usable and returns its version line.
func (s *Service) Version(ctx context.Context) (string, error) {
	out, err := NewRunner(os.TempDir(), WithTimeout(s.config.Timeout)).Call(ctx, "--version")
	if err != nil {
		return "", fmt.Errorf("git cli unavailable: %w", err)
	}

	return out, nil
}

// Directory returns the default clone directory for a repository.
func (s *Service) Directory(name string) string {
	return filepath.Join(s.config.DefaultDir, name)
}

// Open returns the working clone for a repository, cloning it first if the
// directory does not hold one yet.
func (s *Service) Open(ctx context.Context, req OpenRequest) (*Clone, error) {
	if req.Directory == "" {
		req.Directory = s.Directory(req.Name)
	}

	auth := s.config.DefaultAuth()
	if req.Auth != nil && !req.Auth.empty() {
		auth = *req.Auth
	}

	runner := NewRunner(req.Directory,
		WithTimeout(s.config.Timeout),
		WithEnv(auth.env()...),
		WithCommitter(s.config.Committer),
	)

	if _, err := git.PlainOpen(req.Directory); err == nil {
		s.logger.Info("opening repository",
			zap.String("name", req.Name),
			zap.String("directory", req.Directory))

		return newClone(req.Name, req.Directory, s.config.Remote, runner, s.config.Committer, s.logger)
	} else if !errors.Is(err, git.ErrRepositoryNotExists) {
		s.logger.Error("failed to open repository", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidRepository, err)
	}

	if err := s.clone(ctx, req, auth); err != nil {
		return nil, err
	}

	return newClone(req.Name, req.Directory, s.config.Remote, runner, s.config.Committer, s.logger)
}

func (s *Service) clone(ctx context.Context, req OpenRequest, auth Auth) error {
	s.logger.Info("cloning repository",
		zap.String("name", req.Name),
		zap.String("url", req.URL),
		zap.String("directory", req.Directory))

	method, err := auth.method()
	if err != nil {
		return err
	}

	cloneOptions := &git.CloneOptions{
		URL:        req.URL,
		RemoteName: s.config.Remote,
		Auth:       method,
	}

	if mkErr := os.MkdirAll(filepath.Dir(req.Directory), 0o750); mkErr != nil {
		return fmt.Errorf("%w: %w", ErrCloneFailed, mkErr)
	}

	if _, cloneErr := git.PlainCloneContext(ctx, req.Directory, cloneOptions); cloneErr != nil {
		s.logger.Error("failed to clone repository", zap.Error(cloneErr))
		_ = os.RemoveAll(req.Directory)
		return fmt.Errorf("%w: %w", ErrCloneFailed, cloneErr)
	}

	s.logger.Info("repository cloned successfully",
		zap.String("url", req.URL),
		zap.String("directory", req.Directory))

	return nil
}
