package tracker

import (
	"context"
	"fmt"

	"github.com/arcyd/arcyd/internal/branch"
	"go.uber.org/zap"
)

type Service struct {
	states *Repository

	logger *zap.Logger
}

func NewService(states *Repository, logger *zap.Logger) *Service {
	return &Service{
		states: states,

		logger: logger,
	}
}

// Get retrieves the stored state of a branch.
func (s *Service) Get(ctx context.Context, repo, name string) (*BranchState, error) {
	state, err := s.states.Get(ctx, repo, name)
	if err != nil {
		return nil, err
	}

	return state, nil
}

// List retrieves the stored states of a repository.
func (s *Service) List(ctx context.Context, repo string) ([]BranchState, error) {
	s.logger.Debug("listing branch states", zap.String("repo", repo))

	states, err := s.states.ListByRepo(ctx, repo)
	if err != nil {
		s.logger.Error("failed to list branch states", zap.String("repo", repo), zap.Error(err))
		return nil, err
	}

	return states, nil
}

// Lookup loads the states of a repository for branch enumeration.
func (s *Service) Lookup(ctx context.Context, repo string) (branch.StateLookup, error) {
	states, err := s.List(ctx, repo)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]branch.State, len(states))
	for _, st := range states {
		byName[st.Branch] = st.State
	}

	return func(name string) (branch.State, bool) {
		st, ok := byName[name]
		return st, ok
	}, nil
}

// Save persists the state of a branch, an empty state deletes it.
func (s *Service) Save(ctx context.Context, b *branch.Branch) error {
	logger := s.logger.With(zap.String("repo", b.RepoName()), zap.String("branch", b.ReviewBranchName()))

	state := b.State()
	if state == (branch.State{}) {
		logger.Debug("clearing branch state")
		if err := s.states.Delete(ctx, b.RepoName(), b.ReviewBranchName()); err != nil {
			logger.Error("failed to clear branch state", zap.Error(err))
			return err
		}
		return nil
	}

	logger.Debug("saving branch state", zap.String("verified_hash", state.VerifiedHash))
	if err := s.states.Put(ctx, b.RepoName(), b.ReviewBranchName(), state); err != nil {
		logger.Error("failed to save branch state", zap.Error(err))
		return err
	}

	return nil
}

// Prune removes the states of branches that no longer exist.
func (s *Service) Prune(ctx context.Context, repo string, live []string) (int, error) {
	states, err := s.List(ctx, repo)
	if err != nil {
		return 0, err
	}

	exists := make(map[string]struct{}, len(live))
	for _, name := range live {
		exists[name] = struct{}{}
	}

	pruned := 0
	for _, st := range states {
		if _, ok := exists[st.Branch]; ok {
			continue
		}

		s.logger.Info("pruning state of vanished branch", zap.String("repo", repo), zap.String("branch", st.Branch))
		if delErr := s.states.Delete(ctx, repo, st.Branch); delErr != nil {
			return pruned, fmt.Errorf("failed to prune %s: %w", st.Branch, delErr)
		}
		pruned++
	}

	return pruned, nil
}
