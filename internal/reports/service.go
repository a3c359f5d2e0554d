package reports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	// Reports kept per repository, zero keeps all
	History int
}

type Service struct {
	config Config

	reports *Repository

	logger *zap.Logger
}

func NewService(config Config, reports *Repository, logger *zap.Logger) *Service {
	return &Service{
		config: config,

		reports: reports,

		logger: logger,
	}
}

// Start records that a cycle began processing repo.
func (s *Service) Start(ctx context.Context, repo string, cycleID uuid.UUID) (*Report, error) {
	s.logger.Debug("starting report", zap.String("repo", repo), zap.String("cycle_id", cycleID.String()))

	report, err := s.reports.Create(ctx, &ReportDraft{
		Repo:      repo,
		CycleID:   cycleID,
		Status:    StatusUpdating,
		StartedAt: time.Now(),
	})
	if err != nil {
		s.logger.Error("failed to create report", zap.String("repo", repo), zap.Error(err))
		return nil, err
	}

	return report, nil
}

// Processing records the branch currently being processed.
func (s *Service) Processing(ctx context.Context, id uuid.UUID, name string) error {
	return s.update(ctx, id, func(r *Report) {
		r.SetBranch(name)
	})
}

// AddBranch appends the result of one branch.
func (s *Service) AddBranch(ctx context.Context, id uuid.UUID, result BranchResult) error {
	return s.update(ctx, id, func(r *Report) {
		r.AddBranch(result)
	})
}

// Finish closes the report and trims the history of the repository.
func (s *Service) Finish(ctx context.Context, report *Report, status Status, text string) error {
	if err := s.update(ctx, report.ID, func(r *Report) {
		r.Finish(status, text, time.Now())
	}); err != nil {
		return err
	}

	if s.config.History <= 0 {
		return nil
	}

	deleted, err := s.reports.DeleteOlderThan(ctx, report.Repo, s.config.History)
	if err != nil {
		s.logger.Error("failed to trim report history", zap.String("repo", report.Repo), zap.Error(err))
		return err
	}
	if deleted > 0 {
		s.logger.Debug("report history trimmed", zap.String("repo", report.Repo), zap.Int("deleted", deleted))
	}

	return nil
}

// Latest retrieves the most recent report of a repository.
func (s *Service) Latest(ctx context.Context, repo string) (*Report, error) {
	report, err := s.reports.GetLatestByRepo(ctx, repo)
	if err != nil {
		return nil, err
	}

	return report, nil
}

// History retrieves the reports of a repository, newest first.
func (s *Service) History(ctx context.Context, repo string, limit int) ([]Report, error) {
	s.logger.Debug("listing reports", zap.String("repo", repo))

	reports, err := s.reports.ListByRepo(ctx, repo, limit)
	if err != nil {
		s.logger.Error("failed to list reports", zap.String("repo", repo), zap.Error(err))
		return nil, err
	}

	return reports, nil
}

func (s *Service) update(ctx context.Context, id uuid.UUID, updater func(*Report)) error {
	err := s.reports.Update(ctx, id, func(r *Report) error {
		updater(r)
		return nil
	})
	if err != nil {
		s.logger.Error("failed to update report", zap.String("id", id.String()), zap.Error(err))
		return err
	}

	return nil
}
