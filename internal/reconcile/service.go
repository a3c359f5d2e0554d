package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arcyd/arcyd/internal/branch"
	"github.com/arcyd/arcyd/internal/git"
	"github.com/arcyd/arcyd/internal/metrics"
	"github.com/arcyd/arcyd/internal/naming"
	"github.com/arcyd/arcyd/internal/reports"
	"github.com/arcyd/arcyd/internal/tracker"
	"github.com/arcyd/arcyd/internal/watcher"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultInterval = time.Minute
	defaultWorkers  = 1
)

type Service struct {
	config Config

	opener   Opener
	states   *tracker.Service
	reports  *reports.Service
	reviewer Reviewer
	watcher  *watcher.Watcher
	store    *watcher.Store
	metrics  *metrics.Metrics

	repos []*repo

	cycleMu sync.Mutex

	logger *zap.Logger
}

func NewService(
	config Config,
	opener Opener,
	states *tracker.Service,
	reportsSvc *reports.Service,
	reviewer Reviewer,
	w *watcher.Watcher,
	store *watcher.Store,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*Service, error) {
	if config.Interval <= 0 {
		config.Interval = defaultInterval
	}
	if config.Workers <= 0 {
		config.Workers = defaultWorkers
	}

	repos := make([]*repo, 0, len(config.Repos))
	for _, rc := range config.Repos {
		scheme, err := naming.New(rc.Scheme)
		if err != nil {
			return nil, fmt.Errorf("repo %q: %w", rc.Name, err)
		}
		repos = append(repos, &repo{config: rc, scheme: scheme})
	}

	return &Service{
		config: config,

		opener:   opener,
		states:   states,
		reports:  reportsSvc,
		reviewer: reviewer,
		watcher:  w,
		store:    store,
		metrics:  m,

		repos: repos,

		logger: logger,
	}, nil
}

// Repos returns the names of the configured repositories.
func (s *Service) Repos() []string {
	return lo.Map(s.repos, func(r *repo, _ int) string { return r.config.Name })
}

// Run polls every configured repository until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if err := s.store.Load(s.watcher); err != nil {
		s.logger.Warn("failed to load watcher state, starting empty", zap.Error(err))
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		s.RunCycle(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("reconcile loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunCycle processes every repository once. Repositories run in parallel up
// to the configured number of workers.
func (s *Service) RunCycle(ctx context.Context) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	cycleID := uuid.Must(uuid.NewV7())
	logger := s.logger.With(zap.String("cycle_id", cycleID.String()))
	started := time.Now()

	logger.Info("starting cycle", zap.Int("repos", len(s.repos)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)

	for _, r := range s.repos {
		g.Go(func() error {
			if err := s.processRepo(gctx, cycleID, r); err != nil && !errors.Is(err, ErrBusy) {
				logger.Error("failed to process repo", zap.String("repo", r.config.Name), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := s.store.Save(s.watcher); err != nil {
		logger.Error("failed to save watcher state", zap.Error(err))
	}

	s.metrics.ObserveCycle(time.Since(started))
	logger.Info("cycle completed", zap.Duration("duration", time.Since(started)))
}

// RunRepo processes one repository outside the regular cycle.
func (s *Service) RunRepo(ctx context.Context, name string) error {
	r, ok := lo.Find(s.repos, func(r *repo) bool { return r.config.Name == name })
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRepo, name)
	}

	return s.processRepo(ctx, uuid.Must(uuid.NewV7()), r)
}

func (s *Service) processRepo(ctx context.Context, cycleID uuid.UUID, r *repo) error {
	logger := s.logger.With(zap.String("repo", r.config.Name))

	if !r.mu.TryLock() {
		logger.Info("repo is busy, skipping")
		s.metrics.RepoResult(r.config.Name, "busy")
		return ErrBusy
	}
	defer r.mu.Unlock()

	if skip := s.snoop(ctx, r, logger); skip {
		logger.Debug("snoop url unchanged, skipping")
		s.metrics.RepoResult(r.config.Name, "unchanged")
		return nil
	}

	report, err := s.reports.Start(ctx, r.config.Name, cycleID)
	if err != nil {
		return err
	}

	status, text, err := s.updateRepo(ctx, r, report, logger)
	r.synced = err == nil
	if finishErr := s.reports.Finish(ctx, report, status, text); finishErr != nil {
		logger.Error("failed to finish report", zap.Error(finishErr))
	}

	s.metrics.RepoResult(r.config.Name, string(status))

	return err
}

// snoop reports whether the repo can be skipped because its snoop URL did
// not change. A repo is only skipped after an update that completed, so a
// failed fetch is retried on the next cycle.
func (s *Service) snoop(ctx context.Context, r *repo, logger *zap.Logger) bool {
	if r.config.SnoopURL == "" {
		return false
	}

	changed, err := s.watcher.HasURLRecentlyChanged(ctx, r.config.SnoopURL)
	if err != nil {
		logger.Warn("failed to check snoop url", zap.Error(err))
		return false
	}

	return !changed && r.synced
}

func (s *Service) updateRepo(
	ctx context.Context,
	r *repo,
	report *reports.Report,
	logger *zap.Logger,
) (reports.Status, string, error) {
	clone, err := s.ensureClone(ctx, r)
	if err != nil {
		return reports.StatusFailed, "failed to open clone", err
	}

	if fetchErr := s.fetch(ctx, clone, logger); fetchErr != nil {
		return reports.StatusFailed, "failed to fetch", fetchErr
	}

	lookup, err := s.states.Lookup(ctx, r.config.Name)
	if err != nil {
		return reports.StatusFailed, "failed to load branch states", err
	}

	branches, err := branch.GetManagedBranches(ctx, clone, r.config.Name, r.scheme, lookup, r.config.BranchURLFormat)
	if err != nil {
		return reports.StatusFailed, "failed to enumerate branches", err
	}

	live := lo.Map(branches, func(b *branch.Branch, _ int) string { return b.ReviewBranchName() })
	if _, pruneErr := s.states.Prune(ctx, r.config.Name, live); pruneErr != nil {
		logger.Error("failed to prune branch states", zap.Error(pruneErr))
	}

	logger.Info("processing branches", zap.Int("branches", len(branches)))

	p := newProcessor(s.reviewer, s.config.Limits, s.metrics, logger)
	for _, b := range branches {
		if ctx.Err() != nil {
			return reports.StatusFailed, "cancelled", ctx.Err()
		}

		if progressErr := s.reports.Processing(ctx, report.ID, b.ReviewBranchName()); progressErr != nil {
			logger.Error("failed to update report", zap.Error(progressErr))
		}

		result := p.process(ctx, b)

		s.metrics.BranchResult(r.config.Name, string(result.outcome))

		if result.persist {
			if saveErr := s.states.Save(ctx, b); saveErr != nil {
				logger.Error("failed to save branch state", zap.String("branch", b.ReviewBranchName()), zap.Error(saveErr))
			}
		}

		if addErr := s.reports.AddBranch(ctx, report.ID, result.report); addErr != nil {
			logger.Error("failed to update report", zap.Error(addErr))
		}
	}

	logger.Info("repo processed successfully")

	return reports.StatusOK, "", nil
}

func (s *Service) ensureClone(ctx context.Context, r *repo) (*git.Clone, error) {
	if r.clone != nil {
		return r.clone, nil
	}

	clone, err := s.opener.Open(ctx, git.OpenRequest{
		Name:      r.config.Name,
		URL:       r.config.URL,
		Directory: r.config.Directory,
		Auth:      r.config.Auth,
	})
	if err != nil {
		return nil, err
	}

	r.clone = clone

	return clone, nil
}

// fetch retries transient failures with exponential backoff.
func (s *Service) fetch(ctx context.Context, clone *git.Clone, logger *zap.Logger) error {
	policy := backoff.NewExponentialBackOff()
	if s.config.FetchBackoff > 0 {
		policy.InitialInterval = s.config.FetchBackoff
	}

	retries := s.config.FetchRetries
	if retries < 0 {
		retries = 0
	}

	operation := func() error {
		err := clone.Fetch(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, git.ErrTransientRemote) {
			logger.Warn("transient fetch failure", zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}

	//nolint:gosec //retries is not negative
	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx))
}
