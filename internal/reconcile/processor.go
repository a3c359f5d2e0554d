package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arcyd/arcyd/internal/branch"
	"github.com/arcyd/arcyd/internal/conduit"
	"github.com/arcyd/arcyd/internal/differ"
	"github.com/arcyd/arcyd/internal/git"
	"github.com/arcyd/arcyd/internal/metrics"
	"github.com/arcyd/arcyd/internal/reports"
	"go.uber.org/zap"
)

type result struct {
	outcome Outcome
	persist bool
	report  reports.BranchResult
}

// processor drives single branches through review. Errors never leave it:
// each branch ends in a result so the next branch can be processed.
type processor struct {
	reviewer Reviewer
	users    *conduit.UserPhidCache
	limits   differ.Limits
	metrics  *metrics.Metrics

	logger *zap.Logger
}

func newProcessor(reviewer Reviewer, limits differ.Limits, m *metrics.Metrics, logger *zap.Logger) *processor {
	return &processor{
		reviewer: reviewer,
		users:    conduit.NewUserPhidCache(reviewer),
		limits:   limits,
		metrics:  m,

		logger: logger,
	}
}

func (p *processor) process(ctx context.Context, b *branch.Branch) result {
	logger := p.logger.With(zap.String("branch", b.ReviewBranchName()))

	res := result{
		report: reports.BranchResult{
			Name:      b.ReviewBranchName(),
			Status:    reports.BranchOK,
			BranchURL: b.BranchURL(),
		},
	}

	outcome, err := p.step(ctx, b, &res.report, logger)
	if err != nil {
		outcome = p.fail(ctx, b, err, logger)
		res.report.Notes = err.Error()
	}

	res.outcome = outcome
	res.persist = outcome != OutcomeStale && outcome != OutcomeError

	if b.IsStatusBad() || outcome == OutcomeError || outcome == OutcomeStale {
		res.report.Status = reports.BranchBad
	}
	if id, ok := b.ReviewID(); ok && res.report.ReviewURL == "" {
		res.report.ReviewURL = fmt.Sprintf("D%d", id)
	}

	logger.Info("branch processed", zap.String("outcome", string(outcome)))

	return res
}

func (p *processor) step(
	ctx context.Context,
	b *branch.Branch,
	report *reports.BranchResult,
	logger *zap.Logger,
) (Outcome, error) {
	hasNew, err := b.HasNewCommits(ctx)
	if err != nil && !errors.Is(err, branch.ErrInvalidBase) {
		return "", err
	}
	if err != nil {
		hasNew = true
	}

	if b.IsStatusBad() && !hasNew {
		logger.Debug("bad branch without new commits, skipping")
		return OutcomeUnchanged, nil
	}

	if verifyErr := b.VerifyReviewBranchBase(ctx); verifyErr != nil {
		return "", verifyErr
	}

	switch {
	case b.IsNew():
		return p.createReview(ctx, b, report, logger)
	case hasNew:
		return p.updateReview(ctx, b, logger)
	default:
		return p.checkReview(ctx, b, report, logger)
	}
}

func (p *processor) createReview(
	ctx context.Context,
	b *branch.Branch,
	report *reports.BranchResult,
	logger *zap.Logger,
) (Outcome, error) {
	logger.Info("creating review")

	if err := p.checkAuthor(ctx, b); err != nil {
		return "", err
	}

	digest, err := b.MakeMessageDigest(ctx)
	if err != nil {
		return "", err
	}

	fields, err := p.fields(ctx, digest)
	if err != nil {
		return "", err
	}

	diffID, err := p.uploadDiff(ctx, b)
	if err != nil {
		return "", err
	}

	revision, err := p.reviewer.CreateRevision(ctx, diffID, fields)
	if err != nil {
		return "", err
	}

	if markErr := b.MarkOkNewReview(ctx, revision.ID); markErr != nil {
		return "", markErr
	}
	report.ReviewURL = revision.URI

	logger.Info("review created successfully", zap.Int("revision_id", revision.ID))

	return OutcomeCreated, nil
}

func (p *processor) updateReview(ctx context.Context, b *branch.Branch, logger *zap.Logger) (Outcome, error) {
	id, _ := b.ReviewID()
	logger.Info("updating review", zap.Int("revision_id", id))

	digest, err := b.MakeMessageDigest(ctx)
	if err != nil {
		return "", err
	}

	fields, err := p.fields(ctx, digest)
	if err != nil {
		return "", err
	}

	log, err := b.DescribeNewCommits(ctx)
	if err != nil {
		return "", err
	}

	diffID, err := p.uploadDiff(ctx, b)
	if err != nil {
		return "", err
	}

	if updErr := p.reviewer.UpdateRevision(ctx, id, diffID, fields, log); updErr != nil {
		return "", updErr
	}

	if markErr := b.MarkOkInReview(ctx); markErr != nil {
		return "", markErr
	}

	logger.Info("review updated successfully", zap.Int("revision_id", id))

	return OutcomeUpdated, nil
}

func (p *processor) checkReview(
	ctx context.Context,
	b *branch.Branch,
	report *reports.BranchResult,
	logger *zap.Logger,
) (Outcome, error) {
	id, _ := b.ReviewID()

	statuses, err := p.reviewer.QueryRevisions(ctx, []int{id})
	if err != nil {
		return "", err
	}
	if len(statuses) != 1 {
		return "", fmt.Errorf("%w: D%d", ErrRevisionMissing, id)
	}

	status := statuses[0]
	report.ReviewURL = status.URI

	switch {
	case status.IsAccepted():
		return p.land(ctx, b, status, logger)
	case status.IsAbandoned(), status.IsClosed():
		logger.Info("abandoning branch", zap.Int("revision_id", id))
		if abErr := b.Abandon(ctx); abErr != nil {
			return "", abErr
		}
		logger.Info("branch abandoned successfully")
		return OutcomeAbandoned, nil
	default:
		return OutcomeUnchanged, nil
	}
}

func (p *processor) land(
	ctx context.Context,
	b *branch.Branch,
	status conduit.RevisionStatus,
	logger *zap.Logger,
) (Outcome, error) {
	logger.Info("landing branch", zap.Int("revision_id", status.ID))

	digest, err := b.MakeMessageDigest(ctx)
	if err != nil {
		return "", err
	}

	authors, err := b.GetAuthorNamesEmails(ctx)
	if err != nil {
		return "", err
	}

	message := landMessage(digest, status)
	if _, landErr := b.Land(ctx, message, authors[0]); landErr != nil {
		return "", landErr
	}

	if closeErr := p.reviewer.CloseRevision(ctx, status.ID); closeErr != nil {
		logger.Warn("failed to close landed revision", zap.Error(closeErr))
	}

	logger.Info("branch landed successfully", zap.Int("revision_id", status.ID))

	return OutcomeLanded, nil
}

// fail turns a branch error into an outcome, marking the branch bad when
// only a change to the branch can fix it.
func (p *processor) fail(ctx context.Context, b *branch.Branch, err error, logger *zap.Logger) Outcome {
	switch {
	case errors.Is(err, git.ErrStaleReference):
		logger.Info("branch changed during processing, retrying next cycle", zap.Error(err))
		return OutcomeStale
	case errors.Is(err, git.ErrTransientRemote), conduit.IsTransient(err), errors.Is(err, context.Canceled):
		logger.Warn("transient failure, retrying next cycle", zap.Error(err))
		return OutcomeError
	case isUserError(err):
		logger.Warn("branch is not reviewable", zap.Error(err))
		p.markBad(ctx, b, err, logger)
		return OutcomeBad
	default:
		logger.Error("failed to process branch", zap.Error(err))
		return OutcomeError
	}
}

func (p *processor) markBad(ctx context.Context, b *branch.Branch, cause error, logger *zap.Logger) {
	var err error

	id, bound := b.ReviewID()
	switch {
	case !bound:
		err = b.MarkBadPreReview(ctx)
	case errors.Is(cause, git.ErrLandFailed):
		err = b.MarkBadLand(ctx)
	default:
		err = b.MarkBadInReview(ctx)
	}
	if err != nil {
		logger.Error("failed to mark branch bad", zap.Error(err))
		return
	}

	if bound {
		comment := fmt.Sprintf("arcyd could not process %s:\n\n%s", b.ReviewBranchName(), cause)
		if commentErr := p.reviewer.CreateComment(ctx, id, comment); commentErr != nil {
			logger.Warn("failed to comment on revision", zap.Error(commentErr))
		}
	}
}

func isUserError(err error) bool {
	var cerr *conduit.Error

	return errors.Is(err, branch.ErrInvalidBase) ||
		errors.Is(err, branch.ErrEmptyRange) ||
		errors.Is(err, differ.ErrDiffTooLarge) ||
		errors.Is(err, git.ErrLandFailed) ||
		errors.Is(err, ErrMissingTestPlan) ||
		errors.Is(err, ErrUnknownAuthor) ||
		errors.Is(err, conduit.ErrInvalidFields) ||
		errors.As(err, &cerr)
}

func (p *processor) checkAuthor(ctx context.Context, b *branch.Branch) error {
	emails, err := b.GetAnyAuthorEmails(ctx)
	if err != nil {
		return err
	}

	for _, email := range emails {
		user, queryErr := p.reviewer.QueryUserFromEmail(ctx, email)
		if queryErr != nil {
			return queryErr
		}
		if user != nil {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrUnknownAuthor, strings.Join(emails, ", "))
}

func (p *processor) fields(ctx context.Context, message string) (conduit.MessageFields, error) {
	parsed := conduit.ParseCommitMessage(message)
	if parsed.TestPlan == "" {
		return conduit.MessageFields{}, ErrMissingTestPlan
	}

	reviewers, err := p.users.GetPhids(ctx, parsed.Reviewers)
	if err != nil {
		return conduit.MessageFields{}, err
	}

	ccs, err := p.users.GetPhids(ctx, parsed.CCs)
	if err != nil {
		return conduit.MessageFields{}, err
	}

	return conduit.MessageFields{
		Title:         parsed.Title,
		TestPlan:      parsed.TestPlan,
		Summary:       parsed.Summary,
		ReviewerPHIDs: reviewers,
		CCPHIDs:       ccs,
	}, nil
}

func (p *processor) uploadDiff(ctx context.Context, b *branch.Branch) (int, error) {
	diff, err := b.MakeDiff(ctx, p.limits)
	if err != nil {
		return 0, err
	}

	p.metrics.DiffLevel(diff.Level.String())

	return p.reviewer.CreateRawDiff(ctx, diff.Diff)
}

func landMessage(digest string, status conduit.RevisionStatus) string {
	parsed := conduit.ParseCommitMessage(digest)

	var sb strings.Builder
	sb.WriteString(parsed.Title)
	sb.WriteString("\n\n")
	if parsed.Summary != "" {
		sb.WriteString(parsed.Summary)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Test Plan:\n")
	sb.WriteString(parsed.TestPlan)
	sb.WriteString("\n\n")
	if status.URI != "" {
		fmt.Fprintf(&sb, "Differential Revision: %s\n", status.URI)
	} else {
		fmt.Fprintf(&sb, "Differential Revision: D%d\n", status.ID)
	}

	return sb.String()
}
