package conduit

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Service wraps the review server methods used to drive reviews.
type Service struct {
	client    Client
	validator *validator.Validate

	logger *zap.Logger
}

func NewService(client Client, validator *validator.Validate, logger *zap.Logger) *Service {
	return &Service{
		client:    client,
		validator: validator,

		logger: logger,
	}
}

// CreateRawDiff uploads a diff and returns its id.
func (s *Service) CreateRawDiff(ctx context.Context, diff string) (int, error) {
	var result struct {
		ID ID `json:"id"`
	}

	if err := s.client.Call(ctx, "differential.createrawdiff", map[string]any{"diff": diff}, &result); err != nil {
		s.logger.Error("failed to create raw diff", zap.Error(err))
		return 0, err
	}

	s.logger.Debug("raw diff created", zap.Int("diff_id", int(result.ID)))

	return int(result.ID), nil
}

// CreateRevision opens a review for an uploaded diff.
func (s *Service) CreateRevision(ctx context.Context, diffID int, fields MessageFields) (Revision, error) {
	if err := s.validator.Struct(fields); err != nil {
		return Revision{}, fmt.Errorf("%w: %w", ErrInvalidFields, err)
	}

	s.logger.Info("creating revision", zap.Int("diff_id", diffID), zap.String("title", fields.Title))

	var result struct {
		RevisionID ID     `json:"revisionid"`
		URI        string `json:"uri"`
	}

	params := map[string]any{"diffid": diffID, "fields": fields}
	if err := s.client.Call(ctx, "differential.createrevision", params, &result); err != nil {
		s.logger.Error("failed to create revision", zap.Int("diff_id", diffID), zap.Error(err))
		return Revision{}, err
	}

	s.logger.Info("revision created", zap.Int("revision_id", int(result.RevisionID)), zap.String("uri", result.URI))

	return Revision{ID: int(result.RevisionID), URI: result.URI}, nil
}

// UpdateRevision attaches a new diff to an existing review.
func (s *Service) UpdateRevision(ctx context.Context, revisionID, diffID int, fields MessageFields, message string) error {
	if err := s.validator.Struct(fields); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFields, err)
	}

	s.logger.Info("updating revision", zap.Int("revision_id", revisionID), zap.Int("diff_id", diffID))

	params := map[string]any{
		"id":      revisionID,
		"diffid":  diffID,
		"fields":  fields,
		"message": message,
	}
	if err := s.client.Call(ctx, "differential.updaterevision", params, nil); err != nil {
		s.logger.Error("failed to update revision", zap.Int("revision_id", revisionID), zap.Error(err))
		return err
	}

	s.logger.Info("revision updated", zap.Int("revision_id", revisionID))

	return nil
}

// QueryRevisions returns the status of the given reviews.
func (s *Service) QueryRevisions(ctx context.Context, ids []int) ([]RevisionStatus, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var result []struct {
		ID         ID     `json:"id"`
		Status     string `json:"status"`
		StatusName string `json:"statusName"`
		URI        string `json:"uri"`
		AuthorPHID string `json:"authorPHID"`
	}

	if err := s.client.Call(ctx, "differential.query", map[string]any{"ids": ids}, &result); err != nil {
		s.logger.Error("failed to query revisions", zap.Ints("ids", ids), zap.Error(err))
		return nil, err
	}

	statuses := make([]RevisionStatus, 0, len(result))
	for _, r := range result {
		code, err := strconv.Atoi(r.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: status %q of D%d", ErrUnexpectedResponse, r.Status, r.ID)
		}

		statuses = append(statuses, RevisionStatus{
			ID:         int(r.ID),
			Status:     RevisionStatusCode(code),
			StatusName: r.StatusName,
			URI:        r.URI,
			AuthorPHID: r.AuthorPHID,
		})
	}

	return statuses, nil
}

// CloseRevision marks a landed review closed.
func (s *Service) CloseRevision(ctx context.Context, revisionID int) error {
	s.logger.Info("closing revision", zap.Int("revision_id", revisionID))

	if err := s.client.Call(ctx, "differential.close", map[string]any{"revisionID": revisionID}, nil); err != nil {
		s.logger.Error("failed to close revision", zap.Int("revision_id", revisionID), zap.Error(err))
		return err
	}

	return nil
}

// CreateComment leaves a comment on a review.
func (s *Service) CreateComment(ctx context.Context, revisionID int, message string) error {
	params := map[string]any{"revision_id": revisionID, "message": message}
	if err := s.client.Call(ctx, "differential.createcomment", params, nil); err != nil {
		s.logger.Error("failed to comment on revision", zap.Int("revision_id", revisionID), zap.Error(err))
		return err
	}

	return nil
}

// QueryUserFromEmail returns the user with email, or nil when there is none.
func (s *Service) QueryUserFromEmail(ctx context.Context, email string) (*User, error) {
	var users []User

	err := s.client.Call(ctx, "user.query", map[string]any{"emails": []string{email}}, &users)
	if IsNoSuchUserError(err) {
		return nil, nil //nolint:nilnil //no such user
	}
	if err != nil {
		return nil, err
	}

	switch len(users) {
	case 0:
		return nil, nil //nolint:nilnil //no such user
	case 1:
		return &users[0], nil
	default:
		return nil, fmt.Errorf("%w: %d users for %s", ErrUnexpectedResponse, len(users), email)
	}
}

// QueryUsersFromPhids returns the users with the given phids; all of them
// must exist.
func (s *Service) QueryUsersFromPhids(ctx context.Context, phids []string) ([]User, error) {
	var users []User

	if err := s.client.Call(ctx, "user.query", map[string]any{"phids": phids}, &users); err != nil {
		return nil, err
	}

	if len(users) != len(phids) {
		return nil, fmt.Errorf("%w: %d users for %d phids", ErrUnexpectedResponse, len(users), len(phids))
	}

	return users, nil
}

// QueryUsersFromUsernames returns the users with the given names, or nil
// when any of them is unknown.
func (s *Service) QueryUsersFromUsernames(ctx context.Context, usernames []string) ([]User, error) {
	var users []User

	err := s.client.Call(ctx, "user.query", map[string]any{"usernames": usernames}, &users)
	if IsNoSuchUserError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(users) != len(usernames) {
		if len(users) < len(usernames) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %d users for %d usernames", ErrUnexpectedResponse, len(users), len(usernames))
	}

	return users, nil
}

// MakeUsernamePhidDict maps usernames to phids, or returns nil when any of
// them is unknown.
func (s *Service) MakeUsernamePhidDict(ctx context.Context, usernames []string) (map[string]string, error) {
	users, err := s.QueryUsersFromUsernames(ctx, usernames)
	if err != nil || users == nil {
		return nil, err
	}

	dict := make(map[string]string, len(users))
	for _, u := range users {
		dict[u.UserName] = u.PHID
	}

	return dict, nil
}

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
