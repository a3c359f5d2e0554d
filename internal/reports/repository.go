package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/arcyd/arcyd/pkg/badgerfx"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	prefix = "report:"

	prefixByID   = prefix + "id:"
	prefixByRepo = prefix + "repo:"
)

type Repository struct {
	db *badger.DB
}

func NewRepository(db *badger.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// Create creates a new report.
func (r *Repository) Create(_ context.Context, draft *ReportDraft) (*Report, error) {
	model := newReportModel(draft)

	err := r.db.Update(func(txn *badger.Txn) error {
		return r.write(txn, model)
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	return newReport(model), nil
}

// GetByID retrieves a report by its ID.
func (r *Repository) GetByID(_ context.Context, id uuid.UUID) (*Report, error) {
	var report *reportModel

	err := r.db.View(func(txn *badger.Txn) error {
		found, err := r.getByID(txn, id)
		if err == nil {
			report = found
		}

		return err
	})

	return newReport(report), err
}

// Update updates an existing report.
func (r *Repository) Update(_ context.Context, id uuid.UUID, updater func(*Report) error) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		old, err := r.getByID(txn, id)
		if err != nil {
			return fmt.Errorf("failed to get report before update: %w", err)
		}

		report := newReport(old)

		if updErr := updater(report); updErr != nil {
			return fmt.Errorf("failed to update report: %w", updErr)
		}

		if report.Repo != old.Repo {
			return fmt.Errorf("cannot change report repo (old=%s new=%s)", old.Repo, report.Repo)
		}

		return r.write(txn, newReportUpdateModel(old, &report.ReportDraft))
	})

	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}

	return nil
}

// GetLatestByRepo retrieves the most recent report of a repository.
func (r *Repository) GetLatestByRepo(ctx context.Context, repo string) (*Report, error) {
	reports, err := r.ListByRepo(ctx, repo, 1)
	if err != nil {
		return nil, err
	}

	if len(reports) == 0 {
		return nil, fmt.Errorf("%w for repo: %s", ErrNotFound, repo)
	}

	return &reports[0], nil
}

// ListByRepo retrieves the reports of a repository, newest first.
func (r *Repository) ListByRepo(_ context.Context, repo string, limit int) ([]Report, error) {
	var reports []Report

	err := r.db.View(func(txn *badger.Txn) error {
		return badgerfx.Scan(
			txn,
			r.getRepoPrefix(repo),
			badgerfx.ListOptions{Reverse: true, Limit: limit},
			func(_ string, val []byte) error {
				var reportID uuid.UUID
				if err := json.Unmarshal(val, &reportID); err != nil {
					return fmt.Errorf("failed to unmarshal report ID: %w", err)
				}

				report, err := r.getByID(txn, reportID)
				if err != nil {
					return err
				}

				reports = append(reports, *newReport(report))

				return nil
			},
		)
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	return reports, nil
}

// DeleteOlderThan keeps the newest keep reports of a repository.
func (r *Repository) DeleteOlderThan(_ context.Context, repo string, keep int) (int, error) {
	deleted := 0

	err := r.db.Update(func(txn *badger.Txn) error {
		var stale []string
		seen := 0

		if err := badgerfx.Scan(
			txn,
			r.getRepoPrefix(repo),
			badgerfx.ListOptions{Reverse: true},
			func(key string, val []byte) error {
				seen++
				if seen <= keep {
					return nil
				}

				var reportID uuid.UUID
				if err := json.Unmarshal(val, &reportID); err != nil {
					return fmt.Errorf("failed to unmarshal report ID: %w", err)
				}

				stale = append(stale, key, string(r.getKey(reportID)))

				return nil
			},
		); err != nil {
			return err
		}

		for _, key := range stale {
			if err := badgerfx.Delete(txn, key); err != nil {
				return err
			}
		}
		deleted = len(stale) / 2

		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to delete old reports: %w", err)
	}

	return deleted, nil
}

func (r *Repository) write(txn *badger.Txn, report *reportModel) error {
	if err := badgerfx.Write(txn, string(r.getKey(report.ID)), report); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}

	if err := r.createIndexes(txn, report); err != nil {
		return fmt.Errorf("failed to create report indexes: %w", err)
	}

	return nil
}

func (r *Repository) getByID(txn *badger.Txn, id uuid.UUID) (*reportModel, error) {
	report, err := badgerfx.Read[reportModel](txn, string(r.getKey(id)))
	if errors.Is(err, badgerfx.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id.String())
	}

	return report, err
}

// getKey generates the key for storing a report.
func (r *Repository) getKey(id uuid.UUID) []byte {
	return []byte(prefixByID + id.String())
}

// getRepoPrefix generates the prefix for repo-specific reports.
func (r *Repository) getRepoPrefix(repo string) string {
	return prefixByRepo + url.QueryEscape(repo) + ":"
}

// createIndexes creates the repo index `report:repo:<repo>:<unix_nano>`.
func (r *Repository) createIndexes(txn *badger.Txn, report *reportModel) error {
	repoKey := r.getRepoPrefix(report.Repo) + strconv.FormatInt(report.CreatedAt.UnixNano(), 10)

	return badgerfx.Write(txn, repoKey, report.ID)
}
