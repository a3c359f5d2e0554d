package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/arcyd/arcyd/internal/branch"
	"github.com/arcyd/arcyd/pkg/badgerfx"
	"github.com/dgraph-io/badger/v4"
)

const (
	prefix = "branch:"

	prefixByRepo = prefix + "state:"
)

type Repository struct {
	db *badger.DB
}

func NewRepository(db *badger.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// Get retrieves the state of a branch.
func (r *Repository) Get(_ context.Context, repo, name string) (*BranchState, error) {
	var state *stateModel

	err := r.db.View(func(txn *badger.Txn) error {
		found, err := r.get(txn, repo, name)
		if err == nil {
			state = found
		}

		return err
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get branch state: %w", err)
	}

	return newBranchState(state), nil
}

// Put creates or replaces the state of a branch.
func (r *Repository) Put(_ context.Context, repo, name string, state branch.State) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		model := newStateModel(repo, name, state)

		old, err := r.get(txn, repo, name)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if old != nil {
			model.Replaces(old.BaseEntity)
		}

		return badgerfx.Write(txn, r.getKey(repo, name), model)
	})

	if err != nil {
		return fmt.Errorf("failed to put branch state: %w", err)
	}

	return nil
}

// Delete removes the state of a branch.
func (r *Repository) Delete(_ context.Context, repo, name string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return badgerfx.Delete(txn, r.getKey(repo, name))
	})

	if err != nil {
		return fmt.Errorf("failed to delete branch state: %w", err)
	}

	return nil
}

// ListByRepo retrieves the states of all branches of a repository.
func (r *Repository) ListByRepo(_ context.Context, repo string) ([]BranchState, error) {
	var states []BranchState

	err := r.db.View(func(txn *badger.Txn) error {
		models, err := badgerfx.List[stateModel](txn, r.getRepoPrefix(repo), badgerfx.ListOptions{})
		if err != nil {
			return err
		}

		for i := range models {
			states = append(states, *newBranchState(&models[i]))
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list branch states: %w", err)
	}

	return states, nil
}

func (r *Repository) get(txn *badger.Txn, repo, name string) (*stateModel, error) {
	model, err := badgerfx.Read[stateModel](txn, r.getKey(repo, name))
	if errors.Is(err, badgerfx.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, repo, name)
	}

	return model, err
}

// getRepoPrefix generates the prefix of all branch states of a repository.
func (r *Repository) getRepoPrefix(repo string) string {
	return prefixByRepo + url.QueryEscape(repo) + ":"
}

// getKey generates the key `branch:state:<repo>:<branch>`.
func (r *Repository) getKey(repo, name string) string {
	return r.getRepoPrefix(repo) + name
}
