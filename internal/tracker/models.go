package tracker

import (
	"github.com/arcyd/arcyd/internal/branch"
	"github.com/arcyd/arcyd/internal/storage"
)

type stateModel struct {
	storage.BaseEntity

	Repo   string `json:"repo"`
	Branch string `json:"branch"`

	ReviewID     *int          `json:"review_id"`
	VerifiedHash string        `json:"verified_hash"`
	VerifiedBase string        `json:"verified_base"`
	Status       branch.Status `json:"status"`
}

func newStateModel(repo, name string, state branch.State) *stateModel {
	return &stateModel{
		BaseEntity:   storage.NewBaseEntity(),
		Repo:         repo,
		Branch:       name,
		ReviewID:     state.ReviewID,
		VerifiedHash: state.VerifiedHash,
		VerifiedBase: state.VerifiedBase,
		Status:       state.Status,
	}
}

func newBranchState(model *stateModel) *BranchState {
	if model == nil {
		return nil
	}

	return &BranchState{
		State: branch.State{
			ReviewID:     model.ReviewID,
			VerifiedHash: model.VerifiedHash,
			VerifiedBase: model.VerifiedBase,
			Status:       model.Status,
		},
		ID:        model.ID,
		Repo:      model.Repo,
		Branch:    model.Branch,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
