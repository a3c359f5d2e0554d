package reports

import (
	"time"

	"github.com/arcyd/arcyd/internal/storage"
	"github.com/google/uuid"
)

type reportModel struct {
	storage.BaseEntity

	Repo    string    `json:"repo"`
	CycleID uuid.UUID `json:"cycle_id"`

	Status       Status `json:"status"`
	StatusBranch string `json:"status_branch"`
	StatusText   string `json:"status_text"`

	Branches []BranchResult `json:"branches"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

func newReportModel(draft *ReportDraft) *reportModel {
	if draft == nil {
		return nil
	}

	return &reportModel{
		BaseEntity:   storage.NewBaseEntity(),
		Repo:         draft.Repo,
		CycleID:      draft.CycleID,
		Status:       draft.Status,
		StatusBranch: draft.StatusBranch,
		StatusText:   draft.StatusText,
		Branches:     draft.Branches,
		StartedAt:    draft.StartedAt,
		FinishedAt:   draft.FinishedAt,
	}
}

func newReportUpdateModel(source *reportModel, draft *ReportDraft) *reportModel {
	updated := newReportModel(draft)
	updated.Replaces(source.BaseEntity)

	return updated
}

func newReport(model *reportModel) *Report {
	if model == nil {
		return nil
	}

	return &Report{
		ReportDraft: ReportDraft{
			Repo:         model.Repo,
			CycleID:      model.CycleID,
			Status:       model.Status,
			StatusBranch: model.StatusBranch,
			StatusText:   model.StatusText,
			Branches:     model.Branches,
			StartedAt:    model.StartedAt,
			FinishedAt:   model.FinishedAt,
		},
		ID:        model.ID,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
