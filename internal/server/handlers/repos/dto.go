package repos

import (
	"time"

	"github.com/google/uuid"
)

// HistoryQuery represents the query parameters of the history endpoint.
type HistoryQuery struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

// BranchResultResponse represents the outcome of one branch in a report.
type BranchResultResponse struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	BranchURL string `json:"branch_url,omitempty"`
	ReviewURL string `json:"review_url,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// ReportResponse represents one processing of a repository.
type ReportResponse struct {
	ID           uuid.UUID              `json:"id"`
	CycleID      uuid.UUID              `json:"cycle_id"`
	Status       string                 `json:"status"`
	StatusBranch string                 `json:"status_branch,omitempty"`
	StatusText   string                 `json:"status_text,omitempty"`
	Branches     []BranchResultResponse `json:"branches"`
	StartedAt    time.Time              `json:"started_at"`
	FinishedAt   *time.Time             `json:"finished_at,omitempty"`
}

// RepoResponse represents a configured repository with its latest report.
type RepoResponse struct {
	Name   string          `json:"name"`
	Report *ReportResponse `json:"report,omitempty"`
}

// BranchStateResponse represents the persisted state of a review branch.
type BranchStateResponse struct {
	Branch       string    `json:"branch"`
	ReviewID     *int      `json:"review_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	VerifiedHash string    `json:"verified_hash,omitempty"`
	VerifiedBase string    `json:"verified_base,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
