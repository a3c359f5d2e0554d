package reports

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusUpdating Status = "updating"
	StatusOK       Status = "ok"
	StatusFailed   Status = "failed"
)

type BranchStatus string

const (
	BranchOK  BranchStatus = "ok"
	BranchBad BranchStatus = "bad"
)

// BranchResult is the outcome of processing one branch in a cycle.
type BranchResult struct {
	Name      string       `json:"name"`
	Status    BranchStatus `json:"status"`
	BranchURL string       `json:"branch_url,omitempty"`
	ReviewURL string       `json:"review_url,omitempty"`
	Notes     string       `json:"notes,omitempty"`
}

type ReportDraft struct {
	Repo    string
	CycleID uuid.UUID

	Status       Status
	StatusBranch string // branch being processed while updating
	StatusText   string

	Branches []BranchResult

	StartedAt  time.Time
	FinishedAt *time.Time
}

// Report is the state of one repository during or after a cycle.
type Report struct {
	ReportDraft

	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Report) SetBranch(name string) {
	r.StatusBranch = name
}

func (r *Report) AddBranch(result BranchResult) {
	r.Branches = append(r.Branches, result)
}

func (r *Report) Finish(status Status, text string, now time.Time) {
	r.Status = status
	r.StatusText = text
	r.StatusBranch = ""
	r.FinishedAt = &now
}
