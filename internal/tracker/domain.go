package tracker

import (
	"time"

	"github.com/arcyd/arcyd/internal/branch"
	"github.com/google/uuid"
)

// BranchState is the persisted marker of one review branch.
type BranchState struct {
	branch.State

	ID     uuid.UUID
	Repo   string
	Branch string

	CreatedAt time.Time
	UpdatedAt time.Time
}
