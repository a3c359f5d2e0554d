package storage

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity provides common fields for all storage entities.
type BaseEntity struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBaseEntity returns an entity with a time-ordered id created now.
func NewBaseEntity() BaseEntity {
	now := time.Now()

	return BaseEntity{
		ID:        uuid.Must(uuid.NewV7()),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Replaces makes e the next version of old: identity and creation time are
// kept, the update time is now.
func (e *BaseEntity) Replaces(old BaseEntity) {
	e.ID = old.ID
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = time.Now()
}
