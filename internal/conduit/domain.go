package conduit

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ID decodes identifiers the server sends as either numbers or strings.
type ID int

func (i *ID) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*i = ID(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", s, err)
	}
	*i = ID(n)

	return nil
}

// MessageFields are the revision fields the server understands.
type MessageFields struct {
	Title         string   `json:"title"                   validate:"required"`
	TestPlan      string   `json:"testPlan"                validate:"required"`
	Summary       string   `json:"summary,omitempty"`
	ReviewerPHIDs []string `json:"reviewerPHIDs,omitempty" validate:"dive,required"`
	CCPHIDs       []string `json:"ccPHIDs,omitempty"       validate:"dive,required"`
}

type Revision struct {
	ID  int
	URI string
}

type RevisionStatusCode int

const (
	RevisionNeedsReview   RevisionStatusCode = 0
	RevisionNeedsRevision RevisionStatusCode = 1
	RevisionAccepted      RevisionStatusCode = 2
	RevisionClosed        RevisionStatusCode = 3
	RevisionAbandoned     RevisionStatusCode = 4
)

type RevisionStatus struct {
	ID         int
	Status     RevisionStatusCode
	StatusName string
	URI        string
	AuthorPHID string
}

func (r RevisionStatus) IsAccepted() bool {
	return r.Status == RevisionAccepted
}

func (r RevisionStatus) IsAbandoned() bool {
	return r.Status == RevisionAbandoned
}

func (r RevisionStatus) IsClosed() bool {
	return r.Status == RevisionClosed
}

type User struct {
	PHID     string   `json:"phid"`
	UserName string   `json:"userName"`
	RealName string   `json:"realName"`
	Image    string   `json:"image"`
	URI      string   `json:"uri"`
	Roles    []string `json:"roles"`
}
