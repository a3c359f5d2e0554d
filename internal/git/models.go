package git

import (
	"strings"
	"time"
)

// RemoteRef is a branch on the remote as last fetched.
type RemoteRef struct {
	Name string // branch name without the remote prefix
	Hash string
}

// Signature identifies an author or committer.
type Signature struct {
	Name  string
	Email string
}

func (s Signature) String() string {
	return s.Name + " <" + s.Email + ">"
}

// Commit is the metadata of a single commit.
type Commit struct {
	Hash    string
	Author  Signature
	When    time.Time
	Message string
}

// Subject returns the first line of the commit message.
func (c Commit) Subject() string {
	subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
	return strings.TrimSpace(subject)
}

// Outcome is the terminal state recorded by an archive ref.
type Outcome string

const (
	OutcomeLanded    Outcome = "landed"
	OutcomeAbandoned Outcome = "abandoned"
)

// SquashRequest describes landing a review branch onto its base.
type SquashRequest struct {
	Branch     string // review branch name, used in logs
	BranchHash string
	Base       string
	Message    string
	Author     Signature
}

// OpenRequest describes the working clone of one repository.
type OpenRequest struct {
	Name      string
	URL       string
	Directory string
	Auth      *Auth
}
