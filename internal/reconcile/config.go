package reconcile

import (
	"time"

	"github.com/arcyd/arcyd/internal/differ"
	"github.com/arcyd/arcyd/internal/git"
)

type RepoConfig struct {
	Name            string
	URL             string
	Directory       string
	Scheme          string
	SnoopURL        string
	BranchURLFormat string
	Auth            *git.Auth
}

type Config struct {
	Interval time.Duration
	Workers  int

	FetchRetries int
	FetchBackoff time.Duration

	Limits differ.Limits

	Repos []RepoConfig
}
