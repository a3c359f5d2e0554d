package config

import (
	"testing"

	"github.com/arcyd/arcyd/internal/git"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Default()
	cfg.Conduit.URI = "https://review.example.com"
	cfg.Conduit.Token = "api-token"
	cfg.Repos = []repoConfig{
		{Name: "myrepo", URL: "git@example.com:myrepo.git", Scheme: "rbranch"},
	}

	return cfg
}

func TestConfig_Validate(t *testing.T) {
	v := validator.New()

	require.NoError(t, v.Struct(validConfig()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing conduit uri", func(c *Config) { c.Conduit.URI = "" }},
		{"unknown scheme", func(c *Config) { c.Repos[0].Scheme = "gerrit" }},
		{"duplicate repo", func(c *Config) { c.Repos = append(c.Repos, c.Repos[0]) }},
		{"bad snoop url", func(c *Config) { c.Repos[0].SnoopURL = "not a url" }},
		{"negative workers", func(c *Config) { c.Reconcile.Workers = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Error(t, v.Struct(cfg))
		})
	}
}

func TestReposConfig(t *testing.T) {
	repos := reposConfig([]repoConfig{
		{Name: "plain", URL: "https://example.com/plain.git", Scheme: "classic"},
		{
			Name:   "private",
			URL:    "git@example.com:private.git",
			Scheme: "rbranch",
			Auth:   &repoAuthConfig{PrivateKeyPath: "/keys/id_ed25519"},
		},
	})

	require.Len(t, repos, 2)
	assert.Nil(t, repos[0].Auth)
	assert.Equal(t, &git.Auth{PrivateKeyPath: "/keys/id_ed25519"}, repos[1].Auth)
	assert.Equal(t, "rbranch", repos[1].Scheme)
}
