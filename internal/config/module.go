package config

import (
	"fmt"

	"github.com/arcyd/arcyd/internal/conduit"
	"github.com/arcyd/arcyd/internal/differ"
	"github.com/arcyd/arcyd/internal/git"
	"github.com/arcyd/arcyd/internal/reconcile"
	"github.com/arcyd/arcyd/internal/reports"
	"github.com/arcyd/arcyd/internal/watcher"
	"github.com/arcyd/arcyd/pkg/badgerfx"
	"github.com/go-core-fx/fiberfx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"config",
		fx.Provide(func(v *validator.Validate) (Config, error) {
			cfg, err := New()
			if err != nil {
				return Config{}, err
			}
			if err := v.Struct(cfg); err != nil {
				return Config{}, fmt.Errorf("invalid config: %w", err)
			}
			return cfg, nil
		}),
		fx.Provide(func(cfg Config) fiberfx.Config {
			return fiberfx.Config{
				Address:     cfg.HTTP.Address,
				ProxyHeader: cfg.HTTP.ProxyHeader,
				Proxies:     cfg.HTTP.Proxies,
			}
		}),
		fx.Provide(func(cfg Config) badgerfx.Config {
			return badgerfx.Config{
				Dir:      cfg.Storage.DataDir,
				InMemory: cfg.Storage.InMemory,
			}
		}),
		fx.Provide(func(cfg Config) reports.Config {
			return reports.Config{
				History: cfg.Storage.History,
			}
		}),
		fx.Provide(func(cfg Config) git.Config {
			return git.Config{
				Timeout:    cfg.Git.Timeout,
				DefaultDir: cfg.Git.DefaultDir,
				Remote:     cfg.Git.Remote,
				Auth: git.AuthConfig{
					SSH: git.SSHAuthConfig{
						DefaultPrivateKey: cfg.Git.Auth.SSH.DefaultPrivateKey,
					},
					HTTPS: git.HTTPSAuthConfig{
						DefaultToken:    cfg.Git.Auth.HTTPS.DefaultToken,
						DefaultUsername: cfg.Git.Auth.HTTPS.DefaultUsername,
					},
				},
				Committer: git.Signature{
					Name:  cfg.Git.CommitterName,
					Email: cfg.Git.CommitterEmail,
				},
			}
		}),
		fx.Provide(func(cfg Config) conduit.Config {
			return conduit.Config{
				URI:     cfg.Conduit.URI,
				Token:   cfg.Conduit.Token,
				Timeout: cfg.Conduit.Timeout,
			}
		}),
		fx.Provide(func(cfg Config) watcher.Config {
			return watcher.Config{
				Timeout: cfg.Reconcile.SnoopTimeout,
			}
		}),
		fx.Provide(func(cfg Config) reconcile.Config {
			return reconcile.Config{
				Interval:     cfg.Reconcile.Interval,
				Workers:      cfg.Reconcile.Workers,
				FetchRetries: cfg.Reconcile.FetchRetries,
				FetchBackoff: cfg.Reconcile.FetchBackoff,
				Limits: differ.Limits{
					MaxBytes: cfg.Reconcile.MaxDiffBytes,
					MaxFiles: cfg.Reconcile.MaxDiffFiles,
				},
				Repos: reposConfig(cfg.Repos),
			}
		}),
	)
}

func reposConfig(repos []repoConfig) []reconcile.RepoConfig {
	out := make([]reconcile.RepoConfig, 0, len(repos))
	for _, r := range repos {
		rc := reconcile.RepoConfig{
			Name:            r.Name,
			URL:             r.URL,
			Directory:       r.Directory,
			Scheme:          r.Scheme,
			SnoopURL:        r.SnoopURL,
			BranchURLFormat: r.BranchURLFormat,
		}
		if r.Auth != nil {
			rc.Auth = &git.Auth{
				Username:       r.Auth.Username,
				Token:          r.Auth.Token,
				PrivateKeyPath: r.Auth.PrivateKeyPath,
				Passphrase:     r.Auth.Passphrase,
			}
		}
		out = append(out, rc)
	}

	return out
}
