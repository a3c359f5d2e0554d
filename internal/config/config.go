package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-core-fx/config"
)

type http struct {
	Address     string   `koanf:"address"`
	ProxyHeader string   `koanf:"proxy_header"`
	Proxies     []string `koanf:"proxies"`
}

type storageConfig struct {
	DataDir  string `koanf:"data_dir"`
	InMemory bool   `koanf:"in_memory"`
	History  int    `koanf:"history"`
}

type gitAuthConfig struct {
	SSH   gitSSHAuthConfig   `koanf:"ssh"`
	HTTPS gitHTTPSAuthConfig `koanf:"https"`
}

type gitSSHAuthConfig struct {
	DefaultPrivateKey string `koanf:"default_private_key"`
}

type gitHTTPSAuthConfig struct {
	DefaultToken    string `koanf:"default_token"`
	DefaultUsername string `koanf:"default_username"`
}

type gitConfig struct {
	Timeout        time.Duration `koanf:"timeout"`
	DefaultDir     string        `koanf:"default_dir"`
	Remote         string        `koanf:"remote"`
	CommitterName  string        `koanf:"committer_name"`
	CommitterEmail string        `koanf:"committer_email"`
	Auth           gitAuthConfig `koanf:"auth"`
}

type conduitConfig struct {
	URI     string        `koanf:"uri"     validate:"required,url"`
	Token   string        `koanf:"token"   validate:"required"`
	Timeout time.Duration `koanf:"timeout"`
}

type reconcileConfig struct {
	Interval     time.Duration `koanf:"interval"`
	Workers      int           `koanf:"workers"        validate:"gte=0"`
	FetchRetries int           `koanf:"fetch_retries"  validate:"gte=0"`
	FetchBackoff time.Duration `koanf:"fetch_backoff"`
	MaxDiffBytes int           `koanf:"max_diff_bytes" validate:"gte=0"`
	MaxDiffFiles int           `koanf:"max_diff_files" validate:"gte=0"`
	SnoopTimeout time.Duration `koanf:"snoop_timeout"`
}

type repoAuthConfig struct {
	Username       string `koanf:"username"`
	Token          string `koanf:"token"`
	PrivateKeyPath string `koanf:"private_key_path"`
	Passphrase     string `koanf:"passphrase"`
}

type repoConfig struct {
	Name            string          `koanf:"name"              validate:"required"`
	URL             string          `koanf:"url"               validate:"required"`
	Directory       string          `koanf:"directory"`
	Scheme          string          `koanf:"scheme"            validate:"required,oneof=classic rbranch r-branch"`
	SnoopURL        string          `koanf:"snoop_url"         validate:"omitempty,url"`
	BranchURLFormat string          `koanf:"branch_url_format"`
	Auth            *repoAuthConfig `koanf:"auth"`
}

type Config struct {
	HTTP http `koanf:"http"`

	Storage   storageConfig   `koanf:"storage"`
	Git       gitConfig       `koanf:"git"`
	Conduit   conduitConfig   `koanf:"conduit"`
	Reconcile reconcileConfig `koanf:"reconcile"`
	Repos     []repoConfig    `koanf:"repos"     validate:"unique=Name,dive"`
}

func Default() Config {
	//nolint:exhaustruct,mnd //default values
	return Config{
		HTTP: http{
			Address:     "127.0.0.1:3000",
			ProxyHeader: "X-Forwarded-For",
			Proxies:     []string{},
		},

		Storage: storageConfig{
			DataDir: "./data",
			History: 20,
		},

		Git: gitConfig{
			Timeout:        5 * time.Minute,
			DefaultDir:     "./repos",
			Remote:         "origin",
			CommitterName:  "arcyd",
			CommitterEmail: "arcyd@localhost",
		},

		Conduit: conduitConfig{
			Timeout: 30 * time.Second,
		},

		Reconcile: reconcileConfig{
			Interval:     time.Minute,
			Workers:      1,
			FetchRetries: 3,
			FetchBackoff: time.Second,
			MaxDiffBytes: 1 << 20,
			SnoopTimeout: 10 * time.Second,
		},
	}
}

func New() (Config, error) {
	cfg := Default()

	options := []config.Option{}
	if yamlPath := os.Getenv("CONFIG_PATH"); yamlPath != "" {
		options = append(options, config.WithLocalYAML(yamlPath))
	}

	if err := config.Load(&cfg, options...); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}
