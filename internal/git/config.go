package git

import "time"

type AuthConfig struct {
	SSH   SSHAuthConfig
	HTTPS HTTPSAuthConfig
}

type SSHAuthConfig struct {
	DefaultPrivateKey string
}

type HTTPSAuthConfig struct {
	DefaultToken    string
	DefaultUsername string
}

type Config struct {
	Timeout    time.Duration
	DefaultDir string
	Remote     string
	Auth       AuthConfig
	Committer  Signature
}

// DefaultAuth returns the credentials used when a repository has none.
func (c Config) DefaultAuth() Auth {
	return Auth{
		Username:       c.Auth.HTTPS.DefaultUsername,
		Token:          c.Auth.HTTPS.DefaultToken,
		PrivateKeyPath: c.Auth.SSH.DefaultPrivateKey,
	}
}
