package git

import (
	"encoding/base64"
	"fmt"

	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/go-git/go-git/v6/plumbing/transport/ssh"
)

// Auth holds credentials for a remote. Only one of Token or PrivateKeyPath
// is expected to be set.
type Auth struct {
	Username       string
	Token          string
	PrivateKeyPath string
	Passphrase     string
}

func (a Auth) empty() bool {
	return a.Token == "" && a.PrivateKeyPath == ""
}

// method converts the credentials for go-git transports.
func (a Auth) method() (transport.AuthMethod, error) {
	switch {
	case a.PrivateKeyPath != "":
		user := a.Username
		if user == "" {
			user = "git"
		}
		keys, err := ssh.NewPublicKeysFromFile(user, a.PrivateKeyPath, a.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load ssh key: %w", ErrInvalidRepository, err)
		}
		return keys, nil
	case a.Token != "":
		user := a.Username
		if user == "" {
			user = "git"
		}
		return &http.BasicAuth{Username: user, Password: a.Token}, nil
	default:
		return nil, nil //nolint:nilnil //no authentication
	}
}

// env converts the credentials for the git command line.
func (a Auth) env() []string {
	switch {
	case a.PrivateKeyPath != "":
		return []string{"GIT_SSH_COMMAND=ssh -i " + a.PrivateKeyPath + " -o IdentitiesOnly=yes"}
	case a.Token != "":
		user := a.Username
		if user == "" {
			user = "git"
		}
		creds := base64.StdEncoding.EncodeToString([]byte(user + ":" + a.Token))
		return []string{
			"GIT_CONFIG_COUNT=1",
			"GIT_CONFIG_KEY_0=http.extraHeader",
			"GIT_CONFIG_VALUE_0=Authorization: Basic " + creds,
		}
	default:
		return nil
	}
}
