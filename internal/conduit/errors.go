package conduit

import (
	"errors"
	"fmt"
)

var (
	ErrTransient          = errors.New("review server unavailable")
	ErrUnexpectedResponse = errors.New("unexpected response from review server")
	ErrInvalidFields      = errors.New("invalid revision fields")
)

const (
	errConduitCore = "ERR-CONDUIT-CORE"
	noSuchUserInfo = "Array for %Ls conversion is empty. " +
		"Query: SELECT * FROM %s WHERE userPHID IN (%Ls) " +
		"AND UNIX_TIMESTAMP() BETWEEN dateFrom AND dateTo %Q"
)

// Error is an error reported by the review server for a call.
type Error struct {
	Method string
	Code   string
	Info   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("conduit %s: %s: %s", e.Method, e.Code, e.Info)
}

// IsNoSuchUserError reports whether err is the server's way of saying a
// user lookup matched nobody.
func IsNoSuchUserError(err error) bool {
	var cerr *Error
	if !errors.As(err, &cerr) {
		return false
	}

	return cerr.Code == errConduitCore && cerr.Info == noSuchUserInfo
}
