package watcher

import "errors"

var (
	ErrRequestFailed = errors.New("request failed")
	ErrInvalidState  = errors.New("invalid watcher state")
)
