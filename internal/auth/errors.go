package auth

import "errors"

var (
	ErrAuthFailed   = errors.New("auth: authentication failed")
	ErrConversation = errors.New("auth: unsupported conversation request")
	ErrUnavailable  = errors.New("auth: credential back end unavailable")
)
