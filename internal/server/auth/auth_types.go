package auth

import "errors"

var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrMissingSubject     = errors.New("token has no subject")
)
