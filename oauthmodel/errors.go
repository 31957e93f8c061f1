package oauthmodel

import "errors"

var (
	ErrUnsupportedGrantType = errors.New("unsupported grant type")
	ErrMissingCredential    = errors.New("missing code or refresh token")
	ErrMissingAccessToken   = errors.New("token response has no access token")
	ErrUnknownProvider      = errors.New("unknown oauth provider")
)
