package oauthmodel

import "time"

// TokenSet is the broker's view of a successful token endpoint response.
// It never leaves the broker; clients only ever see an opaque session cookie.
type TokenSet struct {
	// AccessToken authorizes calls to the tracker API.
	// Usage: "Authorization: Bearer <access_token>"
	AccessToken string

	// RefreshToken obtains a new access token once this one expires.
	// May be empty when the token endpoint does not rotate it; callers keep
	// the previous refresh token in that case.
	RefreshToken string

	// ExpiresIn is the access token lifetime in seconds as reported upstream
	// (or the configured default when upstream omits it).
	ExpiresIn int64

	// ExpiresAt is the absolute expiry derived from ExpiresIn.
	ExpiresAt time.Time
}
