package oauthmodel

// GrantType represents the OAuth 2.0 grant type sent to the tracker's token endpoint.
// Determines which credential accompanies the request.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Used in: the callback leg of the login flow
	// Token request includes: code, client_id, client_secret, redirect_uri
	// Returns: access_token, refresh_token, expires_in
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for a new access token.
	// Used in: lazy refresh when a session's access token is about to expire
	// Token request includes: refresh_token, client_id, client_secret
	// Returns: new access_token and, usually, a rotated refresh_token
	RefreshTokenGrant GrantType = "refresh_token"
)

// Valid reports whether the broker knows how to perform this grant.
func (g GrantType) Valid() bool {
	return g == AuthorizationCodeGrant || g == RefreshTokenGrant
}

// ProviderBacklog is the only upstream provider the broker talks to.
// It appears in the /oauth/{provider}/... routes.
const ProviderBacklog = "backlog"
