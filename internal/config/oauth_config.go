package config

import (
	"net/url"
	"time"

	apperrors "github.com/jrsteele09/backlog-broker/internal/errors"
)

const (
	clientIDEnvVar        = "BACKLOG_CLIENT_ID"
	clientSecretEnvVar    = "BACKLOG_CLIENT_SECRET"
	redirectURIEnvVar     = "BACKLOG_REDIRECT_URI"
	upstreamTimeoutEnvVar = "UPSTREAM_TIMEOUT"
)

type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetPendingAuthTimeout() time.Duration
	GetDefaultAccessTokenExpiry() time.Duration
	GetRefreshMargin() time.Duration
	GetUpstreamTimeout() time.Duration
	GetUpstreamConnectTimeout() time.Duration
}

type OAuth struct {
	clientID        string
	clientSecret    string
	redirectURI     string
	upstreamTimeout time.Duration
}

var _ OAuthConfig = OAuth{}

func loadOAuth(lookup func(string, string) string) (OAuth, error) {
	var (
		o   OAuth
		err error
	)
	if o.clientID, err = required(lookup, clientIDEnvVar); err != nil {
		return OAuth{}, err
	}
	if o.clientSecret, err = required(lookup, clientSecretEnvVar); err != nil {
		return OAuth{}, err
	}
	if o.redirectURI, err = required(lookup, redirectURIEnvVar); err != nil {
		return OAuth{}, err
	}
	if u, err := url.Parse(o.redirectURI); err != nil || !u.IsAbs() {
		return OAuth{}, apperrors.Config("config", redirectURIEnvVar+" must be an absolute URL")
	}

	o.upstreamTimeout = 20 * time.Second
	if raw := lookup(upstreamTimeoutEnvVar, ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return OAuth{}, apperrors.Config("config", upstreamTimeoutEnvVar+" must be a positive duration")
		}
		o.upstreamTimeout = d
	}
	return o, nil
}

func (o OAuth) GetClientID() string {
	return o.clientID
}

func (o OAuth) GetClientSecret() string {
	return o.clientSecret
}

func (o OAuth) GetRedirectURI() string {
	return o.redirectURI
}

func (OAuth) GetPendingAuthTimeout() time.Duration {
	return 5 * time.Minute
}

// GetDefaultAccessTokenExpiry is used when the token endpoint omits expires_in.
func (OAuth) GetDefaultAccessTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (OAuth) GetRefreshMargin() time.Duration {
	return 5 * time.Second
}

func (o OAuth) GetUpstreamTimeout() time.Duration {
	return o.upstreamTimeout
}

func (OAuth) GetUpstreamConnectTimeout() time.Duration {
	return 8 * time.Second
}
