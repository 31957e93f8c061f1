package config

import (
	"time"

	apperrors "github.com/jrsteele09/backlog-broker/internal/errors"
)

const (
	signingSecretEnvVar     = "STATE_SIGNING_SECRET"
	sessionCookieNameEnvVar = "SESSION_COOKIE_NAME"
	csrfCookieNameEnvVar    = "CSRF_COOKIE_NAME"

	// CSRFHeaderName carries the double-submit token on mutating requests.
	CSRFHeaderName = "X-CSRF-Token"

	MinSigningSecretLength = 32
)

type SecurityConfig interface {
	GetStateSigningSecret() []byte
	GetSessionCookieName() string
	GetCSRFCookieName() string
	GetCSRFHeaderName() string
	GetSecureCookies() bool
	GetCookieMaxAge() time.Duration
	GetSessionGracePeriod() time.Duration
	GetSweepSchedule() string
}

type Security struct {
	signingSecret     []byte
	sessionCookieName string
	csrfCookieName    string
	secureCookies     bool
}

var _ SecurityConfig = Security{}

func loadSecurity(lookup func(string, string) string, production bool) (Security, error) {
	secret, err := required(lookup, signingSecretEnvVar)
	if err != nil {
		return Security{}, err
	}
	if len(secret) < MinSigningSecretLength {
		return Security{}, apperrors.Config("config", signingSecretEnvVar+" must be at least 32 bytes")
	}
	s := Security{
		signingSecret:     []byte(secret),
		sessionCookieName: lookup(sessionCookieNameEnvVar, "bme_session"),
		csrfCookieName:    lookup(csrfCookieNameEnvVar, "bme_csrf"),
		secureCookies:     production,
	}
	if s.sessionCookieName == s.csrfCookieName {
		return Security{}, apperrors.Config("config", "session and csrf cookie names must differ")
	}
	return s, nil
}

func (s Security) GetStateSigningSecret() []byte {
	return s.signingSecret
}

func (s Security) GetSessionCookieName() string {
	return s.sessionCookieName
}

func (s Security) GetCSRFCookieName() string {
	return s.csrfCookieName
}

func (Security) GetCSRFHeaderName() string {
	return CSRFHeaderName
}

func (s Security) GetSecureCookies() bool {
	return s.secureCookies
}

func (Security) GetCookieMaxAge() time.Duration {
	return 1 * time.Hour
}

// GetSessionGracePeriod is how long a session outlives its access token
// before the sweeper drops it.
func (Security) GetSessionGracePeriod() time.Duration {
	return 24 * time.Hour
}

func (Security) GetSweepSchedule() string {
	return "@every 1m"
}
