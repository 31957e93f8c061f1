// Package csrf implements the double-submit cookie check used by every
// mutating endpoint.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"

	apperrors "github.com/jrsteele09/backlog-broker/internal/errors"
)

const tokenBytes = 32

// NewToken returns a fresh random token. A new one is minted on every login start.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[csrf.NewToken] failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Verify accepts only when cookie, header and the token stored on the
// server-side record are all present and equal. Fails closed.
func Verify(cookie, header, stored string) error {
	const op = "csrf.Verify"
	if cookie == "" || header == "" || stored == "" {
		return apperrors.CSRF(op)
	}
	headerMatch := subtle.ConstantTimeCompare([]byte(cookie), []byte(header))
	storedMatch := subtle.ConstantTimeCompare([]byte(cookie), []byte(stored))
	if headerMatch&storedMatch != 1 {
		return apperrors.CSRF(op)
	}
	return nil
}

// FromRequest extracts the cookie and header copies of the token.
func FromRequest(r *http.Request, cookieName, headerName string) (cookie, header string) {
	if c, err := r.Cookie(cookieName); err == nil {
		cookie = c.Value
	}
	return cookie, r.Header.Get(headerName)
}

// VerifyRequest runs Verify against the token copies carried by r.
func VerifyRequest(r *http.Request, cookieName, headerName, stored string) error {
	cookie, header := FromRequest(r, cookieName, headerName)
	return Verify(cookie, header, stored)
}
