package loginsession

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jrsteele09/backlog-broker/users"
)

// Session is an established login. Token material never leaves the broker.
type Session struct {
	ID       string
	SpaceURL string

	// Tokens
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time

	CSRFToken string
	User      users.User

	CreatedAt   time.Time
	RefreshedAt time.Time
}

// NeedsRefresh reports whether the access token expires within margin of now.
func (s Session) NeedsRefresh(now time.Time, margin time.Duration) bool {
	return !now.Before(s.ExpiresAt.Add(-margin))
}

const idBytes = 32

// NewID returns a fresh random session id, unrelated to any value that has
// travelled through the authorization URLs.
func NewID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[loginsession.NewID] failed to generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ShortID is a log-safe fingerprint of a session id.
func ShortID(id string) string {
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:4])
}

type Repo interface {
	// Create stores a new session. An existing id is an error.
	Create(session Session) error
	Get(id string) (Session, bool)
	// Update replaces an existing session and reports false if it no longer exists.
	Update(session Session) bool
	// Delete removes id and reports whether it existed.
	Delete(id string) bool
	// Sweep removes sessions whose ExpiresAt+grace is before now.
	Sweep(now time.Time, grace time.Duration) int
	Len() int
}
