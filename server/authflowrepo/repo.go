package authflowrepo

import "time"

// PendingAuthorization is a login attempt waiting for its callback.
// ID is the correlation key shared by the state token and the session cookie.
type PendingAuthorization struct {
	ID        string
	SpaceURL  string
	CSRFToken string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record can no longer be consumed at now.
func (p PendingAuthorization) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Repo stores in-flight login attempts. Records are single use.
type Repo interface {
	// Begin creates a record with a fresh random ID and CSRF token.
	Begin(spaceURL string) (PendingAuthorization, error)
	// Consume atomically looks up and deletes id. Unknown or expired ids return false.
	Consume(id string) (PendingAuthorization, bool)
	// Sweep drops records that expired before now and returns how many were removed.
	Sweep(now time.Time) int
	Len() int
}
