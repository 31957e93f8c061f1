package users

import (
	"fmt"
	"strings"
)

// User is the tracker account a session belongs to. It is fetched once when
// the session is created and never changes afterwards.
type User struct {
	ID     int64  `json:"id"`     // Numeric tracker id
	UserID string `json:"userId"` // Login name on the tracker
	Name   string `json:"name"`   // Display name
}

// Validate checks the fields the broker relies on after decoding an upstream response.
func (u User) Validate() error {
	if u.ID <= 0 {
		return fmt.Errorf("user id must be positive")
	}
	if strings.TrimSpace(u.Name) == "" && strings.TrimSpace(u.UserID) == "" {
		return fmt.Errorf("user has neither userId nor name")
	}
	return nil
}
