package users_test

import (
	"testing"

	"github.com/jrsteele09/backlog-broker/users"
	"github.com/stretchr/testify/require"
)

func TestUser_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, users.User{ID: 1, UserID: "admin", Name: "Admin"}.Validate())
	})

	t.Run("name only", func(t *testing.T) {
		require.NoError(t, users.User{ID: 7, Name: "Guest"}.Validate())
	})

	t.Run("missing id", func(t *testing.T) {
		err := users.User{UserID: "admin"}.Validate()
		require.Error(t, err)
		require.Contains(t, err.Error(), "user id must be positive")
	})

	t.Run("missing names", func(t *testing.T) {
		err := users.User{ID: 3, Name: "  "}.Validate()
		require.Error(t, err)
		require.Contains(t, err.Error(), "neither userId nor name")
	})
}
