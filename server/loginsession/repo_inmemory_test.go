package loginsession_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/backlog-broker/server/loginsession"
	"github.com/jrsteele09/backlog-broker/users"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newSession(id string, expiresAt time.Time) loginsession.Session {
	return loginsession.Session{
		ID:           id,
		SpaceURL:     "https://acme.backlog.com",
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		ExpiresAt:    expiresAt,
		CSRFToken:    "csrf-" + id,
		User:         users.User{ID: 7, UserID: "alice", Name: "Alice"},
		CreatedAt:    testNow,
	}
}

func TestInMemoryRepo_CRUD(t *testing.T) {
	repo := loginsession.NewInMemoryRepo()
	s := newSession("s1", testNow.Add(time.Hour))

	require.NoError(t, repo.Create(s))
	require.Error(t, repo.Create(s), "duplicate id")
	require.Error(t, repo.Create(loginsession.Session{}), "empty id")

	got, ok := repo.Get("s1")
	require.True(t, ok)
	require.Equal(t, s, got)

	got.AccessToken = "mutated"
	again, _ := repo.Get("s1")
	require.Equal(t, "access-s1", again.AccessToken, "Get returns a copy")

	require.True(t, repo.Update(got))
	again, _ = repo.Get("s1")
	require.Equal(t, "mutated", again.AccessToken)

	require.True(t, repo.Delete("s1"))
	require.False(t, repo.Delete("s1"))
	require.False(t, repo.Update(got), "update does not resurrect a deleted session")
	_, ok = repo.Get("s1")
	require.False(t, ok)
	require.Equal(t, 0, repo.Len())
}

func TestInMemoryRepo_Sweep(t *testing.T) {
	repo := loginsession.NewInMemoryRepo()
	require.NoError(t, repo.Create(newSession("old", testNow.Add(-25*time.Hour))))
	require.NoError(t, repo.Create(newSession("grace", testNow.Add(-23*time.Hour))))
	require.NoError(t, repo.Create(newSession("live", testNow.Add(time.Hour))))

	require.Equal(t, 1, repo.Sweep(testNow, 24*time.Hour))
	require.Equal(t, 2, repo.Len())
	_, ok := repo.Get("old")
	require.False(t, ok)
}

func TestShortID(t *testing.T) {
	require.Empty(t, loginsession.ShortID(""))
	require.Len(t, loginsession.ShortID("abc"), 8)
	require.NotContains(t, loginsession.ShortID("secret-session-id"), "secret")
	require.Equal(t, loginsession.ShortID("x"), loginsession.ShortID("x"))
}

func TestNewID(t *testing.T) {
	a, err := loginsession.NewID()
	require.NoError(t, err)
	b, err := loginsession.NewID()
	require.NoError(t, err)
	require.Len(t, a, 43)
	require.NotEqual(t, a, b)
}
