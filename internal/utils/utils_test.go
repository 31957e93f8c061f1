package utils_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/backlog-broker/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	require.Equal(t, "", utils.Truncate("abc", 0))
	require.Equal(t, "abc", utils.Truncate("abc", 3))
	require.Equal(t, "ab...", utils.Truncate("abcdef", 2))
	require.Equal(t, "...", utils.Truncate("éé", 1), "never splits a rune")
}

func TestValue(t *testing.T) {
	require.Equal(t, "", utils.Value[string](nil))
	n := int64(7)
	require.Equal(t, int64(7), utils.Value(&n))
}

func TestNewHTTPClient_DoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://login.example.com", http.StatusFound)
	}))
	defer srv.Close()

	client := utils.NewHTTPClient(5*time.Second, time.Second)
	require.Equal(t, 5*time.Second, client.Timeout)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
}
