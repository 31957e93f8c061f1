package statetoken_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/backlog-broker/internal/errors"
	"github.com/jrsteele09/backlog-broker/statetoken"
	"github.com/stretchr/testify/require"
)

var (
	testSecret = []byte(strings.Repeat("k", 32))
	testNow    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	encoding   = base64.RawURLEncoding.Strict()
)

func newCodec(t *testing.T, now time.Time) *statetoken.Codec {
	t.Helper()
	c, err := statetoken.NewCodec(testSecret, statetoken.WithNowTime(func() time.Time { return now }))
	require.NoError(t, err)
	return c
}

func validPayload() statetoken.Payload {
	return statetoken.Payload{
		ID:       "c29tZS1yYW5kb20taWQ",
		SpaceURL: "https://acme.backlog.com",
		Exp:      testNow.Add(5 * time.Minute).Unix(),
	}
}

func requireRejected(t *testing.T, c *statetoken.Codec, token string) {
	t.Helper()
	_, err := c.Verify(token)
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.ErrAuth), "expected auth error, got %v", err)
}

func TestNewCodec(t *testing.T) {
	t.Run("short secret", func(t *testing.T) {
		_, err := statetoken.NewCodec([]byte(strings.Repeat("k", 31)))
		require.Error(t, err)
		require.True(t, apperrors.Is(err, apperrors.ErrConfig))
	})

	t.Run("nil secret", func(t *testing.T) {
		_, err := statetoken.NewCodec(nil)
		require.True(t, apperrors.Is(err, apperrors.ErrConfig))
	})
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newCodec(t, testNow)

	payloads := []statetoken.Payload{
		validPayload(),
		{ID: "x", SpaceURL: "https://team.backlog.jp", Exp: testNow.Add(time.Second).Unix()},
		{ID: strings.Repeat("a", 128), SpaceURL: "https://a-b.backlogtool.com", Exp: testNow.Add(24 * time.Hour).Unix()},
	}
	for _, p := range payloads {
		token, err := c.Sign(p)
		require.NoError(t, err)
		require.Equal(t, 1, strings.Count(token, "."))

		got, err := c.Verify(token)
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
}

func TestCodec_TokenIsQuerySafe(t *testing.T) {
	c := newCodec(t, testNow)
	token, err := c.Sign(validPayload())
	require.NoError(t, err)
	require.NotContains(t, token, "+")
	require.NotContains(t, token, "/")
	require.NotContains(t, token, "=")
}

func TestCodec_RejectsBitFlips(t *testing.T) {
	c := newCodec(t, testNow)
	token, err := c.Sign(validPayload())
	require.NoError(t, err)

	idx := strings.LastIndex(token, ".")
	body, err := encoding.DecodeString(token[:idx])
	require.NoError(t, err)
	sig, err := encoding.DecodeString(token[idx+1:])
	require.NoError(t, err)

	t.Run("body", func(t *testing.T) {
		for i := range body {
			for bit := 0; bit < 8; bit++ {
				mutated := append([]byte(nil), body...)
				mutated[i] ^= 1 << bit
				requireRejected(t, c, encoding.EncodeToString(mutated)+token[idx:])
			}
		}
	})

	t.Run("signature", func(t *testing.T) {
		for i := range sig {
			for bit := 0; bit < 8; bit++ {
				mutated := append([]byte(nil), sig...)
				mutated[i] ^= 1 << bit
				requireRejected(t, c, token[:idx+1]+encoding.EncodeToString(mutated))
			}
		}
	})

	t.Run("encoded characters", func(t *testing.T) {
		for i := range token {
			if token[i] == '.' {
				continue
			}
			mutated := []byte(token)
			mutated[i] ^= 0x01
			requireRejected(t, c, string(mutated))
		}
	})
}

func TestCodec_RejectsExpired(t *testing.T) {
	signer := newCodec(t, testNow)
	p := validPayload()
	token, err := signer.Sign(p)
	require.NoError(t, err)

	t.Run("exactly at exp", func(t *testing.T) {
		requireRejected(t, newCodec(t, time.Unix(p.Exp, 0)), token)
	})

	t.Run("after exp", func(t *testing.T) {
		requireRejected(t, newCodec(t, time.Unix(p.Exp, 0).Add(time.Minute)), token)
	})

	t.Run("just before exp", func(t *testing.T) {
		_, err := newCodec(t, time.Unix(p.Exp, 0).Add(-time.Second)).Verify(token)
		require.NoError(t, err)
	})
}

func TestCodec_RejectsForeignKey(t *testing.T) {
	other, err := statetoken.NewCodec([]byte(strings.Repeat("z", 32)), statetoken.WithNowTime(func() time.Time { return testNow }))
	require.NoError(t, err)
	token, err := other.Sign(validPayload())
	require.NoError(t, err)

	requireRejected(t, newCodec(t, testNow), token)
}

func TestCodec_RejectsMalformed(t *testing.T) {
	c := newCodec(t, testNow)
	for _, token := range []string{"", ".", "abc", "abc.", ".abc", "a.b.c", "!!!.???"} {
		t.Run(token, func(t *testing.T) {
			requireRejected(t, c, token)
		})
	}
}

func TestCodec_SchemaValidation(t *testing.T) {
	c := newCodec(t, testNow)

	t.Run("sign rejects invalid payloads", func(t *testing.T) {
		invalid := []statetoken.Payload{
			{ID: "", SpaceURL: "https://acme.backlog.com", Exp: testNow.Unix() + 60},
			{ID: "id", SpaceURL: "https://backlog.com", Exp: testNow.Unix() + 60},
			{ID: "id", SpaceURL: "https://acme.backlog.com/", Exp: testNow.Unix() + 60},
			{ID: "id", SpaceURL: "https://acme.backlog.com", Exp: 0},
			{ID: strings.Repeat("a", 129), SpaceURL: "https://acme.backlog.com", Exp: testNow.Unix() + 60},
		}
		for _, p := range invalid {
			_, err := c.Sign(p)
			require.Error(t, err)
		}
	})

	t.Run("forged body cannot borrow a signature", func(t *testing.T) {
		token, err := c.Sign(validPayload())
		require.NoError(t, err)
		idx := strings.LastIndex(token, ".")
		forged := encoding.EncodeToString([]byte(`{"id":"x","spaceUrl":"https://acme.backlog.com","exp":9999999999,"admin":true}`))
		requireRejected(t, c, forged+token[idx:])
	})
}
