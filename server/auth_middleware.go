package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/backlog-broker/backlog"
	"github.com/jrsteele09/backlog-broker/server/loginsession"
	"github.com/rs/zerolog"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the active login session
const ContextKeySession ContextKey = "session"

// RequireSession resolves the session cookie to an active session, refreshing
// the access token when it is about to expire, and stores it in the context.
func (s *Server) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessions.GetActive(r.Context(), s.sessionIDFromRequest(r))
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeySession, session)
		logger := zerolog.Ctx(ctx).With().Str("session", loginsession.ShortID(session.ID)).Logger()
		r = r.WithContext(logger.WithContext(ctx))

		next(w, r)
	}
}

// sessionFromContext returns the session stored by RequireSession.
func sessionFromContext(ctx context.Context) (loginsession.Session, bool) {
	session, ok := ctx.Value(ContextKeySession).(loginsession.Session)
	return session, ok
}

func credentialsFromContext(ctx context.Context) backlog.Credentials {
	session, _ := sessionFromContext(ctx)
	return backlog.Credentials{SpaceURL: session.SpaceURL, AccessToken: session.AccessToken}
}
