package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/backlog-broker/csrf"
	apperrors "github.com/jrsteele09/backlog-broker/internal/errors"
	"github.com/jrsteele09/backlog-broker/server/loginsession"
	"github.com/rs/zerolog"
)

// SessionHandler reports whether the caller has an active session. It never
// fails for a missing or dead session; it answers authenticated=false.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessions.GetActive(r.Context(), s.sessionIDFromRequest(r))
		if err != nil {
			if apperrors.Is(err, apperrors.ErrAuth) {
				writeJSON(w, http.StatusOK, sessionResponse{Authenticated: false})
				return
			}
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(session))
	}
}

// LogoutHandler deletes the session after a double-submit CSRF check.
func (s *Server) LogoutHandler() http.HandlerFunc {
	const op = "server.Logout"
	return func(w http.ResponseWriter, r *http.Request) {
		id := s.sessionIDFromRequest(r)
		session, ok := s.loginSessions.Get(id)
		if id == "" || !ok {
			s.clearAuthCookies(w)
			writeError(w, r, apperrors.Auth(op, errors.New("no session")))
			return
		}

		if err := csrf.VerifyRequest(r, s.config.GetCSRFCookieName(), s.config.GetCSRFHeaderName(), session.CSRFToken); err != nil {
			writeError(w, r, err)
			return
		}

		s.loginSessions.Delete(id)
		s.clearAuthCookies(w)
		s.metrics.LogoutsTotal.Inc()
		zerolog.Ctx(r.Context()).Info().Str("op", op).Str("session", loginsession.ShortID(id)).Msg("logged out")

		w.WriteHeader(http.StatusNoContent)
	}
}
