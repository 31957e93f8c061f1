package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/backlog-broker/backlog"
	"github.com/jrsteele09/backlog-broker/csrf"
	apperrors "github.com/jrsteele09/backlog-broker/internal/errors"
	"github.com/jrsteele09/backlog-broker/oauthmodel"
	"github.com/jrsteele09/backlog-broker/server/loginsession"
	"github.com/jrsteele09/backlog-broker/spaceurl"
	"github.com/jrsteele09/backlog-broker/statetoken"
	"github.com/jrsteele09/backlog-broker/users"
	"github.com/rs/zerolog"
)

const (
	maxCallbackBodyBytes = 16 << 10
	maxCallbackFieldLen  = 4096

	stageStart    = "start"
	stageCallback = "callback"
)

type startResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
}

type callbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

type sessionResponse struct {
	Authenticated bool        `json:"authenticated"`
	SpaceURL      string      `json:"spaceUrl,omitempty"`
	ExpiresAt     *time.Time  `json:"expiresAt,omitempty"`
	User          *users.User `json:"user,omitempty"`
}

func newSessionResponse(session loginsession.Session) sessionResponse {
	expiresAt := session.ExpiresAt.UTC()
	user := session.User
	return sessionResponse{
		Authenticated: true,
		SpaceURL:      session.SpaceURL,
		ExpiresAt:     &expiresAt,
		User:          &user,
	}
}

func requireProvider(r *http.Request, op string) error {
	if provider := r.PathValue("provider"); provider != oauthmodel.ProviderBacklog {
		return apperrors.NotFound(op, fmt.Sprintf("%s: %q", oauthmodel.ErrUnknownProvider, provider))
	}
	return nil
}

// OAuthStartHandler begins a login: it records a pending authorization, signs
// a state token for it and returns the tracker's consent URL.
func (s *Server) OAuthStartHandler() http.HandlerFunc {
	const op = "server.OAuthStart"
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requireProvider(r, op); err != nil {
			writeError(w, r, err)
			return
		}

		spaceURL, err := spaceurl.Validate(r.URL.Query().Get("spaceUrl"))
		if err != nil {
			s.metrics.ObserveLogin(stageStart, apperrors.Code(err))
			writeError(w, r, err)
			return
		}

		pending, err := s.pending.Begin(spaceURL)
		if err != nil {
			writeError(w, r, apperrors.Wrapf(err, "[%s] begin", op))
			return
		}

		state, err := s.codec.Sign(statetoken.Payload{
			ID:       pending.ID,
			SpaceURL: pending.SpaceURL,
			Exp:      pending.ExpiresAt.Unix(),
		})
		if err != nil {
			writeError(w, r, apperrors.Wrapf(err, "[%s] sign state", op))
			return
		}

		s.setAuthCookies(w, pending.ID, pending.CSRFToken)
		s.metrics.ObserveLogin(stageStart, "success")
		zerolog.Ctx(r.Context()).Info().
			Str("op", op).
			Str("space", spaceURL).
			Str("session", loginsession.ShortID(pending.ID)).
			Msg("login started")

		writeJSON(w, http.StatusOK, startResponse{AuthorizationURL: s.tokens.AuthCodeURL(spaceURL, state)})
	}
}

// OAuthCallbackHandler completes a login. The state token, the session cookie
// and the pending record must all agree before the code is exchanged.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	const op = "server.OAuthCallback"
	return func(w http.ResponseWriter, r *http.Request) {
		if err := requireProvider(r, op); err != nil {
			writeError(w, r, err)
			return
		}

		session, err := s.completeLogin(w, r)
		if err != nil {
			s.metrics.ObserveLogin(stageCallback, apperrors.Code(err))
			writeError(w, r, err)
			return
		}

		s.setAuthCookies(w, session.ID, session.CSRFToken)
		s.metrics.ObserveLogin(stageCallback, "success")
		zerolog.Ctx(r.Context()).Info().
			Str("op", op).
			Str("space", session.SpaceURL).
			Str("session", loginsession.ShortID(session.ID)).
			Int64("user_id", session.User.ID).
			Msg("login completed")

		writeJSON(w, http.StatusOK, newSessionResponse(session))
	}
}

func (s *Server) completeLogin(w http.ResponseWriter, r *http.Request) (loginsession.Session, error) {
	const op = "server.completeLogin"

	req, err := decodeCallbackRequest(w, r)
	if err != nil {
		return loginsession.Session{}, err
	}

	state, err := s.codec.Verify(req.State)
	if err != nil {
		return loginsession.Session{}, err
	}

	cookieID := s.sessionIDFromRequest(r)
	if cookieID == "" || subtle.ConstantTimeCompare([]byte(cookieID), []byte(state.ID)) != 1 {
		return loginsession.Session{}, apperrors.Auth(op, errors.New("session cookie does not match state"))
	}

	// Consuming burns the attempt whatever happens next.
	pending, ok := s.pending.Consume(state.ID)
	if !ok {
		return loginsession.Session{}, apperrors.Auth(op, errors.New("no pending authorization"))
	}
	if pending.SpaceURL != state.SpaceURL {
		return loginsession.Session{}, apperrors.Auth(op, errors.New("state space does not match pending authorization"))
	}

	if err := csrf.VerifyRequest(r, s.config.GetCSRFCookieName(), s.config.GetCSRFHeaderName(), pending.CSRFToken); err != nil {
		return loginsession.Session{}, err
	}

	tokens, err := s.tokens.Exchange(r.Context(), oauthmodel.AuthorizationCodeGrant, req.Code, pending.SpaceURL)
	if err != nil {
		return loginsession.Session{}, apperrors.Auth(op, err)
	}

	user, err := s.resources.GetMyself(r.Context(), backlog.Credentials{SpaceURL: pending.SpaceURL, AccessToken: tokens.AccessToken})
	if err != nil {
		return loginsession.Session{}, apperrors.Auth(op, err)
	}

	// The pending id is readable in the state token, so the session gets its
	// own id and CSRF token.
	sessionID, err := loginsession.NewID()
	if err != nil {
		return loginsession.Session{}, apperrors.Wrapf(err, "[%s] session id", op)
	}
	csrfToken, err := csrf.NewToken()
	if err != nil {
		return loginsession.Session{}, apperrors.Wrapf(err, "[%s] csrf token", op)
	}

	now := s.nowTime()
	session := loginsession.Session{
		ID:           sessionID,
		SpaceURL:     pending.SpaceURL,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		CSRFToken:    csrfToken,
		User:         user,
		CreatedAt:    now,
		RefreshedAt:  now,
	}
	if err := s.loginSessions.Create(session); err != nil {
		return loginsession.Session{}, apperrors.Wrapf(err, "[%s] store session", op)
	}
	return session, nil
}

func decodeCallbackRequest(w http.ResponseWriter, r *http.Request) (callbackRequest, error) {
	const op = "server.decodeCallbackRequest"

	var req callbackRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCallbackBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return callbackRequest{}, apperrors.Validation(op, "request body must be a JSON object with code and state")
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return callbackRequest{}, apperrors.Validation(op, "request body must contain a single JSON object")
	}

	req.Code = strings.TrimSpace(req.Code)
	req.State = strings.TrimSpace(req.State)
	switch {
	case req.Code == "":
		return callbackRequest{}, apperrors.Validation(op, "code is required")
	case req.State == "":
		return callbackRequest{}, apperrors.Validation(op, "state is required")
	case len(req.Code) > maxCallbackFieldLen || len(req.State) > maxCallbackFieldLen:
		return callbackRequest{}, apperrors.Validation(op, "code or state is too long")
	}
	return req, nil
}
