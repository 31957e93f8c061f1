package loginsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/backlog-broker/internal/errors"
	"github.com/jrsteele09/backlog-broker/oauthmodel"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshMargin is how early before expiry an access token is refreshed.
const DefaultRefreshMargin = 5 * time.Second

// Refresh outcomes reported to a RefreshObserver.
const (
	RefreshSucceeded = "success"
	RefreshFailed    = "failure"
	RefreshMissing   = "no_refresh_token"
	RefreshDiscarded = "discarded"
)

var (
	errNoSession      = errors.New("session not found")
	errNoRefreshToken = errors.New("session has no refresh token")
	errEndedDuring    = errors.New("session ended during refresh")
	errStaleExpiry    = errors.New("refreshed token does not extend expiry")
)

// Refresher exchanges a refresh token for a new token set.
type Refresher interface {
	Exchange(ctx context.Context, grant oauthmodel.GrantType, credential, spaceURL string) (oauthmodel.TokenSet, error)
}

// RefreshObserver is told the outcome of every refresh attempt.
type RefreshObserver func(outcome string)

// Manager hands out sessions with a usable access token.
type Manager struct {
	repo      Repo
	refresher Refresher
	margin    time.Duration
	nowTime   func() time.Time
	observe   RefreshObserver
	group     singleflight.Group
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithRefreshMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) {
		m.margin = margin
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

func WithRefreshObserver(observe RefreshObserver) ManagerOption {
	return func(m *Manager) {
		m.observe = observe
	}
}

// NewManager creates a session manager over repo.
func NewManager(repo Repo, refresher Refresher, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:      repo,
		refresher: refresher,
		margin:    DefaultRefreshMargin,
		nowTime:   time.Now,
		observe:   func(string) {},
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// GetActive returns the session for id, refreshing its access token first
// when it is within the refresh margin. A session that cannot be refreshed
// is deleted.
func (m *Manager) GetActive(ctx context.Context, id string) (Session, error) {
	const op = "loginsession.GetActive"

	if id == "" {
		return Session{}, apperrors.Auth(op, errNoSession)
	}
	session, ok := m.repo.Get(id)
	if !ok {
		return Session{}, apperrors.Auth(op, errNoSession)
	}
	if !session.NeedsRefresh(m.nowTime(), m.margin) {
		return session, nil
	}

	// The refresh outlives a cancelled caller; the HTTP client timeout bounds it.
	refreshCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(id, func() (interface{}, error) {
		return m.refresh(refreshCtx, id)
	})
	select {
	case <-ctx.Done():
		return Session{}, fmt.Errorf("%s: %w", op, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Session{}, res.Err
		}
		if res.Shared {
			log.Ctx(ctx).Debug().Str("op", op).Str("session", ShortID(id)).Msg("joined in-flight refresh")
		}
		return res.Val.(Session), nil
	}
}

// refresh runs at most once per session at a time. The store lock is never
// held across the exchange.
func (m *Manager) refresh(ctx context.Context, id string) (Session, error) {
	const op = "loginsession.refresh"
	logger := log.Ctx(ctx).With().Str("op", op).Str("session", ShortID(id)).Logger()

	session, ok := m.repo.Get(id)
	if !ok {
		return Session{}, apperrors.Auth(op, errNoSession)
	}
	if !session.NeedsRefresh(m.nowTime(), m.margin) {
		return session, nil
	}

	if session.RefreshToken == "" {
		m.repo.Delete(id)
		m.observe(RefreshMissing)
		logger.Info().Msg("session expired without refresh token")
		return Session{}, apperrors.Auth(op, errNoRefreshToken)
	}

	tokens, err := m.refresher.Exchange(ctx, oauthmodel.RefreshTokenGrant, session.RefreshToken, session.SpaceURL)
	if err == nil && !tokens.ExpiresAt.After(session.ExpiresAt) {
		err = errStaleExpiry
	}
	if err != nil {
		m.repo.Delete(id)
		m.observe(RefreshFailed)
		logger.Warn().Err(err).Msg("token refresh failed, session terminated")
		return Session{}, apperrors.Auth(op, fmt.Errorf("refresh: %w", err))
	}

	session.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		session.RefreshToken = tokens.RefreshToken
	}
	session.ExpiresAt = tokens.ExpiresAt
	session.RefreshedAt = m.nowTime()

	if !m.repo.Update(session) {
		m.observe(RefreshDiscarded)
		logger.Info().Msg("session ended during refresh, discarding tokens")
		return Session{}, apperrors.Auth(op, errEndedDuring)
	}

	m.observe(RefreshSucceeded)
	logger.Debug().Time("expires_at", session.ExpiresAt).Msg("access token refreshed")
	return session, nil
}
