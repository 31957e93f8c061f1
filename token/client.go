package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/backlog-broker/internal/config"
	apperrors "github.com/jrsteele09/backlog-broker/internal/errors"
	"github.com/jrsteele09/backlog-broker/internal/utils"
	"github.com/jrsteele09/backlog-broker/oauthmodel"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	authorizePath = "/OAuth2AccessRequest.action"
	tokenPath     = "/api/v2/oauth2/token"

	maxLoggedBody = 512
)

// Client talks to a space's OAuth 2.0 endpoints. Client credentials stay here
// and are never sent anywhere but the token endpoint.
type Client struct {
	clientID      string
	clientSecret  string
	redirectURI   string
	defaultExpiry time.Duration
	httpClient    *http.Client
	nowTime       func() time.Time
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

// WithHTTPClient replaces the outbound HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(client *Client) {
		client.nowTime = nowFunc
	}
}

// NewClient creates a token client from the OAuth configuration.
func NewClient(cfg config.OAuthConfig, options ...Option) (*Client, error) {
	if cfg.GetClientID() == "" || cfg.GetClientSecret() == "" || cfg.GetRedirectURI() == "" {
		return nil, apperrors.Config("token.NewClient", "oauth client credentials are not configured")
	}
	c := &Client{
		clientID:      cfg.GetClientID(),
		clientSecret:  cfg.GetClientSecret(),
		redirectURI:   cfg.GetRedirectURI(),
		defaultExpiry: cfg.GetDefaultAccessTokenExpiry(),
		httpClient:    utils.NewHTTPClient(cfg.GetUpstreamTimeout(), cfg.GetUpstreamConnectTimeout()),
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the OAuth endpoints of a validated space URL.
func Endpoint(spaceURL string) oauth2.Endpoint {
	base := strings.TrimSuffix(spaceURL, "/")
	return oauth2.Endpoint{
		AuthURL:   base + authorizePath,
		TokenURL:  base + tokenPath,
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func (c *Client) oauth2Config(spaceURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		RedirectURL:  c.redirectURI,
		Endpoint:     Endpoint(spaceURL),
	}
}

// AuthCodeURL builds the URL the browser is sent to for consent.
func (c *Client) AuthCodeURL(spaceURL, state string) string {
	return c.oauth2Config(spaceURL).AuthCodeURL(state)
}

// Exchange trades an authorization code or refresh token for a token set.
// Upstream failures are logged in full and returned as an opaque upstream error.
func (c *Client) Exchange(ctx context.Context, grant oauthmodel.GrantType, credential, spaceURL string) (oauthmodel.TokenSet, error) {
	op := "token.Exchange." + string(grant)

	if !grant.Valid() {
		return oauthmodel.TokenSet{}, apperrors.Validation(op, oauthmodel.ErrUnsupportedGrantType.Error())
	}
	if strings.TrimSpace(credential) == "" {
		return oauthmodel.TokenSet{}, apperrors.Validation(op, oauthmodel.ErrMissingCredential.Error())
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	cfg := c.oauth2Config(spaceURL)

	var (
		tok *oauth2.Token
		err error
	)
	switch grant {
	case oauthmodel.AuthorizationCodeGrant:
		tok, err = cfg.Exchange(ctx, credential)
	case oauthmodel.RefreshTokenGrant:
		tok, err = cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: credential}).Token()
	}
	if err != nil {
		c.logFailure(ctx, op, spaceURL, err)
		return oauthmodel.TokenSet{}, apperrors.Upstream(op, err)
	}
	if tok.AccessToken == "" {
		return oauthmodel.TokenSet{}, apperrors.Upstream(op, oauthmodel.ErrMissingAccessToken)
	}

	return c.tokenSet(tok), nil
}

func (c *Client) tokenSet(tok *oauth2.Token) oauthmodel.TokenSet {
	now := c.nowTime()
	expiresIn := tok.ExpiresIn
	if expiresIn <= 0 && !tok.Expiry.IsZero() {
		expiresIn = int64(tok.Expiry.Sub(now).Round(time.Second).Seconds())
	}
	if expiresIn <= 0 {
		expiresIn = int64(c.defaultExpiry.Seconds())
	}
	return oauthmodel.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    expiresIn,
		ExpiresAt:    now.Add(time.Duration(expiresIn) * time.Second),
	}
}

// logFailure separates grants the token endpoint rejected from transport failures.
func (c *Client) logFailure(ctx context.Context, op, spaceURL string, err error) {
	logger := log.Ctx(ctx).With().Str("op", op).Str("space", spaceURL).Logger()

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		logger.Warn().
			Int("status", status).
			Str("error_code", retrieveErr.ErrorCode).
			Str("body", utils.Truncate(string(retrieveErr.Body), maxLoggedBody)).
			Msg("token endpoint rejected request")
		return
	}
	logger.Error().Err(fmt.Errorf("transport: %w", err)).Msg("token endpoint unreachable")
}
