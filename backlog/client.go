package backlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/jrsteele09/backlog-broker/internal/config"
	apperrors "github.com/jrsteele09/backlog-broker/internal/errors"
	"github.com/jrsteele09/backlog-broker/internal/utils"
	"github.com/jrsteele09/backlog-broker/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	myselfPath   = "/api/v2/users/myself"
	projectsPath = "/api/v2/projects"
	issuesPath   = "/api/v2/issues"

	DefaultSearchCount = 20
	MaxSearchCount     = 100
	maxKeywordLength   = 200

	maxResponseBytes = 4 << 20
	maxLoggedBody    = 512
)

var issueKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*-[1-9][0-9]*$`)

// Credentials identify the space and the bearer token for a call.
type Credentials struct {
	SpaceURL    string
	AccessToken string
}

// ErrorObserver is told about every failed upstream call with its classification.
type ErrorObserver func(op, class string)

// Client performs authenticated reads against the tracker API. It holds no
// per-user state.
type Client struct {
	httpClient *http.Client
	observe    ErrorObserver
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

// WithHTTPClient replaces the outbound HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

func WithErrorObserver(observe ErrorObserver) Option {
	return func(client *Client) {
		client.observe = observe
	}
}

// NewClient creates a resource client with the configured upstream timeouts.
func NewClient(cfg config.OAuthConfig, options ...Option) *Client {
	c := &Client{
		httpClient: utils.NewHTTPClient(cfg.GetUpstreamTimeout(), cfg.GetUpstreamConnectTimeout()),
		observe:    func(string, string) {},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// GetMyself returns the account the access token belongs to.
func (c *Client) GetMyself(ctx context.Context, creds Credentials) (users.User, error) {
	const op = "backlog.GetMyself"

	var payload apiUser
	if err := c.get(ctx, op, creds, myselfPath, nil, &payload); err != nil {
		return users.User{}, err
	}
	user, err := payload.toUser()
	if err != nil {
		return users.User{}, c.invalidPayload(ctx, op, err)
	}
	return user, nil
}

func (c *Client) ListProjects(ctx context.Context, creds Credentials) ([]Project, error) {
	const op = "backlog.ListProjects"

	var payload []apiProject
	if err := c.get(ctx, op, creds, projectsPath, nil, &payload); err != nil {
		return nil, err
	}
	projects := make([]Project, 0, len(payload))
	for _, p := range payload {
		project, err := p.toProject()
		if err != nil {
			return nil, c.invalidPayload(ctx, op, err)
		}
		projects = append(projects, project)
	}
	return projects, nil
}

// SearchIssues runs a keyword search. count <= 0 means DefaultSearchCount.
func (c *Client) SearchIssues(ctx context.Context, creds Credentials, keyword string, count int) ([]IssueSummary, error) {
	const op = "backlog.SearchIssues"

	keyword, err := NormalizeKeyword(keyword)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = DefaultSearchCount
	}
	if count > MaxSearchCount {
		return nil, apperrors.Validation(op, fmt.Sprintf("count must be between 1 and %d", MaxSearchCount))
	}

	query := url.Values{}
	query.Set("keyword", keyword)
	query.Set("count", strconv.Itoa(count))

	var payload []apiIssue
	if err := c.get(ctx, op, creds, issuesPath, query, &payload); err != nil {
		return nil, err
	}
	issues := make([]IssueSummary, 0, len(payload))
	for _, i := range payload {
		issue, err := i.toSummary()
		if err != nil {
			return nil, c.invalidPayload(ctx, op, err)
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

func (c *Client) GetIssue(ctx context.Context, creds Credentials, issueKey string) (IssueDetail, error) {
	const op = "backlog.GetIssue"

	issueKey, err := NormalizeIssueKey(issueKey)
	if err != nil {
		return IssueDetail{}, err
	}

	var payload apiIssue
	if err := c.get(ctx, op, creds, issuesPath+"/"+url.PathEscape(issueKey), nil, &payload); err != nil {
		return IssueDetail{}, err
	}
	issue, err := payload.toDetail()
	if err != nil {
		return IssueDetail{}, c.invalidPayload(ctx, op, err)
	}
	return issue, nil
}

// NormalizeKeyword trims a search keyword and rejects empty or oversized input.
func NormalizeKeyword(keyword string) (string, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return "", apperrors.Validation("backlog.keyword", "keyword is required")
	}
	if len(keyword) > maxKeywordLength {
		return "", apperrors.Validation("backlog.keyword", fmt.Sprintf("keyword must be at most %d characters", maxKeywordLength))
	}
	return keyword, nil
}

// NormalizeIssueKey trims and upper-cases an issue key such as "PROJ-12".
func NormalizeIssueKey(issueKey string) (string, error) {
	issueKey = strings.ToUpper(strings.TrimSpace(issueKey))
	if !issueKeyPattern.MatchString(issueKey) {
		return "", apperrors.Validation("backlog.issueKey", "invalid issue key")
	}
	return issueKey, nil
}

func (c *Client) get(ctx context.Context, op string, creds Credentials, path string, query url.Values, out interface{}) error {
	if creds.SpaceURL == "" || creds.AccessToken == "" {
		return apperrors.Auth(op, fmt.Errorf("missing credentials"))
	}

	endpoint := strings.TrimSuffix(creds.SpaceURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apperrors.Upstream(op, err)
	}
	req.Header.Set("Accept", "application/json")
	(&oauth2.Token{AccessToken: creds.AccessToken, TokenType: "Bearer"}).SetAuthHeader(req)

	logger := log.Ctx(ctx).With().Str("op", op).Str("space", creds.SpaceURL).Logger()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, "transport")
		logger.Error().Err(err).Msg("upstream request failed")
		return apperrors.Upstream(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.observe(op, "transport")
		logger.Error().Err(err).Msg("reading upstream response failed")
		return apperrors.Upstream(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := ClassifyStatus(resp.StatusCode)
		c.observe(op, class)
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("class", class).
			Str("body", utils.Truncate(string(body), maxLoggedBody)).
			Msg("upstream returned an error")
		return apperrors.Upstream(op, fmt.Errorf("status %d (%s)", resp.StatusCode, class))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return c.invalidPayload(ctx, op, fmt.Errorf("decode: %w", err))
	}
	return nil
}

func (c *Client) invalidPayload(ctx context.Context, op string, err error) error {
	c.observe(op, "invalid_payload")
	log.Ctx(ctx).Warn().Str("op", op).Err(err).Msg("upstream returned an unexpected payload")
	return apperrors.Upstream(op, err)
}

// ClassifyStatus names an upstream failure status for logs and metrics.
func ClassifyStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "auth_invalid"
	case status == http.StatusForbidden:
		return "forbidden"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status >= 500:
		return "server_error"
	default:
		return "unexpected"
	}
}
