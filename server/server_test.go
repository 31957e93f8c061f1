package server_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/backlog-broker/internal/config"
	"github.com/jrsteele09/backlog-broker/server"
	"github.com/jrsteele09/backlog-broker/server/authflowrepo"
	"github.com/jrsteele09/backlog-broker/server/loginsession"
	"github.com/stretchr/testify/require"
)

const (
	testOrigin = "https://app.example.com"
	testSpace  = "https://acme.backlog.com"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeBacklog plays the tracker: token endpoint plus the read APIs.
type fakeBacklog struct {
	t *testing.T

	mu            sync.Mutex
	grants        []string
	accessToken   string
	issued        int
	failExchange  bool
	failRefresh   bool
	failResources bool
}

func (f *fakeBacklog) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v2/oauth2/token", f.token)
	mux.HandleFunc("GET /api/v2/users/myself", f.authorized(`{"id":7,"userId":"alice","name":"Alice"}`))
	mux.HandleFunc("GET /api/v2/projects", f.authorized(`[{"id":1,"projectKey":"PROJ","name":"Project"}]`))
	mux.HandleFunc("GET /api/v2/issues", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("keyword") != "crash" {
			f.t.Errorf("unexpected keyword %q", r.URL.Query().Get("keyword"))
		}
		f.authorized(`[{"issueKey":"PROJ-1","summary":"Crash on start","updated":"2026-02-01T10:00:00Z"}]`)(w, r)
	})
	mux.HandleFunc("GET /api/v2/issues/{key}", f.authorized(`{"issueKey":"PROJ-1","summary":"Crash on start","description":"boom","updated":"2026-02-01T10:00:00Z"}`))
	return mux
}

func (f *fakeBacklog) token(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	grant := r.PostForm.Get("grant_type")
	f.grants = append(f.grants, grant)

	reject := func() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"upstream secret"}`))
	}
	switch grant {
	case "authorization_code":
		if f.failExchange || r.PostForm.Get("code") != "the-code" {
			reject()
			return
		}
	case "refresh_token":
		if f.failRefresh || r.PostForm.Get("refresh_token") != fmt.Sprintf("refresh-%d", f.issued) {
			reject()
			return
		}
	default:
		reject()
		return
	}

	f.issued++
	f.accessToken = fmt.Sprintf("access-%d", f.issued)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  f.accessToken,
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": fmt.Sprintf("refresh-%d", f.issued),
	})
}

func (f *fakeBacklog) authorized(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		want := "Bearer " + f.accessToken
		fail := f.failResources
		f.mu.Unlock()

		if r.Header.Get("Authorization") != want {
			http.Error(w, `{"errors":[{"message":"Authentication failure"}]}`, http.StatusUnauthorized)
			return
		}
		if fail {
			http.Error(w, `{"errors":[{"message":"database on fire"}]}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func (f *fakeBacklog) grantLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.grants...)
}

type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

type harness struct {
	t        *testing.T
	srv      *server.Server
	handler  http.Handler
	backlog  *fakeBacklog
	clock    *fakeClock
	pending  *authflowrepo.InMemoryRepo
	sessions *loginsession.InMemoryRepo
}

func testEnv() map[string]string {
	return map[string]string{
		"BACKLOG_CLIENT_ID":     "client-id",
		"BACKLOG_CLIENT_SECRET": "client-secret",
		"BACKLOG_REDIRECT_URI":  "https://app.example.com/oauth/callback",
		"STATE_SIGNING_SECRET":  strings.Repeat("s", 32),
		"ALLOWED_ORIGINS":       testOrigin,
		"ENV":                   "test",
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	env := testEnv()
	cfg, err := config.LoadWith(func(k string) string { return env[k] })
	require.NoError(t, err)

	fb := &fakeBacklog{t: t}
	upstream := httptest.NewServer(fb.handler())
	t.Cleanup(upstream.Close)
	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	pending := authflowrepo.NewInMemoryRepo(
		authflowrepo.WithTTL(cfg.GetPendingAuthTimeout()),
		authflowrepo.WithNowTime(clock.Now),
	)
	sessions := loginsession.NewInMemoryRepo()

	srv, err := server.New(cfg, sessions, pending,
		server.WithNowTime(clock.Now),
		server.WithHTTPClient(&http.Client{Transport: rewriteTransport{target: target}}),
	)
	require.NoError(t, err)

	return &harness{
		t:        t,
		srv:      srv,
		handler:  srv.Handler(),
		backlog:  fb,
		clock:    clock,
		pending:  pending,
		sessions: sessions,
	}
}

type request struct {
	method  string
	path    string
	body    string
	cookies []*http.Cookie
	headers map[string]string
}

func (h *harness) do(req request) *http.Response {
	h.t.Helper()
	var body io.Reader
	if req.body != "" {
		body = strings.NewReader(req.body)
	}
	r := httptest.NewRequest(req.method, req.path, body)
	if req.body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, r)
	return rec.Result()
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func requireError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	require.Equal(t, code, body["error"])
	require.NotEmpty(t, body["message"])
	require.NotContains(t, body["message"], "upstream secret")
	require.NotContains(t, body["message"], "database on fire")
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// loginAttempt is the browser state after /start.
type loginAttempt struct {
	state   string
	cookies []*http.Cookie
	csrf    string
}

func (h *harness) start() loginAttempt {
	h.t.Helper()
	resp := h.do(request{method: http.MethodGet, path: "/oauth/backlog/start?spaceUrl=" + url.QueryEscape("https://ACME.backlog.com/dashboard")})
	require.Equal(h.t, http.StatusOK, resp.StatusCode)

	var body struct {
		AuthorizationURL string `json:"authorizationUrl"`
	}
	decode(h.t, resp, &body)
	authURL, err := url.Parse(body.AuthorizationURL)
	require.NoError(h.t, err)

	cookies := resp.Cookies()
	csrfCookie := cookieNamed(cookies, "bme_csrf")
	require.NotNil(h.t, csrfCookie)
	return loginAttempt{state: authURL.Query().Get("state"), cookies: cookies, csrf: csrfCookie.Value}
}

func (h *harness) callback(a loginAttempt, code string) *http.Response {
	h.t.Helper()
	return h.do(request{
		method:  http.MethodPost,
		path:    "/oauth/backlog/callback",
		body:    fmt.Sprintf(`{"code":%q,"state":%q}`, code, a.state),
		cookies: a.cookies,
		headers: map[string]string{"Origin": testOrigin, "X-CSRF-Token": a.csrf},
	})
}

// login runs the whole flow and returns the cookies a browser would hold.
func (h *harness) login() loginAttempt {
	h.t.Helper()
	a := h.start()
	resp := h.callback(a, "the-code")
	require.Equal(h.t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	a.cookies = resp.Cookies()
	a.csrf = cookieNamed(a.cookies, "bme_csrf").Value
	return a
}
