package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/backlog-broker/backlog"
	"github.com/jrsteele09/backlog-broker/internal/config"
	"github.com/jrsteele09/backlog-broker/internal/utils"
	"github.com/jrsteele09/backlog-broker/server/authflowrepo"
	"github.com/jrsteele09/backlog-broker/server/loginsession"
	"github.com/jrsteele09/backlog-broker/statetoken"
	"github.com/jrsteele09/backlog-broker/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	env    string // Environment (e.g., "DEV", "production")
	mux    *http.ServeMux
	routes []string
	config config.Config

	codec         *statetoken.Codec
	tokens        *token.Client
	resources     *backlog.Client
	pending       authflowrepo.Repo
	loginSessions loginsession.Repo
	sessions      *loginsession.Manager
	metrics       *Metrics

	nowTime    func() time.Time
	httpClient *http.Client
	registry   *prometheus.Registry

	cronLock sync.Mutex
	cron     *cron.Cron
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

// WithNowTime sets the clock shared by the codec, stores and clients (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

// WithHTTPClient replaces the client used for every call to the tracker.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) {
		s.httpClient = c
	}
}

// WithRegistry registers metrics on registry instead of a private one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// New wires the broker. pending must have been created with the same clock
// passed through WithNowTime.
func New(cfg config.Config, loginSessionRepo loginsession.Repo, pendingRepo authflowrepo.Repo, options ...Option) (*Server, error) {
	s := &Server{
		env:           cfg.GetEnv(),
		mux:           http.NewServeMux(),
		config:        cfg,
		pending:       pendingRepo,
		loginSessions: loginSessionRepo,
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.httpClient == nil {
		s.httpClient = utils.NewHTTPClient(cfg.GetUpstreamTimeout(), cfg.GetUpstreamConnectTimeout())
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	var err error
	s.codec, err = statetoken.NewCodec(cfg.GetStateSigningSecret(), statetoken.WithNowTime(s.nowTime))
	if err != nil {
		return nil, fmt.Errorf("[server.New] state codec: %w", err)
	}
	s.tokens, err = token.NewClient(cfg, token.WithHTTPClient(s.httpClient), token.WithNowTime(s.nowTime))
	if err != nil {
		return nil, fmt.Errorf("[server.New] token client: %w", err)
	}

	s.metrics = NewMetrics(s.registry, pendingRepo, loginSessionRepo)
	s.resources = backlog.NewClient(cfg,
		backlog.WithHTTPClient(s.httpClient),
		backlog.WithErrorObserver(s.metrics.ObserveUpstreamError),
	)
	s.sessions = loginsession.NewManager(loginSessionRepo, s.tokens,
		loginsession.WithRefreshMargin(cfg.GetRefreshMargin()),
		loginsession.WithNowTime(s.nowTime),
		loginsession.WithRefreshObserver(s.metrics.ObserveRefresh),
	)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler is the traced root handler served by the process.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s, s.config.GetAppName())
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
