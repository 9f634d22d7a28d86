package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-calendar-sync/auth"
	"github.com/jrsteele09/go-calendar-sync/events"
	"github.com/jrsteele09/go-calendar-sync/internal/config"
	"github.com/jrsteele09/go-calendar-sync/token"
	"github.com/jrsteele09/go-calendar-sync/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Repos holds the storage the server is built on.
type Repos struct {
	Users  users.UserRepo
	Events events.EventRepo
}

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	auth    *auth.Service
	tokens  *token.Manager
	repos   Repos
	nowTime func() time.Time
}

type Option func(*Server)

// WithNowTime sets the clock used for tokens and health reports.
func WithNowTime(now func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = now
	}
}

func New(cfg config.Config, repos Repos, opts ...Option) (*Server, error) {
	if repos.Users == nil || repos.Events == nil {
		return nil, errors.New("[Server New] users and events repos are required")
	}
	s := &Server{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		repos:   repos,
		nowTime: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	s.tokens, err = token.NewManager(cfg.GetJWTSecret(), cfg.GetIssuer(), cfg.GetTokenExpiry(), token.WithNowTime(s.nowTime))
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] token manager")
	}

	s.auth, err = auth.NewService(auth.Repos{Users: repos.Users}, s.tokens, auth.WithNowTime(s.nowTime))
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] failed to create auth service")
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Tokens exposes the token manager so the host can schedule revocation cleanup.
func (s *Server) Tokens() *token.Manager {
	return s.tokens
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Debug().Str("method", method).Msgf("[%-16s] %s", colourMethod(method), path)
	}
}
