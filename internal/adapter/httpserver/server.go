package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/portalprefs/internal/adapter/metrics"
	"github.com/pscheid92/portalprefs/internal/app"
	"github.com/pscheid92/portalprefs/internal/domain"
	"github.com/pscheid92/portalprefs/internal/platform/config"
	"github.com/pscheid92/portalprefs/internal/preferences"
	"github.com/pscheid92/portalprefs/internal/session"
)

type appService interface {
	Attach(ctx context.Context, attrs *session.Attributes, identity domain.Identity, req domain.RequestContext) (*preferences.Manager, error)
	SwitchProfile(ctx context.Context, m *preferences.Manager, name string) error
	UpdateStylesheetParameters(ctx context.Context, m *preferences.Manager, u app.StylesheetUpdate) error
	ReloadStructureStylesheet(ctx context.Context, m *preferences.Manager) error
	AddLayoutNode(ctx context.Context, m *preferences.Manager, parentID string, node domain.LayoutNode) (*domain.LayoutNode, error)
	RemoveLayoutNode(ctx context.Context, m *preferences.Manager, id string) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app      appService
	sessions *session.Store

	cookieStore    *sessions.CookieStore
	healthChecks   []HealthCheck
	metricsHandler http.Handler
	httpMetrics    *metrics.HTTPMetrics
	startTime      time.Time
}

type Option func(*Server)

// WithMetrics serves handler on /metrics and records request metrics with m.
func WithMetrics(handler http.Handler, m *metrics.HTTPMetrics) Option {
	return func(s *Server) {
		s.metricsHandler = handler
		s.httpMetrics = m
	}
}

func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) { s.healthChecks = append(s.healthChecks, checks...) }
}

func NewServer(cfg *config.Config, app appService, sessionStore *session.Store, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:        e,
		config:      cfg,
		app:         app,
		sessions:    sessionStore,
		cookieStore: setupCookieStore(cfg),
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router for tests and embedding.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Session keys
const (
	sessionName  = "portalprefs-session"
	sessionKeyID = "sid"
)

func setupCookieStore(cfg *config.Config) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
