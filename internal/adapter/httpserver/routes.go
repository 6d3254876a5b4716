package httpserver

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	writeRatePerSecond = 5
	writeBurst         = 10
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(ErrorHandlingMiddleware())
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         63072000, // 2 years; only sent over HTTPS
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	s.registerHealthRoutes()
	if s.metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metricsHandler))
	}

	s.echo.GET("/unmapped", s.handleUnmapped)

	sess := s.echo.Group("", s.sessionMiddleware)
	sess.POST("/session/logout", s.handleLogout)

	api := sess.Group("/api", s.managerMiddleware)
	writeLimit := newWriteLimiter(writeRatePerSecond, writeBurst)

	api.GET("/profile", s.handleGetProfile)
	api.GET("/preferences", s.handleGetPreferences)
	api.PUT("/preferences/profile", s.handleSwitchProfile, writeLimit)
	api.PATCH("/preferences/stylesheets", s.handleUpdateStylesheets, writeLimit)
	api.GET("/stylesheets/structure", s.handleStructureStylesheet)
	api.GET("/stylesheets/theme", s.handleThemeStylesheet)
	api.POST("/stylesheets/structure/reload", s.handleReloadStructureStylesheet, writeLimit)
	api.GET("/layout/nodes/:id", s.handleGetLayoutNode)
	api.POST("/layout/nodes", s.handleAddLayoutNode, writeLimit)
	api.DELETE("/layout/nodes/:id", s.handleRemoveLayoutNode, writeLimit)
}

// setupRequestLoggerMiddleware logs one line per request. Probe and scrape
// traffic is skipped; server errors log at warn.
func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/metrics" || strings.HasPrefix(path, "/health/")
		},
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogUserAgent: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= 500 {
				level = slog.LevelWarn
			}
			slog.Log(c.Request().Context(), level, "Request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"user_agent", v.UserAgent,
			)
			return nil
		},
	})
}
