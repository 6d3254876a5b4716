package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/portalprefs/internal/platform/version"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

// HealthCheck is a named dependency probe. A failing Optional check reports
// the service as degraded but keeps it ready; descriptions fall back to the
// store when the shared cache is gone.
type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Optional bool
}

type probeReport struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks,omitempty"`
	FailedCheck string            `json:"failed_check,omitempty"`
	Error       string            `json:"error,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.probe(startupProbeTimeout))
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.probe(readinessProbeTimeout))
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) probe(timeout time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		defer cancel()

		report := s.checkDependencies(ctx)
		code := http.StatusOK
		if report.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		if err := c.JSON(code, report); err != nil {
			return fmt.Errorf("failed to write probe response: %w", err)
		}
		return nil
	}
}

// checkDependencies runs every check. The first required failure is named in
// FailedCheck.
func (s *Server) checkDependencies(ctx context.Context) probeReport {
	report := probeReport{Status: "ready", Checks: make(map[string]string, len(s.healthChecks))}

	for _, hc := range s.healthChecks {
		err := hc.Check(ctx)
		switch {
		case err == nil:
			report.Checks[hc.Name] = "ok"
		case hc.Optional:
			report.Checks[hc.Name] = "degraded"
			if report.Status == "ready" {
				report.Status = "degraded"
			}
		default:
			report.Checks[hc.Name] = "failed"
			if report.FailedCheck == "" {
				report.FailedCheck = hc.Name
				report.Error = err.Error()
			}
			report.Status = "unhealthy"
		}
	}
	return report
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status":          "ok",
		"uptime":          time.Since(s.startTime).Seconds(),
		"active_sessions": s.sessions.Size(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
