package httpserver

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/portalprefs/internal/domain"
	"github.com/pscheid92/portalprefs/internal/platform/correlation"
	apperrors "github.com/pscheid92/portalprefs/internal/platform/errors"
	"github.com/pscheid92/portalprefs/internal/preferences"
	"github.com/pscheid92/portalprefs/internal/session"
)

// Echo context keys
const (
	ctxKeySessionID = "sessionID"
	ctxKeyAttrs     = "sessionAttrs"
	ctxKeyUserID    = "userID"
	ctxKeyIdentity  = "identity"
	ctxKeyManager   = "manager"
)

// sessionMiddleware binds the request to a server session, identified by a
// signed cookie, and holds the session lock for the rest of the request.
func (s *Server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, _ := s.cookieStore.Get(c.Request(), sessionName)
		id, _ := cookie.Values[sessionKeyID].(string)
		if id == "" {
			id = uuid.NewString()
			cookie.Values[sessionKeyID] = id
			if err := cookie.Save(c.Request(), c.Response()); err != nil {
				return apperrors.InternalError("failed to save session", err)
			}
		}

		identity := s.identity(c.Request())
		ctx := correlation.WithUserID(correlation.WithSessionID(c.Request().Context(), id), identity.UserID)
		c.SetRequest(c.Request().WithContext(ctx))

		attrs, _ := s.sessions.GetOrCreate(ctx, id)
		attrs.Lock()
		defer attrs.Unlock()

		c.Set(ctxKeySessionID, id)
		c.Set(ctxKeyAttrs, attrs)
		c.Set(ctxKeyIdentity, identity)
		c.Set(ctxKeyUserID, identity.UserID)
		return next(c)
	}
}

// identity trusts the upstream authentication header and falls back to the guest user.
func (s *Server) identity(r *http.Request) domain.Identity {
	user := strings.TrimSpace(r.Header.Get(s.config.RemoteUserHeader))
	if user == "" {
		user = s.config.GuestUser
	}
	return domain.Identity{UserID: user}
}

// managerMiddleware attaches the session's preferences manager. Clients
// without a profile are sent to /unmapped.
func (s *Server) managerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		attrs := c.Get(ctxKeyAttrs).(*session.Attributes)
		identity := c.Get(ctxKeyIdentity).(domain.Identity)

		m, err := s.app.Attach(c.Request().Context(), attrs, identity, domain.NewRequestContext(c.Request()))
		if err != nil {
			return err
		}
		if m.Unmapped() {
			return c.Redirect(http.StatusSeeOther, "/unmapped")
		}

		c.Set(ctxKeyManager, m)
		return next(c)
	}
}

func manager(c echo.Context) *preferences.Manager {
	return c.Get(ctxKeyManager).(*preferences.Manager)
}

func (s *Server) handleLogout(c echo.Context) error {
	id := c.Get(ctxKeySessionID).(string)
	s.sessions.Invalidate(c.Request().Context(), id)

	cookie, _ := s.cookieStore.Get(c.Request(), sessionName)
	cookie.Options.MaxAge = -1
	if err := cookie.Save(c.Request(), c.Response()); err != nil {
		return apperrors.InternalError("failed to clear session cookie", err)
	}
	return c.NoContent(http.StatusNoContent)
}
