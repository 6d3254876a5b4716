package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	apperrors "github.com/pscheid92/portalprefs/internal/platform/errors"
)

const writeLimiterExpiry = 10 * time.Minute

// newWriteLimiter throttles preference writes per user. Requests that reach
// it without a session user are keyed by client address.
func newWriteLimiter(perSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: writeLimiterExpiry,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store:               store,
		IdentifierExtractor: writeLimitKey,
		DenyHandler: func(c echo.Context, key string, _ error) error {
			return apperrors.RateLimitedError("too many preference updates, slow down")
		},
	})
}

func writeLimitKey(c echo.Context) (string, error) {
	if user, ok := c.Get(ctxKeyUserID).(string); ok && user != "" {
		return "user:" + user, nil
	}
	return "addr:" + c.RealIP(), nil
}
