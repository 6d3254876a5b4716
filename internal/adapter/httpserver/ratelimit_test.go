package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// limitedCall runs one request through mw as user (empty for anonymous) from
// addr, rendering denials like the server does.
func limitedCall(t *testing.T, mw echo.MiddlewareFunc, user, addr string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/api/preferences/profile", nil)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if user != "" {
		c.Set(ctxKeyUserID, user)
	}

	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	err := ErrorHandlingMiddleware()(handler)(c)
	require.NoError(t, err)
	return rec
}

func TestWriteLimiter_AllowsBurst(t *testing.T) {
	mw := newWriteLimiter(10, 3)

	for range 3 {
		assert.Equal(t, http.StatusNoContent, limitedCall(t, mw, "alice", "10.0.0.1:1234").Code)
	}
}

func TestWriteLimiter_RejectsOverBurst(t *testing.T) {
	mw := newWriteLimiter(0.01, 1)

	require.Equal(t, http.StatusNoContent, limitedCall(t, mw, "alice", "10.0.0.1:1234").Code)
	rec := limitedCall(t, mw, "alice", "10.0.0.1:1234")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate_limited", body["type"])
}

func TestWriteLimiter_KeysByUserNotAddress(t *testing.T) {
	mw := newWriteLimiter(0.01, 1)

	require.Equal(t, http.StatusNoContent, limitedCall(t, mw, "alice", "10.0.0.1:1234").Code)
	// Same address, different user.
	assert.Equal(t, http.StatusNoContent, limitedCall(t, mw, "bob", "10.0.0.1:1234").Code)
	// Same user, different address.
	assert.Equal(t, http.StatusTooManyRequests, limitedCall(t, mw, "alice", "10.0.0.2:1234").Code)
}

func TestWriteLimiter_AnonymousFallsBackToAddress(t *testing.T) {
	mw := newWriteLimiter(0.01, 1)

	require.Equal(t, http.StatusNoContent, limitedCall(t, mw, "", "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusNoContent, limitedCall(t, mw, "", "10.0.0.2:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, limitedCall(t, mw, "", "10.0.0.1:1234").Code)
}
