package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/portalprefs/internal/app"
	"github.com/pscheid92/portalprefs/internal/domain"
	apperrors "github.com/pscheid92/portalprefs/internal/platform/errors"
	"github.com/pscheid92/portalprefs/internal/preferences"
)

func renderError(t *testing.T, handlerErr error) (*httptest.ResponseRecorder, apperrors.ErrorResponse) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPut, "/api/preferences/stylesheets", nil), rec)
	c.Set(ctxKeyUserID, "alice")

	err := ErrorHandlingMiddleware()(func(echo.Context) error { return handlerErr })(c)
	require.NoError(t, err)

	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestErrorMiddleware_PassesSuccessThrough(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/profile", nil), rec)

	err := ErrorHandlingMiddleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestErrorMiddleware_HidesUnknownErrors(t *testing.T) {
	rec, resp := renderError(t, errors.New("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", resp.Error)
	assert.Equal(t, apperrors.TypeInternal, resp.Type)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestErrorMiddleware_KeepsContextFields(t *testing.T) {
	rec, resp := renderError(t, apperrors.NotFoundError("profile not found").WithField("profile", "mobile"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "profile not found", resp.Error)
	assert.Equal(t, map[string]any{"profile": "mobile"}, resp.Context)
}

func TestErrorMiddleware_ClassifiesDomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   apperrors.ErrorType
	}{
		{"profile", fmt.Errorf("lookup: %w", domain.ErrProfileNotFound), http.StatusNotFound, apperrors.TypeNotFound},
		{"stylesheet", domain.ErrStylesheetNotFound, http.StatusNotFound, apperrors.TypeNotFound},
		{"node", domain.ErrNodeNotFound, http.StatusNotFound, apperrors.TypeNotFound},
		{"unknown_parameter", fmt.Errorf("%w: colour", app.ErrUnknownParameter), http.StatusBadRequest, apperrors.TypeValidation},
		{"unmapped", preferences.ErrUnmapped, http.StatusConflict, apperrors.TypeConflict},
		{"transition", &preferences.TransitionError{Profile: "mobile", Cause: errors.New("db down")}, http.StatusBadGateway, apperrors.TypeExternal},
		{"initialization", &preferences.InitializationError{UserID: "alice", Cause: errors.New("db down")}, http.StatusInternalServerError, apperrors.TypeInternal},
		{"structured_conflict", apperrors.ConflictError("taken"), http.StatusConflict, apperrors.TypeConflict},
		{"echo_not_found", echo.ErrNotFound, http.StatusNotFound, apperrors.TypeNotFound},
		{"echo_method", echo.ErrMethodNotAllowed, http.StatusNotFound, apperrors.TypeNotFound},
		{"echo_too_large", echo.ErrStatusRequestEntityTooLarge, http.StatusBadRequest, apperrors.TypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := renderError(t, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantType, resp.Type)
		})
	}
}

func TestErrorMiddleware_TransitionCarriesProfile(t *testing.T) {
	_, resp := renderError(t, &preferences.TransitionError{Profile: "mobile", Cause: errors.New("db down")})

	assert.Equal(t, "preferences update failed", resp.Error)
	assert.Equal(t, "mobile", resp.Context["profile"])
}

func TestClassifyErrorKeepsStructuredErrors(t *testing.T) {
	structured := apperrors.ConflictError("taken")
	wrapped := fmt.Errorf("wrapped: %w", structured)

	got := classifyError(wrapped)
	assert.Equal(t, wrapped, got)
	assert.Same(t, structured, apperrors.AsStructuredError(got))
}

func TestWrapHTTPError(t *testing.T) {
	cause := errors.New("bind failed")

	tests := []struct {
		name        string
		httpErr     *echo.HTTPError
		wantType    apperrors.ErrorType
		wantMessage string
		wantCause   error
	}{
		{"string_message", echo.NewHTTPError(http.StatusBadRequest, "name is required"), apperrors.TypeValidation, "name is required", nil},
		{"non_string_message", echo.NewHTTPError(http.StatusBadRequest, map[string]string{"k": "v"}), apperrors.TypeValidation, "Bad Request", nil},
		{"nil_message", &echo.HTTPError{Code: http.StatusNotFound}, apperrors.TypeNotFound, "Not Found", nil},
		{"conflict", echo.NewHTTPError(http.StatusConflict), apperrors.TypeConflict, "Conflict", nil},
		{"unavailable", echo.NewHTTPError(http.StatusServiceUnavailable), apperrors.TypeExternal, "Service Unavailable", nil},
		{"internal_cause", echo.NewHTTPError(http.StatusInternalServerError).SetInternal(cause), apperrors.TypeInternal, "Internal Server Error", cause},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapHTTPError(tt.httpErr)

			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantMessage, got.Message)
			assert.Equal(t, tt.wantCause, got.Cause)
		})
	}
}

func TestCorrelationMiddleware_RequestID(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(echo.HeaderXRequestID, "edge-91c2")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, "edge-91c2", rec.Header().Get(echo.HeaderXRequestID))

	rec = get(srv, "/health/live")
	assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 8)
}
