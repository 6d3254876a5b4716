package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/portalprefs/internal/adapter/sqlite"
	"github.com/pscheid92/portalprefs/internal/app"
	"github.com/pscheid92/portalprefs/internal/domain"
	"github.com/pscheid92/portalprefs/internal/layout"
	"github.com/pscheid92/portalprefs/internal/preferences"
	"github.com/pscheid92/portalprefs/internal/profile"
	"github.com/pscheid92/portalprefs/internal/profile/mapper"
	"github.com/pscheid92/portalprefs/internal/session"
)

type apiEnv struct {
	srv       *Server
	store     *sqlite.Store
	sessions  *session.Store
	structure *domain.StructureStylesheetDescription
	cookies   []*http.Cookie
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	structure := &domain.StructureStylesheetDescription{
		Name: "tabs", URI: "tabs.xsl",
		Parameters: map[string]domain.ParameterDescription{"activeTab": {Default: "1"}},
	}
	require.NoError(t, store.CreateStructureStylesheet(ctx, structure))
	theme := &domain.ThemeStylesheetDescription{
		StructureStylesheetID: structure.ID, Name: "columns", URI: "columns.xsl", MimeType: "text/html",
		Parameters: map[string]domain.ParameterDescription{"skin": {Default: "plain"}},
	}
	require.NoError(t, store.CreateThemeStylesheet(ctx, theme))

	system := &domain.Profile{Name: "default", LayoutID: 1, StructureStylesheetID: structure.ID, ThemeStylesheetID: theme.ID}
	require.NoError(t, store.CreateProfile(ctx, "", system))
	mobile := &domain.Profile{Name: "mobile", LayoutID: 2, StructureStylesheetID: structure.ID, ThemeStylesheetID: theme.ID}
	require.NoError(t, store.CreateProfile(ctx, "", mobile))
	require.NoError(t, store.MapAgent(ctx, "", domain.NullClientSignature, system.ID))

	require.NoError(t, store.SaveLayout(ctx, domain.Identity{UserID: "alice"}, &domain.Layout{
		ID:     1,
		RootID: "root",
		Nodes: map[string]*domain.LayoutNode{
			"root": {ID: "root", Type: domain.NodeTypeFolder, Name: "Root", Children: []string{"n1"}},
			"n1":   {ID: "n1", Type: domain.NodeTypeChannel, Name: "News", ParentID: "root", ChannelPublishID: "42"},
		},
	}))

	svc := app.NewService(preferences.Deps{
		Store:    store,
		Resolver: profile.NewResolver(store, mapper.Static("")),
		Layouts:  layout.NewFactory(store),
	})
	sessions := session.NewStore(30*time.Minute, clockwork.NewFakeClock(), session.WithEndFunc(app.EndSession))

	return &apiEnv{
		srv:       NewServer(newTestConfig(), svc, sessions),
		store:     store,
		sessions:  sessions,
		structure: structure,
	}
}

// do sends a request as alice, carrying the session cookie between calls.
func (e *apiEnv) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Remote-User", "alice")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	for _, c := range e.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		e.cookies = cookies
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAPI_GetProfile(t *testing.T) {
	e := newAPIEnv(t)

	rec := e.do(t, http.MethodGet, "/api/profile", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[profileResponse](t, rec)
	assert.Equal(t, "default", p.Name)
	assert.True(t, p.System)
	assert.Equal(t, 1, p.LayoutID)
	assert.NotEmpty(t, e.cookies)
	assert.Equal(t, 1, e.sessions.Size())
}

func TestAPI_UnmappedClientIsRedirected(t *testing.T) {
	e := newAPIEnv(t)

	rec := e.do(t, http.MethodGet, "/api/profile", "", "User-Agent", "Lynx/2.8")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/unmapped", rec.Header().Get("Location"))

	landing := e.do(t, http.MethodGet, "/unmapped", "", "User-Agent", "Lynx/2.8")
	require.Equal(t, http.StatusOK, landing.Code)
	assert.Equal(t, "Lynx/2.8", decode[map[string]string](t, landing)["user_agent"])
}

func TestAPI_SwitchProfileIsKeptInSession(t *testing.T) {
	e := newAPIEnv(t)

	rec := e.do(t, http.MethodPut, "/api/preferences/profile", `{"name":"mobile"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "mobile", decode[profileResponse](t, rec).Name)

	rec = e.do(t, http.MethodGet, "/api/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[profileResponse](t, rec)
	assert.Equal(t, "mobile", p.Name)
	assert.Equal(t, 2, p.LayoutID)
}

func TestAPI_SwitchProfileErrors(t *testing.T) {
	e := newAPIEnv(t)

	rec := e.do(t, http.MethodPut, "/api/preferences/profile", `{"name":"tv"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/preferences/profile", `{"name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/profile", "")
	assert.Equal(t, "default", decode[profileResponse](t, rec).Name)
}

func TestAPI_UpdateStylesheets(t *testing.T) {
	e := newAPIEnv(t)

	rec := e.do(t, http.MethodPatch, "/api/preferences/stylesheets",
		`{"structure_parameters":{"activeTab":"3"},"theme_node_attributes":{"n1":{"width":"50%"}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	prefs := decode[preferencesResponse](t, rec)
	assert.Equal(t, "3", prefs.Structure.Parameters["activeTab"])
	assert.Equal(t, "50%", prefs.Theme.NodeAttributes["n1"]["width"])

	stored, err := e.store.GetStructureStylesheetPreferences(context.Background(), domain.Identity{UserID: "alice"}, prefs.Profile.ID, e.structure.ID)
	require.NoError(t, err)
	assert.Equal(t, "3", stored.Parameters["activeTab"])
}

func TestAPI_UpdateStylesheetsRejectsUnknownParameter(t *testing.T) {
	e := newAPIEnv(t)

	rec := e.do(t, http.MethodPatch, "/api/preferences/stylesheets", `{"theme_parameters":{"colour":"red"}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/preferences", "")
	assert.Empty(t, decode[preferencesResponse](t, rec).Theme.Parameters)
}

func TestAPI_StylesheetDescriptions(t *testing.T) {
	e := newAPIEnv(t)

	rec := e.do(t, http.MethodGet, "/api/stylesheets/structure", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tabs", decode[domain.StructureStylesheetDescription](t, rec).Name)

	rec = e.do(t, http.MethodGet, "/api/stylesheets/theme", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "columns", decode[domain.ThemeStylesheetDescription](t, rec).Name)

	rec = e.do(t, http.MethodPost, "/api/stylesheets/structure/reload", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPI_LayoutNode(t *testing.T) {
	e := newAPIEnv(t)

	rec := e.do(t, http.MethodGet, "/api/layout/nodes/n1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	node := decode[map[string]any](t, rec)
	assert.Equal(t, "42", node["channel_publish_id"])
	assert.Equal(t, "channel", node["type"])
	assert.EqualValues(t, 1, node["layout_id"])

	rec = e.do(t, http.MethodGet, "/api/layout/nodes/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_AddAndRemoveLayoutNode(t *testing.T) {
	e := newAPIEnv(t)

	rec := e.do(t, http.MethodPost, "/api/layout/nodes", `{"parent_id":"root","id":"mail","type":"channel","name":"Mail","channel_publish_id":"7"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	node := decode[map[string]any](t, rec)
	assert.Equal(t, "mail", node["id"])
	assert.Equal(t, "root", node["parent_id"])
	assert.EqualValues(t, 1, node["layout_id"])

	rec = e.do(t, http.MethodGet, "/api/layout/nodes/root", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"n1", "mail"}, decode[map[string]any](t, rec)["children"])

	rec = e.do(t, http.MethodDelete, "/api/layout/nodes/mail", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/layout/nodes/mail", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_LayoutNodeErrors(t *testing.T) {
	e := newAPIEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing parent id", http.MethodPost, "/api/layout/nodes", `{"type":"folder"}`, http.StatusBadRequest},
		{"unknown type", http.MethodPost, "/api/layout/nodes", `{"parent_id":"root","type":"portlet"}`, http.StatusBadRequest},
		{"folder with publish id", http.MethodPost, "/api/layout/nodes", `{"parent_id":"root","type":"folder","channel_publish_id":"1"}`, http.StatusBadRequest},
		{"unknown parent", http.MethodPost, "/api/layout/nodes", `{"parent_id":"nope","type":"folder"}`, http.StatusNotFound},
		{"parent is a channel", http.MethodPost, "/api/layout/nodes", `{"parent_id":"n1","type":"folder"}`, http.StatusBadRequest},
		{"duplicate id", http.MethodPost, "/api/layout/nodes", `{"parent_id":"root","id":"n1","type":"channel"}`, http.StatusConflict},
		{"remove root", http.MethodDelete, "/api/layout/nodes/root", "", http.StatusBadRequest},
		{"remove unknown", http.MethodDelete, "/api/layout/nodes/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAPI_GuestWithoutRemoteUser(t *testing.T) {
	e := newAPIEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "default", decode[profileResponse](t, rec).Name)
}

func TestAPI_Logout(t *testing.T) {
	e := newAPIEnv(t)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/profile", "").Code)
	require.Equal(t, 1, e.sessions.Size())

	rec := e.do(t, http.MethodPost, "/session/logout", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, e.sessions.Size())
}
