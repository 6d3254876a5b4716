package httpserver

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/portalprefs/internal/app"
	"github.com/pscheid92/portalprefs/internal/domain"
	"github.com/pscheid92/portalprefs/internal/platform/config"
	"github.com/pscheid92/portalprefs/internal/preferences"
	"github.com/pscheid92/portalprefs/internal/session"
)

type mockAppService struct {
	attachFn     func(ctx context.Context, attrs *session.Attributes, identity domain.Identity, req domain.RequestContext) (*preferences.Manager, error)
	switchFn     func(ctx context.Context, m *preferences.Manager, name string) error
	updateFn     func(ctx context.Context, m *preferences.Manager, u app.StylesheetUpdate) error
	reloadFn     func(ctx context.Context, m *preferences.Manager) error
	addNodeFn    func(ctx context.Context, m *preferences.Manager, parentID string, node domain.LayoutNode) (*domain.LayoutNode, error)
	removeNodeFn func(ctx context.Context, m *preferences.Manager, id string) error
}

func (m *mockAppService) Attach(ctx context.Context, attrs *session.Attributes, identity domain.Identity, req domain.RequestContext) (*preferences.Manager, error) {
	if m.attachFn != nil {
		return m.attachFn(ctx, attrs, identity, req)
	}
	return nil, preferences.ErrUnmapped
}

func (m *mockAppService) SwitchProfile(ctx context.Context, pm *preferences.Manager, name string) error {
	if m.switchFn != nil {
		return m.switchFn(ctx, pm, name)
	}
	return nil
}

func (m *mockAppService) UpdateStylesheetParameters(ctx context.Context, pm *preferences.Manager, u app.StylesheetUpdate) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, pm, u)
	}
	return nil
}

func (m *mockAppService) ReloadStructureStylesheet(ctx context.Context, pm *preferences.Manager) error {
	if m.reloadFn != nil {
		return m.reloadFn(ctx, pm)
	}
	return nil
}

func (m *mockAppService) AddLayoutNode(ctx context.Context, pm *preferences.Manager, parentID string, node domain.LayoutNode) (*domain.LayoutNode, error) {
	if m.addNodeFn != nil {
		return m.addNodeFn(ctx, pm, parentID, node)
	}
	return &node, nil
}

func (m *mockAppService) RemoveLayoutNode(ctx context.Context, pm *preferences.Manager, id string) error {
	if m.removeNodeFn != nil {
		return m.removeNodeFn(ctx, pm, id)
	}
	return nil
}

func newTestConfig() *config.Config {
	return &config.Config{
		AppEnv:             "test",
		Port:               "0",
		SessionSecret:      "0123456789abcdef0123456789abcdef",
		SessionMaxAge:      time.Hour,
		SessionIdleTimeout: 30 * time.Minute,
		RemoteUserHeader:   "X-Remote-User",
		GuestUser:          "guest",
	}
}

func newTestServer(t *testing.T, svc appService, opts ...Option) *Server {
	t.Helper()
	store := session.NewStore(30*time.Minute, clockwork.NewFakeClock())
	return NewServer(newTestConfig(), svc, store, opts...)
}
